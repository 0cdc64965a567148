/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics exposes a Tracker's TrackingReport as Prometheus
// gauges, mirroring chrony_exporter's tracking_* metric family but fed
// directly from an in-process snapshot rather than scraped over the wire.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/frameclock/reftrack/reftrack"
)

const subsystem = "tracking"

// Source supplies the snapshot the collector scrapes on every Collect
// call; *reftrack.Tracker satisfies it via GetTrackingReport.
type Source interface {
	GetTrackingReport(localTime time.Time) reftrack.TrackingReport
}

// Collector is a prometheus.Collector over a Source's tracking report.
type Collector struct {
	namespace string
	source    Source

	stratum            *prometheus.Desc
	leapStatus         *prometheus.Desc
	lastOffsetSeconds  *prometheus.Desc
	rmsOffsetSeconds   *prometheus.Desc
	frequencyPPM       *prometheus.Desc
	residFrequencyPPM  *prometheus.Desc
	skewPPM            *prometheus.Desc
	rootDelaySeconds   *prometheus.Desc
	rootDispSeconds    *prometheus.Desc
	updateIntervalSecs *prometheus.Desc
}

// New returns a Collector registering gauges under namespace_tracking_*.
func New(namespace string, source Source) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil)
	}
	return &Collector{
		namespace:          namespace,
		source:             source,
		stratum:            desc("stratum", "Reference tracking stratum"),
		leapStatus:         desc("leap_status", "Leap second status (0=Normal,1=InsertSecond,2=DeleteSecond,3=Unsynchronised)"),
		lastOffsetSeconds:  desc("last_offset_seconds", "Most recent offset applied"),
		rmsOffsetSeconds:   desc("rms_offset_seconds", "RMS offset"),
		frequencyPPM:       desc("frequency_ppm", "Local clock frequency offset"),
		residFrequencyPPM:  desc("residual_frequency_ppm", "Residual frequency after blending"),
		skewPPM:            desc("skew_ppm", "Estimated skew"),
		rootDelaySeconds:   desc("root_delay_seconds", "Root delay"),
		rootDispSeconds:    desc("root_dispersion_seconds", "Root dispersion"),
		updateIntervalSecs: desc("update_interval_seconds", "Seconds between the two most recent updates"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.stratum
	ch <- c.leapStatus
	ch <- c.lastOffsetSeconds
	ch <- c.rmsOffsetSeconds
	ch <- c.frequencyPPM
	ch <- c.residFrequencyPPM
	ch <- c.skewPPM
	ch <- c.rootDelaySeconds
	ch <- c.rootDispSeconds
	ch <- c.updateIntervalSecs
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	r := c.source.GetTrackingReport(time.Now())
	ch <- prometheus.MustNewConstMetric(c.stratum, prometheus.GaugeValue, float64(r.Stratum))
	ch <- prometheus.MustNewConstMetric(c.leapStatus, prometheus.GaugeValue, float64(r.LeapStatus))
	ch <- prometheus.MustNewConstMetric(c.lastOffsetSeconds, prometheus.GaugeValue, r.LastOffset)
	ch <- prometheus.MustNewConstMetric(c.rmsOffsetSeconds, prometheus.GaugeValue, r.RMSOffset)
	ch <- prometheus.MustNewConstMetric(c.frequencyPPM, prometheus.GaugeValue, r.FreqPPM)
	ch <- prometheus.MustNewConstMetric(c.residFrequencyPPM, prometheus.GaugeValue, r.ResidFreqPPM)
	ch <- prometheus.MustNewConstMetric(c.skewPPM, prometheus.GaugeValue, r.SkewPPM)
	ch <- prometheus.MustNewConstMetric(c.rootDelaySeconds, prometheus.GaugeValue, r.RootDelay)
	ch <- prometheus.MustNewConstMetric(c.rootDispSeconds, prometheus.GaugeValue, r.RootDispersion)
	ch <- prometheus.MustNewConstMetric(c.updateIntervalSecs, prometheus.GaugeValue, r.LastUpdateInterval)
}
