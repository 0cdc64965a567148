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

package reftrack

import (
	"math"
	"net/netip"
	"time"
)

// TrackingReport is a point-in-time snapshot of the tracking state, shaped
// to answer upstream-style tracking queries. Field names mirror
// ntp/chrony's Tracking reply so the two can sit side by side in a status
// surface or an exporter.
type TrackingReport struct {
	RefID              uint32
	IPAddr             netip.Addr
	Stratum            uint16
	LeapStatus         LeapStatus
	RefTime            time.Time
	CurrentCorrection  float64
	LastOffset         float64
	RMSOffset          float64
	FreqPPM            float64
	ResidFreqPPM       float64
	SkewPPM            float64
	RootDelay          float64
	RootDispersion     float64
	LastUpdateInterval float64
}

// GetTrackingReport returns a snapshot of the current tracking state with
// every field populated. Each field is first filled from the current state;
// when unsynchronised, stratum, leap status and root delay/dispersion are
// then overwritten with the local-stratum values (with LocalReferenceID as
// RefID) or with the unsynchronised defaults. IPAddr and RefTime, and RefID
// outside the local-stratum case, keep the last reference's values.
// ResidFreqPPM is only reported when synchronised.
func (t *Tracker) GetTrackingReport(localTime time.Time) TrackingReport {
	var out TrackingReport

	out.RefID = t.refID
	out.IPAddr = t.refIP
	out.Stratum = t.stratum
	out.LeapStatus = t.leapStatus
	out.RefTime = t.refTime
	out.LastOffset = t.lastOffset
	out.RMSOffset = sqrtNonNegative(t.avg2Offset)
	out.FreqPPM = t.clock.ReadAbsoluteFrequency()
	out.ResidFreqPPM = 0
	out.SkewPPM = t.skew * 1e6
	out.RootDelay = t.rootDelay
	out.RootDispersion = t.rootDispersion
	out.LastUpdateInterval = t.lastRefUpdateInterval

	if corr, err := t.clock.GetOffsetCorrection(t.clock.ReadRawTime()); err == nil {
		out.CurrentCorrection = corr.Seconds()
	}

	if !t.synchronised {
		if t.localActive {
			out.RefID = LocalReferenceID
			out.Stratum = t.localStratum
			out.LeapStatus = LeapNormal
			out.RootDelay = 0
			out.RootDispersion = t.clock.GetSysPrecisionAsQuantum().Seconds()
		} else {
			out.Stratum = 0
			out.LeapStatus = LeapUnsynchronised
			out.RootDelay = 1.0
			out.RootDispersion = 1.0
		}
		return out
	}

	out.ResidFreqPPM = t.residualFreq * 1e6
	return out
}

func sqrtNonNegative(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
