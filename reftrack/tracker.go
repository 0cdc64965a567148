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
	"container/ring"
	"net/netip"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/frameclock/reftrack/leapsectz"
)

const rmsHistorySize = 16

// Tracker is the reference tracking core: a single process-wide instance
// created by Initialise and driven by SetReference/SetUnsynchronised and
// the fallback-drift timer. It is not internally locked — unlike
// fbclock/daemon's daemonState, which is genuinely shared across
// goroutines, a Tracker is only ever touched from the single event loop
// that owns it, so callers are responsible for serializing access.
type Tracker struct {
	cfg    *Config
	clock  LocalClock
	sched  Scheduler
	logs   LogSink
	mailer Mailer

	synchronised   bool
	leapStatus     LeapStatus
	pendingLeap    int
	stratum        uint16
	refID          uint32
	refIP          netip.Addr
	refTime        time.Time
	skew           float64
	residualFreq   float64
	rootDelay      float64
	rootDispersion float64

	haveLastRefUpdate     bool
	lastRefUpdate         time.Time
	lastRefUpdateInterval float64

	lastOffset  float64
	avg2Offset  float64
	avg2Moving  bool
	rmsHistory  *ring.Ring

	mode              Mode
	modeEndHandler    ModeEndHandler
	initStepThreshold float64

	offsetDelayCounter  int
	offsetIgnoreCounter int
	stepLimitBudget     int

	fbDrift       []FallbackSlot
	nextFbDrift   int
	haveFbTimeout bool
	fbTimeoutID   TimeoutID

	leapTable      *leapsectz.Table
	leapTimezoneOK bool

	driftFileAge float64
	driftDirty   bool

	localActive  bool
	localStratum uint16

	logFileID   LogFileID
	haveLogFile bool
}

// New creates a Tracker bound to its collaborators. Call Initialise before
// any other method.
func New(cfg *Config, clock LocalClock, sched Scheduler, logs LogSink, mailer Mailer) *Tracker {
	return &Tracker{
		cfg:    cfg,
		clock:  clock,
		sched:  sched,
		logs:   logs,
		mailer: mailer,
	}
}

// Initialise loads the drift file if present, probes the configured leap
// timezone, registers the slew observer and records the initial
// unsynchronised tracking-log entry.
func (t *Tracker) Initialise() error {
	t.skew = MinSkew
	t.leapStatus = LeapUnsynchronised
	t.mode = ModeNormal
	t.rmsHistory = ring.New(rmsHistorySize)
	t.fbDrift = make([]FallbackSlot, t.cfg.FbDriftMax-t.cfg.FbDriftMin+1)
	t.offsetDelayCounter = t.cfg.MaxOffsetDelay
	t.offsetIgnoreCounter = t.cfg.MaxOffsetIgnore
	t.stepLimitBudget = t.cfg.MakeStepLimit

	if t.cfg.DriftFilePath != "" {
		freqPPM, skewPPM, err := readDriftFile(t.cfg.DriftFilePath)
		if err != nil {
			log.Warningf("reftrack: drift file unreadable, using live clock frequency: %v", err)
			freqPPM = t.clock.ReadAbsoluteFrequency()
		} else {
			if err := t.clock.SetAbsoluteFrequency(freqPPM); err != nil {
				log.Warningf("reftrack: failed to apply drift-file frequency: %v", err)
			}
			if skew := skewPPM * 1e-6; skew > MinSkew {
				t.skew = skew
			}
		}
	}

	if t.cfg.LeapTimezoneName != "" {
		table, err := leapsectz.NewTable()
		if err != nil || !table.Probe() {
			log.Warningf("reftrack: leap timezone probe failed, disabling timezone-leap support: %v", err)
			t.leapTimezoneOK = false
		} else {
			t.leapTable = table
			t.leapTimezoneOK = true
		}
	}

	if t.cfg.LocalStratumEnabled {
		t.EnableLocal(t.cfg.LocalStratum)
	}

	t.clock.AddParameterChangeHandler(t.onParameterChange)

	t.writeTrackingLog(0, string(LeapUnsynchronised.Code()), 0)
	return nil
}

// Finalise clears the pending leap flag and flushes a dirty drift file.
func (t *Tracker) Finalise() {
	if t.pendingLeap != 0 {
		if err := t.clock.SetLeap(0); err != nil {
			log.Warningf("reftrack: failed to clear pending leap on shutdown: %v", err)
		}
		t.pendingLeap = 0
	}
	if t.driftDirty && t.cfg.DriftFilePath != "" {
		if err := t.flushDriftFile(); err != nil {
			log.Warningf("reftrack: failed to flush drift file on shutdown: %v", err)
		}
	}
	t.fbDrift = nil
}

// SetMode changes the operating mode. initStepThreshold is only consulted
// when mode is ModeInitStepSlew.
func (t *Tracker) SetMode(mode Mode, initStepThreshold float64) {
	t.mode = mode
	t.initStepThreshold = initStepThreshold
}

// SetModeEndHandler installs the callback invoked when a one-shot mode
// completes.
func (t *Tracker) SetModeEndHandler(h ModeEndHandler) {
	t.modeEndHandler = h
}

// ModifyMaxupdateskew updates the skew gate at runtime. ppm is converted
// to a fraction internally, matching reference.c's
// new_max_update_skew * 1.0e-6.
func (t *Tracker) ModifyMaxupdateskew(ppm float64) {
	t.cfg.MaxUpdateSkewPPM = ppm
}

// EnableLocal turns on the local-stratum fallback used by
// GetReferenceParams/GetOurStratum when no source is synchronised.
func (t *Tracker) EnableLocal(stratum uint16) {
	t.localActive = true
	t.localStratum = stratum
}

// DisableLocal turns off the local-stratum fallback.
func (t *Tracker) DisableLocal() {
	t.localActive = false
}

// IsLocalActive reports whether the local-stratum fallback is enabled.
func (t *Tracker) IsLocalActive() bool {
	return t.localActive
}

// GetOurStratum returns our_stratum when synchronised, else the local
// stratum if enabled, else UnsynchronisedStratum.
func (t *Tracker) GetOurStratum() uint16 {
	if t.synchronised {
		return t.stratum
	}
	if t.localActive {
		return t.localStratum
	}
	return UnsynchronisedStratum
}

// ReferenceParams is the result of GetReferenceParams.
type ReferenceParams struct {
	Synchronised   bool
	Leap           LeapStatus
	Stratum        uint16
	RefID          uint32
	RefTime        time.Time
	RootDelay      float64
	RootDispersion float64
}

// GetReferenceParams answers an upstream-style query as of localTime.
func (t *Tracker) GetReferenceParams(localTime time.Time) ReferenceParams {
	if t.synchronised {
		extra := (t.skew + absFloat(t.residualFreq) + t.clock.GetMaxClockError()) * localTime.Sub(t.refTime).Seconds()
		return ReferenceParams{
			Synchronised:   true,
			Leap:           t.leapStatus,
			Stratum:        t.stratum,
			RefID:          t.refID,
			RefTime:        t.refTime,
			RootDelay:      t.rootDelay,
			RootDispersion: t.rootDispersion + extra,
		}
	}
	if t.localActive {
		return ReferenceParams{
			Synchronised:   false,
			Leap:           LeapNormal,
			Stratum:        t.localStratum,
			RefID:          LocalReferenceID,
			RefTime:        localTime.Add(-time.Second),
			RootDelay:      0,
			RootDispersion: t.clock.GetSysPrecisionAsQuantum().Seconds(),
		}
	}
	return ReferenceParams{
		Synchronised:   false,
		Leap:           LeapUnsynchronised,
		Stratum:        0,
		RootDelay:      1.0,
		RootDispersion: 1.0,
	}
}

// OffsetHistory returns the most recent offsets in oldest-first order, for
// diagnostics; it holds at most rmsHistorySize entries, the same ring
// buffer shape servo/pi.go's PiServoFilter keeps for its offset samples.
func (t *Tracker) OffsetHistory() []float64 {
	var out []float64
	t.rmsHistory.Do(func(v any) {
		if v == nil {
			return
		}
		out = append(out, v.(float64))
	})
	return out
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
