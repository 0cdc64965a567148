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

import "time"

// ChangeType describes why a parameter-change handler was invoked.
type ChangeType uint8

// Change kinds a slew observer may see.
const (
	ChangeAdjust ChangeType = iota
	ChangeUnknownStep
)

// ParameterChangeHandler observes every slew or step applied to the clock.
type ParameterChangeHandler func(raw, cooked time.Time, dfreq float64, doffset time.Duration, change ChangeType)

// LocalClock is the narrow interface the reference tracking core uses to
// steer the system (or PHC, or any other) clock. A concrete implementation
// is provided in package clock; tests use a fake.
type LocalClock interface {
	// ReadRawTime returns the current uncorrected clock reading.
	ReadRawTime() time.Time
	// GetOffsetCorrection returns the correction currently being applied
	// relative to raw time.
	GetOffsetCorrection(raw time.Time) (time.Duration, error)
	// ReadAbsoluteFrequency returns the clock's current frequency error, ppm.
	ReadAbsoluteFrequency() float64
	// SetAbsoluteFrequency sets the clock's frequency error, ppm.
	SetAbsoluteFrequency(ppm float64) error
	// AccumulateFrequencyAndOffset applies a new frequency and slews offset
	// at correctionRate.
	AccumulateFrequencyAndOffset(freqPPM float64, offset time.Duration, correctionRate float64) error
	// AccumulateOffset slews offset at correctionRate without changing frequency.
	AccumulateOffset(offset time.Duration, correctionRate float64) error
	// ApplyStepOffset steps the clock instantaneously by offset.
	ApplyStepOffset(offset time.Duration) error
	// SetLeap programs the pending leap second: -1, 0 or +1.
	SetLeap(sec int) error
	// GetMaxClockError returns the clock's maximum tolerated frequency
	// error as a fraction (seconds/second).
	GetMaxClockError() float64
	// GetSysPrecisionAsQuantum returns the clock's reporting quantum.
	GetSysPrecisionAsQuantum() time.Duration
	// AddParameterChangeHandler registers a slew observer.
	AddParameterChangeHandler(ParameterChangeHandler)
}

// TimeoutID identifies a scheduled one-shot timer, invalidated once fired
// or cancelled.
type TimeoutID uint64

// Scheduler provides the one-shot timers the fallback-drift ladder uses to
// re-escalate while unsynchronised.
type Scheduler interface {
	AddTimeout(when time.Time, cb func()) TimeoutID
	RemoveTimeout(id TimeoutID)
}

// LogFileID identifies a file opened through LogSink.
type LogFileID int

// LogSink is an append-only text log, matching fbclock/daemon's Logger
// shape: open once with a header, then append formatted lines.
type LogSink interface {
	FileOpen(name, header string) (LogFileID, error)
	FileWrite(id LogFileID, line string)
}

// Mailer sends an external notification when a large clock change occurs.
// The default implementation lives in package notify.
type Mailer interface {
	Notify(subject, body, user string) error
}

// ModeEndHandler is invoked when a one-shot mode completes; success
// indicates whether the one-shot action could be applied.
type ModeEndHandler func(success bool)
