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

package clock

import (
	"fmt"
	"sync"
	"time"

	"github.com/frameclock/reftrack/reftrack"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// SystemClock adjusts CLOCK_REALTIME through clock_adjtime(2). It implements
// the LocalClock collaborator a reference-tracking core drives: reading raw
// time, accumulating frequency/offset corrections, stepping, and
// programming the kernel leap-second flag.
//
// Modelled on ptp/sptp/client/clock.go's Clock/SysClock split: a narrow
// interface plus one syscall-backed implementation.
type SystemClock struct {
	mu       sync.Mutex
	handlers []reftrack.ParameterChangeHandler
}

// NewSystemClock returns a SystemClock driving CLOCK_REALTIME.
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// ReadRawTime returns the current uncorrected CLOCK_REALTIME reading.
func (c *SystemClock) ReadRawTime() time.Time {
	return time.Now()
}

// GetOffsetCorrection returns the correction the kernel discipline is
// currently applying relative to raw time. CLOCK_REALTIME as read by
// time.Now() is already disciplined by the kernel PLL, so there is no
// separate raw/cooked split to report here; this mirrors chronyd's use of
// LCL_GetOffsetCorrection as a no-op when the system driver does its own
// slewing in the kernel.
func (c *SystemClock) GetOffsetCorrection(_ time.Time) (time.Duration, error) {
	return 0, nil
}

// ReadAbsoluteFrequency reads the clock's current frequency offset in ppm.
func (c *SystemClock) ReadAbsoluteFrequency() float64 {
	freqPPB, state, err := FrequencyPPB(unix.CLOCK_REALTIME)
	if err != nil {
		log.Warningf("clock: failed to read frequency: %v", err)
		return 0
	}
	if state != unix.TIME_OK {
		log.Debugf("clock state %d is not TIME_OK while reading frequency", state)
	}
	return freqPPB / 1000.0
}

// SetAbsoluteFrequency sets the clock's frequency offset, given in ppm.
func (c *SystemClock) SetAbsoluteFrequency(ppm float64) error {
	state, err := AdjFreqPPB(unix.CLOCK_REALTIME, ppm*1000.0)
	if err != nil {
		return err
	}
	if state != unix.TIME_OK {
		log.Warningf("clock state %d is not TIME_OK after setting frequency", state)
	}
	return nil
}

// AccumulateFrequencyAndOffset sets freqPPM as the new absolute frequency;
// it does not slew the given offset and does not use correctionRate, only
// reporting offset to the parameter-change handlers. The kernel PLL folds both the
// frequency discipline and a bounded slew of offset into one operation, so
// this sets the frequency directly and relies on the leftover offset being
// tracked by the caller via the parameter-change handlers.
func (c *SystemClock) AccumulateFrequencyAndOffset(freqPPM float64, offset time.Duration, correctionRate float64) error {
	raw := c.ReadRawTime()
	if err := c.SetAbsoluteFrequency(freqPPM); err != nil {
		return err
	}
	c.notify(raw, raw.Add(offset), freqPPM, offset, reftrack.ChangeAdjust)
	return nil
}

// AccumulateOffset reports offset to the registered parameter-change
// handlers without touching frequency; it does not slew CLOCK_REALTIME and
// does not use correctionRate.
func (c *SystemClock) AccumulateOffset(offset time.Duration, correctionRate float64) error {
	raw := c.ReadRawTime()
	c.notify(raw, raw.Add(offset), 0, offset, reftrack.ChangeAdjust)
	return nil
}

// ApplyStepOffset steps CLOCK_REALTIME instantaneously by offset.
func (c *SystemClock) ApplyStepOffset(offset time.Duration) error {
	raw := c.ReadRawTime()
	state, err := Step(unix.CLOCK_REALTIME, offset)
	if err != nil {
		return err
	}
	if state != unix.TIME_OK {
		log.Warningf("clock state %d is not TIME_OK after stepping", state)
	}
	c.notify(raw, raw.Add(offset), 0, offset, reftrack.ChangeUnknownStep)
	return nil
}

// SetLeap programs the kernel's pending leap-second flag via the
// STA_INS/STA_DEL status bits: sec is -1 (delete), 0 (none) or +1 (insert).
func (c *SystemClock) SetLeap(sec int) error {
	tx := &unix.Timex{}
	switch sec {
	case 0:
		tx.Status = 0
	case 1:
		tx.Status = unix.STA_INS
	case -1:
		tx.Status = unix.STA_DEL
	default:
		return fmt.Errorf("clock: invalid leap second value %d", sec)
	}
	tx.Modes = unix.ADJ_STATUS
	state, err := Adjtime(unix.CLOCK_REALTIME, tx)
	if err != nil {
		return err
	}
	if state != unix.TIME_OK && state != unix.TIME_INS && state != unix.TIME_DEL {
		log.Debugf("clock state %d after programming leap flag %d", state, sec)
	}
	return nil
}

// GetMaxClockError returns the clock's maximum frequency adjustment
// tolerance expressed as a fractional error (seconds/second).
func (c *SystemClock) GetMaxClockError() float64 {
	freqPPB, _, err := MaxFreqPPB(unix.CLOCK_REALTIME)
	if err != nil {
		log.Warningf("clock: failed to read max frequency: %v", err)
		return 0
	}
	return freqPPB * 1e-9
}

// GetSysPrecisionAsQuantum returns the clock's reporting quantum in seconds,
// derived from CLOCK_REALTIME's resolution.
func (c *SystemClock) GetSysPrecisionAsQuantum() time.Duration {
	var res unix.Timespec
	if err := unix.ClockGetres(unix.CLOCK_REALTIME, &res); err != nil {
		log.Warningf("clock: failed to read clock resolution: %v", err)
		return time.Microsecond
	}
	quantum := time.Duration(res.Nano())
	if quantum <= 0 {
		return time.Microsecond
	}
	return quantum
}

// AddParameterChangeHandler registers a callback invoked on every slew or
// step applied through this clock.
func (c *SystemClock) AddParameterChangeHandler(h reftrack.ParameterChangeHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

func (c *SystemClock) notify(raw, cooked time.Time, dfreq float64, doffset time.Duration, change reftrack.ChangeType) {
	c.mu.Lock()
	handlers := make([]reftrack.ParameterChangeHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()
	for _, h := range handlers {
		h(raw, cooked, dfreq, doffset, change)
	}
}

// NullClock is a no-op LocalClock, for tests and for PrintOnce-style
// observation modes that must not touch the real clock. Modelled on
// ptp/sptp/client/clock.go's FreeRunningClock.
type NullClock struct {
	mu       sync.Mutex
	freq     float64
	handlers []reftrack.ParameterChangeHandler
}

// NewNullClock returns a NullClock starting at the given absolute frequency.
func NewNullClock(freqPPM float64) *NullClock {
	return &NullClock{freq: freqPPM}
}

// ReadRawTime returns the wall clock time, unmodified.
func (c *NullClock) ReadRawTime() time.Time { return time.Now() }

// GetOffsetCorrection always reports no pending correction.
func (c *NullClock) GetOffsetCorrection(_ time.Time) (time.Duration, error) { return 0, nil }

// ReadAbsoluteFrequency returns the frequency last set by test code.
func (c *NullClock) ReadAbsoluteFrequency() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freq
}

// SetAbsoluteFrequency records the frequency without touching any hardware.
func (c *NullClock) SetAbsoluteFrequency(ppm float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.freq = ppm
	return nil
}

// AccumulateFrequencyAndOffset records the frequency and fires handlers.
func (c *NullClock) AccumulateFrequencyAndOffset(freqPPM float64, offset time.Duration, _ float64) error {
	_ = c.SetAbsoluteFrequency(freqPPM)
	raw := c.ReadRawTime()
	c.notify(raw, raw.Add(offset), freqPPM, offset, reftrack.ChangeAdjust)
	return nil
}

// AccumulateOffset fires handlers without touching frequency.
func (c *NullClock) AccumulateOffset(offset time.Duration, _ float64) error {
	raw := c.ReadRawTime()
	c.notify(raw, raw.Add(offset), 0, offset, reftrack.ChangeAdjust)
	return nil
}

// ApplyStepOffset fires handlers as an unknown-step change.
func (c *NullClock) ApplyStepOffset(offset time.Duration) error {
	raw := c.ReadRawTime()
	c.notify(raw, raw.Add(offset), 0, offset, reftrack.ChangeUnknownStep)
	return nil
}

// SetLeap is a no-op.
func (c *NullClock) SetLeap(_ int) error { return nil }

// GetMaxClockError returns a conservative constant.
func (c *NullClock) GetMaxClockError() float64 { return 1e-6 }

// GetSysPrecisionAsQuantum returns a conservative constant.
func (c *NullClock) GetSysPrecisionAsQuantum() time.Duration { return time.Microsecond }

// AddParameterChangeHandler registers a callback for tests to observe.
func (c *NullClock) AddParameterChangeHandler(h reftrack.ParameterChangeHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

func (c *NullClock) notify(raw, cooked time.Time, dfreq float64, doffset time.Duration, change reftrack.ChangeType) {
	c.mu.Lock()
	handlers := make([]reftrack.ParameterChangeHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()
	for _, h := range handlers {
		h(raw, cooked, dfreq, doffset, change)
	}
}
