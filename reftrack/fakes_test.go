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
	"fmt"
	"time"
)

// fakeClock is a LocalClock test double: it never touches real hardware
// and lets tests assert exactly which calls were made, the way
// ptp/sptp/client tests fake the Clock interface.
type fakeClock struct {
	now         time.Time
	freqPPM     float64
	maxFreqErr  float64
	quantum     time.Duration
	offsetCorr  time.Duration
	pendingLeap int

	accumulateFreqOffsetCalls []accumulateFreqOffsetCall
	accumulateOffsetCalls     []accumulateOffsetCall
	stepCalls                 []time.Duration

	handlers []ParameterChangeHandler
}

type accumulateFreqOffsetCall struct {
	freqPPM float64
	offset  time.Duration
	rate    float64
}

type accumulateOffsetCall struct {
	offset time.Duration
	rate   float64
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now, maxFreqErr: 1e-6, quantum: time.Microsecond}
}

func (c *fakeClock) ReadRawTime() time.Time { return c.now }

func (c *fakeClock) GetOffsetCorrection(_ time.Time) (time.Duration, error) {
	return c.offsetCorr, nil
}

func (c *fakeClock) ReadAbsoluteFrequency() float64 { return c.freqPPM }

func (c *fakeClock) SetAbsoluteFrequency(ppm float64) error {
	c.freqPPM = ppm
	return nil
}

func (c *fakeClock) AccumulateFrequencyAndOffset(freqPPM float64, offset time.Duration, rate float64) error {
	c.freqPPM = freqPPM
	c.accumulateFreqOffsetCalls = append(c.accumulateFreqOffsetCalls, accumulateFreqOffsetCall{freqPPM, offset, rate})
	return nil
}

func (c *fakeClock) AccumulateOffset(offset time.Duration, rate float64) error {
	c.accumulateOffsetCalls = append(c.accumulateOffsetCalls, accumulateOffsetCall{offset, rate})
	return nil
}

func (c *fakeClock) ApplyStepOffset(offset time.Duration) error {
	c.stepCalls = append(c.stepCalls, offset)
	c.now = c.now.Add(offset)
	for _, h := range c.handlers {
		h(c.now, c.now, 0, offset, ChangeUnknownStep)
	}
	return nil
}

func (c *fakeClock) SetLeap(sec int) error {
	c.pendingLeap = sec
	return nil
}

func (c *fakeClock) GetMaxClockError() float64 { return c.maxFreqErr }

func (c *fakeClock) GetSysPrecisionAsQuantum() time.Duration { return c.quantum }

func (c *fakeClock) AddParameterChangeHandler(h ParameterChangeHandler) {
	c.handlers = append(c.handlers, h)
}

// fakeScheduler is a Scheduler test double that records timers without
// ever firing them; tests fire callbacks explicitly by id.
type fakeScheduler struct {
	nextID    TimeoutID
	callbacks map[TimeoutID]func()
	removed   []TimeoutID
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{callbacks: make(map[TimeoutID]func())}
}

func (s *fakeScheduler) AddTimeout(_ time.Time, cb func()) TimeoutID {
	s.nextID++
	s.callbacks[s.nextID] = cb
	return s.nextID
}

func (s *fakeScheduler) RemoveTimeout(id TimeoutID) {
	delete(s.callbacks, id)
	s.removed = append(s.removed, id)
}

// fakeLogSink records tracking-log lines instead of writing to disk.
type fakeLogSink struct {
	lines []string
}

func (l *fakeLogSink) FileOpen(_, _ string) (LogFileID, error) { return 0, nil }

func (l *fakeLogSink) FileWrite(_ LogFileID, line string) {
	l.lines = append(l.lines, line)
}

// fakeMailer records notifications instead of invoking a real mailer.
type fakeMailer struct {
	notifications []string
}

func (m *fakeMailer) Notify(subject, body, user string) error {
	m.notifications = append(m.notifications, fmt.Sprintf("%s|%s|%s", subject, body, user))
	return nil
}

func testConfig() *Config {
	return &Config{
		MaxUpdateSkewPPM:    1000,
		CorrectionTimeRatio: 3,
		MakeStepLimit:       -1,
		MakeStepThreshold:   0.1,
		MaxOffsetDelay:      -1,
		MaxOffsetIgnore:     0,
		MaxOffset:           1.0,
		LogChangeThreshold:  1.0,
		MailChangeThreshold: 10.0,
		MailUser:            "root",
		FbDriftMin:          0,
		FbDriftMax:          3,
	}
}

func newTestTracker() (*Tracker, *fakeClock, *fakeScheduler, *fakeLogSink, *fakeMailer) {
	clk := newFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sched := newFakeScheduler()
	logs := &fakeLogSink{}
	mailer := &fakeMailer{}
	tr := New(testConfig(), clk, sched, logs, mailer)
	_ = tr.Initialise()
	return tr, clk, sched, logs, mailer
}
