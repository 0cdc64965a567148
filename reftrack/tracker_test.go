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
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestColdStartNoDriftFile(t *testing.T) {
	tr, clk, _, _, _ := newTestTracker()
	params := tr.GetReferenceParams(clk.now)
	require.False(t, params.Synchronised)
	require.Equal(t, uint16(0), params.Stratum)
	require.Equal(t, LeapUnsynchronised, params.Leap)
	require.Equal(t, 1.0, params.RootDelay)
	require.Equal(t, 1.0, params.RootDispersion)
}

func TestFirstSuccessfulSync(t *testing.T) {
	tr, clk, _, _, _ := newTestTracker()
	refTime := clk.now

	tr.SetReference(2, LeapNormal, 1, 0x0A000001, netip.Addr{}, refTime, 0.005, 0.001, 1e-6, 1e-7, 0, 0)

	require.True(t, tr.synchronised)
	require.Equal(t, uint16(3), tr.stratum)
	require.Equal(t, uint16(3), tr.GetOurStratum())
	require.GreaterOrEqual(t, tr.skew, 1e-7)
	require.Len(t, clk.accumulateFreqOffsetCalls, 1)
	require.InDelta(t, 0.0, clk.accumulateFreqOffsetCalls[0].rate, 1e-12)
}

func TestStepDecisionBudgetExhaustsAfterOneStep(t *testing.T) {
	clk := newFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sched := newFakeScheduler()
	cfg := testConfig()
	cfg.MakeStepLimit = 1
	cfg.MakeStepThreshold = 0.1
	tr := New(cfg, clk, sched, &fakeLogSink{}, &fakeMailer{})
	require.NoError(t, tr.Initialise())

	refTime := clk.now
	tr.SetReference(1, LeapNormal, 1, 1, netip.Addr{}, refTime, 0.5, 0.001, 0, 1e-6, 0, 0)
	require.Len(t, clk.stepCalls, 1)

	clk.now = refTime
	tr.SetReference(1, LeapNormal, 1, 1, netip.Addr{}, refTime, 0.5, 0.001, 0, 1e-6, 0, 0)
	require.Len(t, clk.stepCalls, 1, "budget exhausted, no further step")
}

func TestMaxOffsetBreachEndsReferenceMode(t *testing.T) {
	clk := newFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sched := newFakeScheduler()
	cfg := testConfig()
	cfg.MaxOffset = 0.01
	cfg.MaxOffsetDelay = 0
	cfg.MaxOffsetIgnore = 0
	tr := New(cfg, clk, sched, &fakeLogSink{}, &fakeMailer{})
	require.NoError(t, tr.Initialise())

	var endedSuccess *bool
	tr.SetModeEndHandler(func(success bool) { endedSuccess = &success })

	tr.SetReference(1, LeapNormal, 1, 1, netip.Addr{}, clk.now, 1.0, 0.001, 0, 1e-6, 0, 0)

	require.NotNil(t, endedSuccess)
	require.False(t, *endedSuccess)
	require.Equal(t, ModeIgnore, tr.mode)
}

func TestInitStepSlewOneShot(t *testing.T) {
	tr, clk, _, _, _ := newTestTracker()
	var endedSuccess *bool
	tr.SetModeEndHandler(func(success bool) { endedSuccess = &success })
	tr.SetMode(ModeInitStepSlew, 1.0)

	tr.SetReference(1, LeapNormal, 1, 1, netip.Addr{}, clk.now, 2.0, 0.001, 0, 1e-6, 0, 0)

	require.Len(t, clk.stepCalls, 1)
	require.Equal(t, 2*time.Second, clk.stepCalls[0])
	require.NotNil(t, endedSuccess)
	require.True(t, *endedSuccess)
	require.Equal(t, ModeIgnore, tr.mode)
}

func TestLeapInsertAtEndOfJuneDemotedOutsideWindow(t *testing.T) {
	tr, clk, _, _, _ := newTestTracker()

	insertDay := time.Date(2008, time.June, 30, 12, 0, 0, 0, time.UTC)
	clk.now = insertDay
	tr.SetReference(1, LeapInsertSecond, 1, 1, netip.Addr{}, insertDay, 0, 0.001, 0, 1e-6, 0, 0)
	require.Equal(t, LeapInsertSecond, tr.leapStatus)
	require.Equal(t, 1, clk.pendingLeap)

	outsideWindow := time.Date(2008, time.July, 1, 12, 0, 0, 0, time.UTC)
	clk.now = outsideWindow
	tr.SetReference(1, LeapInsertSecond, 1, 1, netip.Addr{}, outsideWindow, 0, 0.001, 0, 1e-6, 0, 0)
	require.Equal(t, LeapNormal, tr.leapStatus)
	require.Equal(t, 0, clk.pendingLeap)
}

func TestSetUnsynchronisedIdempotent(t *testing.T) {
	tr, clk, _, _, _ := newTestTracker()
	tr.SetReference(1, LeapNormal, 1, 1, netip.Addr{}, clk.now, 0.001, 0.001, 0, 1e-6, 0, 0)

	tr.SetUnsynchronised()
	first := tr.leapStatus
	firstSync := tr.synchronised

	tr.SetUnsynchronised()
	require.Equal(t, first, tr.leapStatus)
	require.Equal(t, firstSync, tr.synchronised)
}

func TestSetManualReferenceStaysUnsynchronised(t *testing.T) {
	tr, clk, _, _, _ := newTestTracker()

	tr.SetManualReference(clk.now, 0.001, 0, 1e-6)

	require.False(t, tr.synchronised)
	require.Equal(t, LeapUnsynchronised, tr.leapStatus)
	require.Equal(t, UnsynchronisedStratum, tr.GetOurStratum())
}

func TestBogusSkewDropsUpdate(t *testing.T) {
	tr, clk, _, _, _ := newTestTracker()
	tr.SetReference(1, LeapNormal, 1, 1, netip.Addr{}, clk.now, 0.001, 0.001, 0, 0, 0, 0)

	require.False(t, tr.synchronised)
	require.Empty(t, clk.accumulateFreqOffsetCalls)
	require.Empty(t, clk.accumulateOffsetCalls)
}

func TestDriftFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/drift"

	clk := newFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := testConfig()
	cfg.DriftFilePath = path
	tr := New(cfg, clk, newFakeScheduler(), &fakeLogSink{}, &fakeMailer{})
	require.NoError(t, tr.Initialise())

	clk.freqPPM = 12.345
	tr.skew = 6.789e-6
	require.NoError(t, tr.flushDriftFile())

	freqPPM, skewPPM, err := readDriftFile(path)
	require.NoError(t, err)
	require.InDelta(t, 12.345, freqPPM, 1e-4)
	require.InDelta(t, 6.789, skewPPM, 1e-4)
}
