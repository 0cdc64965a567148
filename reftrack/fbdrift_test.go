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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFallbackSlotSaturatesAndTracksFrequency(t *testing.T) {
	tr, _, _, _, _ := newTestTracker()
	tr.fbDrift = make([]FallbackSlot, 4) // fb_min=0..fb_max=3

	const freq = 5.0
	const interval = 1.0
	tau0 := tr.slotTimescale(0)

	elapsed := 0.0
	for elapsed < tau0*2 {
		tr.updateFbDrifts(freq, interval)
		elapsed += interval
	}

	require.InDelta(t, freq, tr.fbDrift[0].FreqPPM, 1e-6)
	require.GreaterOrEqual(t, tr.fbDrift[0].AccumulatedSecs, tau0)
}

func TestFallbackDriftsNotResetAcrossResync(t *testing.T) {
	tr, _, _, _, _ := newTestTracker()
	tr.fbDrift = []FallbackSlot{{FreqPPM: 3.0, AccumulatedSecs: 100}}

	tr.updateFbDrifts(3.0, 1.0)

	require.Equal(t, 3.0, tr.fbDrift[0].FreqPPM)
	require.Greater(t, tr.fbDrift[0].AccumulatedSecs, 0.0)
}

func TestFallbackSlotDivergenceResetsAccumulator(t *testing.T) {
	tr, _, _, _, _ := newTestTracker()
	tr.fbDrift = []FallbackSlot{{FreqPPM: 3.0, AccumulatedSecs: 100}}

	tr.updateFbDrifts(30.0, 1.0)

	require.Less(t, tr.fbDrift[0].AccumulatedSecs, 100.0)
}
