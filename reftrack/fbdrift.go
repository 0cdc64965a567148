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
	"time"
)

const fbDriftDivergencePPM = 10.0

func (t *Tracker) slotTimescale(i int) float64 {
	return math.Pow(2, float64(i+t.cfg.FbDriftMin))
}

// updateFbDrifts folds a successful sync into every slot of the ladder.
// Slots diverging from the new sample by more than 10ppm are reset
// first; then each slot uses a weighted mean (new sample weighted
// by half the update interval) until it saturates at its own timescale,
// then switches to an EMA with smoothing factor 1-exp(-interval/tau).
//
// Stale entries accumulated while unsynchronised are never reset on
// resync: reference.c carries a commented-out reset of exactly this kind,
// left disabled. This keeps the same behaviour rather than silently
// changing it.
func (t *Tracker) updateFbDrifts(freqPPM, updateInterval float64) {
	t.nextFbDrift = 0
	if t.haveFbTimeout {
		t.sched.RemoveTimeout(t.fbTimeoutID)
		t.haveFbTimeout = false
	}

	prevInterval := t.lastRefUpdateInterval
	if updateInterval < 0 || (prevInterval > 0 && updateInterval > 4*prevInterval) {
		return
	}

	for i := range t.fbDrift {
		slot := &t.fbDrift[i]
		tau := t.slotTimescale(i)

		if slot.AccumulatedSecs > 0 && absFloat(freqPPM-slot.FreqPPM) > fbDriftDivergencePPM {
			slot.FreqPPM = 0
			slot.AccumulatedSecs = 0
		}

		if slot.AccumulatedSecs < tau {
			weight := updateInterval / 2
			total := slot.AccumulatedSecs + weight
			if total <= 0 {
				slot.FreqPPM = freqPPM
			} else {
				slot.FreqPPM = (slot.FreqPPM*slot.AccumulatedSecs + freqPPM*weight) / total
			}
			slot.AccumulatedSecs += updateInterval
		} else {
			alpha := 1 - math.Exp(-updateInterval/tau)
			slot.FreqPPM = alpha*freqPPM + (1-alpha)*slot.FreqPPM
		}
	}
}

// scheduleFbDrift picks the best-available slot to free-run at while
// unsynchronised and arms a timer to re-escalate to a more averaged slot
// once it becomes eligible. It does nothing while such a timer is already
// armed.
func (t *Tracker) scheduleFbDrift(now time.Time) {
	if len(t.fbDrift) == 0 || t.haveFbTimeout {
		return
	}
	unsync := 0.0
	if t.haveLastRefUpdate {
		unsync = now.Sub(t.lastRefUpdate).Seconds()
	}

	best := -1
	for i, slot := range t.fbDrift {
		tau := t.slotTimescale(i)
		saturated := slot.AccumulatedSecs >= tau
		eligible := tau <= unsync || i <= t.nextFbDrift
		if saturated && eligible {
			best = i
		}
	}
	if best >= 0 {
		if err := t.clock.SetAbsoluteFrequency(t.fbDrift[best].FreqPPM); err == nil {
			t.nextFbDrift = best + 1
		}
	}

	next := -1
	for i, slot := range t.fbDrift {
		tau := t.slotTimescale(i)
		if slot.AccumulatedSecs < tau {
			continue
		}
		eligible := tau <= unsync || i <= t.nextFbDrift
		if !eligible {
			next = i
			break
		}
	}
	if next < 0 || !t.haveLastRefUpdate {
		return
	}

	tau := t.slotTimescale(next)
	when := t.lastRefUpdate.Add(time.Duration(tau * float64(time.Second)))
	t.fbTimeoutID = t.sched.AddTimeout(when, t.fbDriftTimeout)
	t.haveFbTimeout = true
}

// fbDriftTimeout fires when a more-averaged slot becomes eligible; it
// applies that slot's frequency and recurses into SetUnsynchronised to
// arm the next escalation. Re-entrancy through SetUnsynchronised
// re-arming the timer is safe: the scheduler guarantees one-shot timers
// only fire once the prior callback has returned.
func (t *Tracker) fbDriftTimeout() {
	t.haveFbTimeout = false
	t.SetUnsynchronised()
}
