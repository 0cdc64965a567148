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

// SetUnsynchronised declares that no usable source currently exists. In a
// one-shot mode it delegates to the mode state machine; otherwise it
// schedules the fallback-drift ladder, marks leap status Unsynchronised
// and logs a stub entry. Two consecutive calls leave state identical to
// one: scheduleFbDrift and the log line are idempotent given unchanged
// inputs.
func (t *Tracker) SetUnsynchronised() {
	if t.mode != ModeNormal {
		t.specialModeSync(false, 0)
		return
	}
	t.scheduleFbDrift(t.clock.ReadRawTime())
	t.synchronised = false
	t.leapStatus = LeapUnsynchronised
	t.writeTrackingLog(0, "?", 0)
}

// specialModeSync applies the one-shot action for the current mode (step
// or slew for InitStepSlew, a step for UpdateOnce, nothing for PrintOnce
// or Ignore) and then ends the mode.
func (t *Tracker) specialModeSync(valid bool, offset float64) {
	switch t.mode {
	case ModeInitStepSlew:
		if !valid {
			t.endRefMode(false)
			return
		}
		if absFloat(offset) >= t.initStepThreshold {
			_ = t.clock.ApplyStepOffset(durationFromSeconds(offset))
		} else {
			_ = t.clock.AccumulateOffset(durationFromSeconds(offset), 1.0)
		}
		t.endRefMode(true)
	case ModeUpdateOnce:
		if !valid {
			t.endRefMode(false)
			return
		}
		_ = t.clock.ApplyStepOffset(durationFromSeconds(offset))
		t.endRefMode(true)
	case ModePrintOnce:
		t.endRefMode(valid)
	case ModeIgnore:
		// absorb silently
	}
}

// endRefMode transitions to ModeIgnore and invokes the installed
// ModeEndHandler, if any, with the outcome of the one-shot action.
func (t *Tracker) endRefMode(success bool) {
	t.mode = ModeIgnore
	if t.modeEndHandler != nil {
		t.modeEndHandler(success)
	}
}
