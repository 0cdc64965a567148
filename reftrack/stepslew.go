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

import log "github.com/sirupsen/logrus"

// isOffsetOK implements the warm-up/oversized-offset gate. It returns false
// when the update must be dropped; in that case it has already taken the
// appropriate side effect (ending the reference mode, or just decrementing
// the ignore counter).
func (t *Tracker) isOffsetOK(offset float64) bool {
	if t.cfg.MaxOffsetDelay < 0 {
		return true
	}
	if t.offsetDelayCounter > 0 {
		t.offsetDelayCounter--
		return true
	}
	if absFloat(offset) <= t.cfg.MaxOffset {
		return true
	}
	log.Warningf("reftrack: offset %.6f exceeds max_offset %.6f", offset, t.cfg.MaxOffset)
	if t.offsetIgnoreCounter == 0 {
		t.endRefMode(false)
		return false
	}
	if t.offsetIgnoreCounter > 0 {
		t.offsetIgnoreCounter--
	}
	return false
}

// isStepLimitReached implements the finite step budget: make_step_limit==0
// never steps; a positive budget is burned down by one on each call
// (typically during startup), and steps only when the slew-vs-step gap
// exceeds make_step_threshold. A negative budget (the teacher-config
// convention for "unlimited") never runs out.
func (t *Tracker) isStepLimitReached(offset, uncorrectedOffset float64) bool {
	if t.cfg.MakeStepLimit == 0 {
		return false
	}
	if t.cfg.MakeStepLimit > 0 {
		if t.stepLimitBudget <= 0 {
			return false
		}
		t.stepLimitBudget--
	}
	return absFloat(offset-uncorrectedOffset) > t.cfg.MakeStepThreshold
}
