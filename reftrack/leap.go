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
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/frameclock/reftrack/leapsectz"
)

// resolveLeap merges the source-reported leap bits with the optional
// system leap table and the calendar-day window, following reference.c's
// get_tz_leap/update_leap_status. A leap is accepted only on the last day
// of June or the last day of December, UTC; anything else is demoted to
// LeapNormal. If a timezone table is configured and the source reports
// Normal, the table is consulted (and may promote Normal to Insert).
func (t *Tracker) resolveLeap(sourceLeap LeapStatus, when time.Time) LeapStatus {
	leap := sourceLeap

	if t.leapTimezoneOK && sourceLeap == LeapNormal {
		switch t.tzLeapStatus(when) {
		case leapsectz.StatusInsert:
			leap = LeapInsertSecond
		case leapsectz.StatusDelete:
			leap = LeapDeleteSecond
		}
	}

	if leap == LeapInsertSecond || leap == LeapDeleteSecond {
		day := time.Date(when.UTC().Year(), when.UTC().Month(), when.UTC().Day(), 0, 0, 0, 0, time.UTC)
		if !leapsectz.IsLeapSecondDay(day) {
			leap = LeapNormal
		}
	}

	return leap
}

// tzLeapStatus delegates to the leap table, which caches its lookups in
// 12-hour buckets, matching reference.c's "check at most twice a day".
func (t *Tracker) tzLeapStatus(when time.Time) leapsectz.Status {
	return t.leapTable.StatusOn(when)
}

// applyLeap programs the local clock's pending leap flag if it differs
// from what is currently programmed, and records the new value.
func (t *Tracker) applyLeap(leap LeapStatus) {
	var sec int
	switch leap {
	case LeapInsertSecond:
		sec = 1
	case LeapDeleteSecond:
		sec = -1
	default:
		sec = 0
	}
	if sec == t.pendingLeap {
		return
	}
	if err := t.clock.SetLeap(sec); err != nil {
		log.Warningf("reftrack: failed to program leap second %d: %v", sec, err)
		return
	}
	t.pendingLeap = sec
}
