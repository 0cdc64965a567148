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
	"net/netip"
	"time"

	log "github.com/sirupsen/logrus"
)

const trackingLogHeader = "   Date (UTC) Time     IP Address   St   Freq ppm   Skew ppm         Offset L Co  Offset sd    Rem. corr."

// writeTrackingLog appends one fixed-width tracking-log line, matching the
// teacher's habit of logging the settled frequency/offset immediately
// after the clock call that produced them, with no reordering between the
// two.
func (t *Tracker) writeTrackingLog(combinedSources int, leapCode string, uncorrectedOffset float64) {
	if t.logs == nil {
		return
	}
	if !t.haveLogFile {
		id, err := t.logs.FileOpen("tracking", trackingLogHeader)
		if err != nil {
			log.Warningf("reftrack: failed to open tracking log: %v", err)
			return
		}
		t.logFileID = id
		t.haveLogFile = true
	}

	ref := refLabel(t.refID, t.refIP)
	line := fmt.Sprintf("%s  %15s  %2d  %10.3f  %10.3f  %10.3e  %1s  %2d  %10.3e  %10.3e",
		t.refTime.UTC().Format("2006-01-02 15:04:05"),
		ref,
		t.stratum,
		t.clock.ReadAbsoluteFrequency(),
		t.skew*1e6,
		t.lastOffset,
		leapCode,
		combinedSources,
		0.0,
		uncorrectedOffset,
	)
	t.logs.FileWrite(t.logFileID, line)
}

func refLabel(refID uint32, refIP netip.Addr) string {
	if refIP.IsValid() {
		return refIP.String()
	}
	return fmt.Sprintf("%08X", refID)
}

// maybeLogOffset emits the warning-level syslog record and, if the offset
// is large enough, an external mail notification. The sign convention
// matches reference.c's maybe_log_offset: a positive offset means the
// local clock is fast, so the correction actually applied is -offset, and
// that is what gets reported as "the adjustment".
func (t *Tracker) maybeLogOffset(offset float64, refTime time.Time) {
	if absFloat(offset) > t.cfg.LogChangeThreshold {
		log.Warningf("reftrack: large time adjustment %.6f sec on reference update", -offset)
	}
	if t.mailer == nil || absFloat(offset) <= t.cfg.MailChangeThreshold {
		return
	}
	subject := "Large time adjustment"
	body := fmt.Sprintf("Time adjustment of %.6f seconds applied at %s",
		-offset, refTime.UTC().Format(time.RFC3339))
	if err := t.mailer.Notify(subject, body, t.cfg.MailUser); err != nil {
		log.Errorf("reftrack: mail notification failed: %v", err)
	}
}

// onParameterChange is the slew observer registered with the local clock
// at Initialise time. Its sole duty is to keep lastRefUpdate consistent
// across clock steps: an UnknownStep zeroes it out, any other change
// shifts it by the reported offset.
func (t *Tracker) onParameterChange(raw, cooked time.Time, dfreq float64, doffset time.Duration, change ChangeType) {
	if !t.haveLastRefUpdate {
		return
	}
	if change == ChangeUnknownStep {
		t.haveLastRefUpdate = false
		return
	}
	t.lastRefUpdate = t.lastRefUpdate.Add(doffset)
}
