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
	"net/netip"
	"time"

	log "github.com/sirupsen/logrus"
)

const avg2OffsetAlpha = 0.3

// SetReference is the main entry point: the selector hands in a single
// accepted measurement and this fuses it into the running estimate,
// decides step-vs-slew, drives the local clock, the leap flag, the drift
// file and the tracking log. A call that returns normally has fully
// committed every effect before returning; there is no reordering between
// the local-clock call and the logging of its result.
func (t *Tracker) SetReference(
	stratum uint16,
	leap LeapStatus,
	combinedSources int,
	refID uint32,
	refIP netip.Addr,
	refTime time.Time,
	offset, offsetSD, frequency, skew, rootDelay, rootDispersion float64,
) {
	if t.mode != ModeNormal {
		t.specialModeSync(true, offset)
		return
	}

	ratio := (skew + skew) / skew
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio < 1.9 || ratio > 2.1 {
		log.Warningf("reftrack: bogus skew %v, dropping update", skew)
		return
	}

	acceptedLeap := t.resolveLeap(leap, refTime)

	raw := t.clock.ReadRawTime()
	uncorrected, err := t.clock.GetOffsetCorrection(raw)
	if err != nil {
		log.Warningf("reftrack: failed to read offset correction: %v", err)
		uncorrected = 0
	}
	cooked := raw.Add(uncorrected)

	elapsed := cooked.Sub(refTime).Seconds()
	ourOffset := offset + elapsed*frequency

	if !t.isOffsetOK(ourOffset) {
		return
	}

	uncorrectedSecs := uncorrected.Seconds()
	willStep := t.isStepLimitReached(ourOffset, uncorrectedSecs)

	var accumulateOffset, stepOffset float64
	if willStep {
		accumulateOffset = uncorrectedSecs
		stepOffset = ourOffset - uncorrectedSecs
	} else {
		accumulateOffset = ourOffset
		stepOffset = 0
	}

	updateInterval := 0.0
	if t.haveLastRefUpdate {
		updateInterval = cooked.Sub(t.lastRefUpdate).Seconds()
	}
	correctionRate := t.cfg.CorrectionTimeRatio * 0.5 * offsetSD * updateInterval

	skewGateOK := absFloat(skew) < t.cfg.maxUpdateSkew() || acceptedLeap == LeapUnsynchronised

	if skewGateOK {
		oldWeight := 0.0
		if t.synchronised {
			oldWeight = 1 / (t.skew * t.skew)
		}
		newWeight := 3 / (skew * skew)
		totalWeight := oldWeight + newWeight

		ourFrequency := (0*oldWeight + frequency*newWeight) / totalWeight
		dispersion := math.Sqrt((oldWeight*ourFrequency*ourFrequency + newWeight*(frequency-ourFrequency)*(frequency-ourFrequency)) / totalWeight)
		combinedSkew := dispersion + (oldWeight*t.skew+newWeight*skew)/totalWeight

		t.residualFreq = frequency - ourFrequency
		t.skew = math.Max(combinedSkew, MinSkew)

		if err := t.clock.AccumulateFrequencyAndOffset(ourFrequency, durationFromSeconds(accumulateOffset), correctionRate); err != nil {
			log.Warningf("reftrack: failed to accumulate frequency and offset: %v", err)
		}
	} else {
		t.residualFreq = frequency
		if err := t.clock.AccumulateOffset(durationFromSeconds(accumulateOffset), correctionRate); err != nil {
			log.Warningf("reftrack: failed to accumulate offset: %v", err)
		}
	}

	if willStep {
		if err := t.clock.ApplyStepOffset(durationFromSeconds(stepOffset)); err != nil {
			log.Warningf("reftrack: failed to apply step offset: %v", err)
		}
	}

	t.applyLeap(acceptedLeap)

	t.synchronised = acceptedLeap != LeapUnsynchronised
	t.leapStatus = acceptedLeap
	t.stratum = stratum + 1
	t.refID = refID
	t.refIP = refIP
	t.refTime = refTime
	t.rootDelay = rootDelay
	t.rootDispersion = rootDispersion
	t.lastOffset = ourOffset
	t.rmsHistory.Value = ourOffset
	t.rmsHistory = t.rmsHistory.Next()

	if !t.avg2Moving {
		t.avg2Offset = ourOffset * ourOffset
		t.avg2Moving = true
	} else {
		t.avg2Offset = avg2OffsetAlpha*ourOffset*ourOffset + (1-avg2OffsetAlpha)*t.avg2Offset
	}

	t.updateFbDrifts(t.clock.ReadAbsoluteFrequency(), updateInterval)
	t.accumulateDriftAge(updateInterval)

	t.lastRefUpdateInterval = updateInterval
	t.lastRefUpdate = cooked
	t.haveLastRefUpdate = true

	t.writeTrackingLog(combinedSources, string(acceptedLeap.Code()), uncorrectedSecs)
	t.maybeLogOffset(ourOffset, refTime)
}

// SetManualReference is equivalent to SetReference with a synthetic
// manual source: leap Unsynchronised (so the skew gate never blocks it),
// stratum 0 (so our_stratum becomes 1), the 'MANU' reference id, no
// known address, and zero path delay/dispersion.
func (t *Tracker) SetManualReference(refTime time.Time, offset, frequency, skew float64) {
	t.SetReference(0, LeapUnsynchronised, 1, ManualReferenceID, netip.Addr{}, refTime, offset, 0, frequency, skew, 0, 0)
}
