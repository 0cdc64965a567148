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
	"os"
	"syscall"

	log "github.com/sirupsen/logrus"
)

const driftFileFlushInterval = 3600.0

// readDriftFile parses the two whitespace-separated floats (freq_ppm,
// skew_ppm) persisted across restarts. skew is stored in the same units
// it is read back in: ppm, converted to a fraction by the caller.
func readDriftFile(path string) (freqPPM, skewPPM float64, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}
	if _, err := fmt.Sscanf(string(data), "%f %f", &freqPPM, &skewPPM); err != nil {
		return 0, 0, fmt.Errorf("reftrack: malformed drift file %s: %w", path, err)
	}
	return freqPPM, skewPPM, nil
}

// flushDriftFile writes the current frequency/skew atomically: write to
// path+".tmp", clone uid/gid/mode from the pre-existing file if any
// (best-effort, warn-only), then rename over the target. On rename
// failure the temp file is removed.
func (t *Tracker) flushDriftFile() error {
	path := t.cfg.DriftFilePath
	tmp := path + ".tmp"

	freqPPM := t.clock.ReadAbsoluteFrequency()
	skewPPM := t.skew * 1e6
	content := fmt.Sprintf("%20.6f %20.6f\n", freqPPM, skewPPM)

	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("reftrack: failed to write drift file temp %s: %w", tmp, err)
	}

	if info, err := os.Stat(path); err == nil {
		if st, ok := info.Sys().(*syscall.Stat_t); ok {
			if err := os.Chown(tmp, int(st.Uid), int(st.Gid)); err != nil {
				log.Warningf("reftrack: failed to chown drift file temp: %v", err)
			}
		}
		if err := os.Chmod(tmp, info.Mode()); err != nil {
			log.Warningf("reftrack: failed to chmod drift file temp: %v", err)
		}
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("reftrack: failed to rename drift file into place: %w", err)
	}

	t.driftDirty = false
	t.driftFileAge = 0
	return nil
}

// accumulateDriftAge tracks seconds since the last flush; when it exceeds
// driftFileFlushInterval (or goes negative because of a clock step), the
// file is flushed and the counter reset.
func (t *Tracker) accumulateDriftAge(updateInterval float64) {
	if t.cfg.DriftFilePath == "" {
		return
	}
	t.driftDirty = true
	t.driftFileAge += updateInterval
	if t.driftFileAge < 0 || t.driftFileAge > driftFileFlushInterval {
		if err := t.flushDriftFile(); err != nil {
			log.Warningf("reftrack: %v", err)
		}
	}
}
