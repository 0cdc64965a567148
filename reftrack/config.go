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

	yaml "gopkg.in/yaml.v2"
)

// Config holds every tunable of the reference tracking core. Fields are
// yaml-tagged for ReadConfig; a subset (MaxUpdateSkewPPM) is also mutable
// at runtime through ModifyMaxupdateskew.
type Config struct {
	// MaxUpdateSkewPPM gates whether a measurement's frequency is blended
	// into the running estimate (ppm at the config boundary, converted to
	// a fraction internally).
	MaxUpdateSkewPPM float64 `yaml:"max_update_skew_ppm"`
	// CorrectionTimeRatio paces how many update intervals a one-sigma
	// offset correction should take.
	CorrectionTimeRatio float64 `yaml:"correction_time_ratio"`
	// MakeStepLimit is the number of early updates allowed to step
	// instead of slew; 0 disables stepping entirely, <0 never counts down.
	MakeStepLimit int `yaml:"make_step_limit"`
	// MakeStepThreshold is the offset magnitude above which a step (not a
	// slew) is applied, until the MakeStepLimit budget runs out (never, when
	// MakeStepLimit is negative).
	MakeStepThreshold float64 `yaml:"make_step_threshold"`
	// MaxOffsetDelay is the warm-up countdown during which offsets are
	// accepted unconditionally; negative disables the offset gate.
	MaxOffsetDelay int `yaml:"max_offset_delay"`
	// MaxOffsetIgnore is how many oversized offsets are silently skipped
	// before the next one ends the reference mode with failure; the count
	// is not reset by accepted offsets, and a negative value skips them
	// without limit.
	MaxOffsetIgnore int `yaml:"max_offset_ignore"`
	// MaxOffset is the largest offset accepted once warm-up has elapsed.
	MaxOffset float64 `yaml:"max_offset"`
	// LogChangeThreshold triggers a warning-level log record.
	LogChangeThreshold float64 `yaml:"log_change_threshold"`
	// MailChangeThreshold triggers an external mail notification.
	MailChangeThreshold float64 `yaml:"mail_change_threshold"`
	// MailUser is the recipient passed to the mailer program.
	MailUser string `yaml:"mail_user"`
	// DriftFilePath is where frequency/skew persist across restarts; empty
	// disables drift file support.
	DriftFilePath string `yaml:"drift_file_path"`
	// LeapTimezoneName, if set, is probed at Initialise time and used to
	// corroborate source-reported leap bits against the system leap table.
	LeapTimezoneName string `yaml:"leap_timezone_name"`
	// FbDriftMin and FbDriftMax bound the fallback drift ladder, in
	// log2-seconds; slot i tracks timescale 2^i.
	FbDriftMin int `yaml:"fb_drift_min"`
	FbDriftMax int `yaml:"fb_drift_max"`
	// LocalStratumEnabled and LocalStratum configure the local-reference
	// fallback used by GetReferenceParams/GetOurStratum when unsynchronised.
	LocalStratumEnabled bool   `yaml:"local_stratum_enabled"`
	LocalStratum        uint16 `yaml:"local_stratum"`
	// MailerProgram is invoked as "<program> <user>" with the message piped
	// to its stdin when MailChangeThreshold is exceeded.
	MailerProgram string `yaml:"mailer_program"`
}

// ReadConfig reads config and unmarshals it from yaml into Config.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Config{}
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks range invariants on a loaded config; it never panics and
// returns a descriptive error for the first violation found.
func (c *Config) Validate() error {
	if c.CorrectionTimeRatio <= 0 {
		return fmt.Errorf("bad config: 'correction_time_ratio' must be >0")
	}
	if c.MaxOffset <= 0 {
		return fmt.Errorf("bad config: 'max_offset' must be >0")
	}
	if c.FbDriftMax < c.FbDriftMin {
		return fmt.Errorf("bad config: 'fb_drift_max' must be >= 'fb_drift_min'")
	}
	if c.LocalStratumEnabled && c.LocalStratum == 0 {
		return fmt.Errorf("bad config: 'local_stratum' must be >0 when local stratum is enabled")
	}
	if c.MailChangeThreshold > 0 && c.MailerProgram == "" {
		return fmt.Errorf("bad config: 'mailer_program' required when 'mail_change_threshold' is set")
	}
	return nil
}

// maxUpdateSkew returns MaxUpdateSkewPPM as a fraction, matching
// reference.c's internal representation (ppm at the config boundary).
func (c *Config) maxUpdateSkew() float64 {
	return c.MaxUpdateSkewPPM * 1.0e-6
}
