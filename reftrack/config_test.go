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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reftrack.yaml")
	const body = `
max_update_skew_ppm: 1000
correction_time_ratio: 3
make_step_limit: 3
make_step_threshold: 0.1
max_offset_delay: -1
max_offset_ignore: 0
max_offset: 1.0
log_change_threshold: 1.0
mail_change_threshold: 10.0
mail_user: root
drift_file_path: /var/lib/reftrack/drift
leap_timezone_name: right/UTC
fb_drift_min: -4
fb_drift_max: 5
local_stratum_enabled: true
local_stratum: 10
mailer_program: /usr/sbin/sendmail
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 1000.0, cfg.MaxUpdateSkewPPM)
	require.Equal(t, -4, cfg.FbDriftMin)
	require.Equal(t, 5, cfg.FbDriftMax)
	require.Equal(t, uint16(10), cfg.LocalStratum)
	require.Equal(t, "/usr/sbin/sendmail", cfg.MailerProgram)
	require.NoError(t, cfg.Validate())
}

func TestReadConfigRejectsUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reftrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bogus_field: 1\n"), 0o644))

	_, err := ReadConfig(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			CorrectionTimeRatio: 3,
			MaxOffset:           1.0,
			FbDriftMin:          0,
			FbDriftMax:          3,
		}
	}

	require.NoError(t, base().Validate())

	bad := base()
	bad.CorrectionTimeRatio = 0
	require.Error(t, bad.Validate())

	bad = base()
	bad.MaxOffset = 0
	require.Error(t, bad.Validate())

	bad = base()
	bad.FbDriftMax = -1
	bad.FbDriftMin = 0
	require.Error(t, bad.Validate())

	bad = base()
	bad.LocalStratumEnabled = true
	bad.LocalStratum = 0
	require.Error(t, bad.Validate())

	bad = base()
	bad.MailChangeThreshold = 10
	bad.MailerProgram = ""
	require.Error(t, bad.Validate())

	ok := base()
	ok.MailChangeThreshold = 10
	ok.MailerProgram = "/usr/sbin/sendmail"
	require.NoError(t, ok.Validate())
}

func TestMaxUpdateSkewConvertsPPMToFraction(t *testing.T) {
	c := &Config{MaxUpdateSkewPPM: 1000}
	require.InDelta(t, 1.0e-3, c.maxUpdateSkew(), 1e-12)
}
