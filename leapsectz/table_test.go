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

package leapsectz

import (
	"testing"
	"time"
)

func TestIsLeapSecondDay(t *testing.T) {
	cases := []struct {
		when time.Time
		want bool
	}{
		{time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2024, time.December, 31, 23, 59, 0, 0, time.UTC), true},
		{time.Date(2024, time.June, 29, 0, 0, 0, 0, time.UTC), false},
		{time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), false},
	}
	for _, c := range cases {
		if got := IsLeapSecondDay(c.when); got != c.want {
			t.Errorf("IsLeapSecondDay(%v) = %v, want %v", c.when, got, c.want)
		}
	}
}

func TestTableComputeStatus(t *testing.T) {
	tbl := &Table{
		leaps: []LeapSecond{
			// Time() = Tleap - Nleap + 1, chosen to land exactly on
			// 2009-01-01T00:00:00Z, the leap second at the end of 2008-12-31.
			{Tleap: uint64(time.Date(2009, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()) + 34 - 1, Nleap: 34},
		},
	}

	got := tbl.computeStatus(time.Date(2008, time.December, 31, 12, 0, 0, 0, time.UTC))
	if got != StatusInsert {
		t.Errorf("computeStatus(2008-12-31) = %v, want StatusInsert", got)
	}

	got = tbl.computeStatus(time.Date(2008, time.June, 30, 12, 0, 0, 0, time.UTC))
	if got != StatusNormal {
		t.Errorf("computeStatus(2008-06-30) = %v, want StatusNormal", got)
	}
}
