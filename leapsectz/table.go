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
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Status is the leap-second disposition of a given UTC day, as recorded in
// the system's tzdata leap-second table.
type Status uint8

// Possible Status values.
const (
	StatusNormal Status = iota
	StatusInsert
	StatusDelete
)

const twelveHours = 12 * 3600

// Table is a cached view of the system's leap-second table, used to answer
// "does a leap second occur at the end of this UTC day" without repeatedly
// re-parsing tzdata or touching the TZ environment variable. This replaces
// chronyd's historical getenv("TZ")/mktime(2) probe with a table lookup, per
// the design note that prefers a pure IANA-tzdata read.
type Table struct {
	leaps []LeapSecond
	cache *lru.Cache[int64, Status]
}

// NewTable parses the system leap-second table and returns a Table ready to
// answer StatusOn queries. It is safe to keep a single Table for the life of
// a process; tzdata leap tables change at most a few times a decade.
func NewTable() (*Table, error) {
	leaps, err := Parse()
	if err != nil {
		return nil, err
	}
	sort.Slice(leaps, func(i, j int) bool { return leaps[i].Tleap < leaps[j].Tleap })
	cache, err := lru.New[int64, Status](8)
	if err != nil {
		return nil, err
	}
	return &Table{leaps: leaps, cache: cache}, nil
}

// IsLeapSecondDay reports whether day (any time within the UTC calendar day)
// is a day on which a leap second may be announced: the last day of June or
// the last day of December, UTC.
func IsLeapSecondDay(day time.Time) bool {
	day = day.UTC()
	month, d := day.Month(), day.Day()
	return (month == time.June && d == 30) || (month == time.December && d == 31)
}

// StatusOn returns the leap-second status recorded for the UTC day
// containing when. Results are cached per 12-hour bucket, matching
// reference.c's "check at most twice a day" requirement.
func (t *Table) StatusOn(when time.Time) Status {
	bucket := when.UTC().Unix() / twelveHours * twelveHours
	if s, ok := t.cache.Get(bucket); ok {
		return s
	}
	s := t.computeStatus(when)
	t.cache.Add(bucket, s)
	return s
}

func (t *Table) computeStatus(when time.Time) Status {
	day := time.Date(when.UTC().Year(), when.UTC().Month(), when.UTC().Day(), 0, 0, 0, 0, time.UTC)
	if !IsLeapSecondDay(day) {
		return StatusNormal
	}
	dayEnd := day.AddDate(0, 0, 1)
	for i, l := range t.leaps {
		if !l.Time().Equal(dayEnd) {
			continue
		}
		var prev int32
		if i > 0 {
			prev = t.leaps[i-1].Nleap
		}
		switch {
		case l.Nleap > prev:
			return StatusInsert
		case l.Nleap < prev:
			return StatusDelete
		}
	}
	return StatusNormal
}

// Probe reports whether the table's data makes sense: 2008-06-30 must read
// as Normal and 2008-12-31 must read as InsertSecond, the same sanity check
// reference.c performs on its TZ-based leap source at startup.
func (t *Table) Probe() bool {
	t1 := time.Date(2008, time.June, 30, 12, 0, 0, 0, time.UTC)
	t2 := time.Date(2008, time.December, 31, 12, 0, 0, 0, time.UTC)
	return t.StatusOn(t1) == StatusNormal && t.StatusOn(t2) == StatusInsert
}
