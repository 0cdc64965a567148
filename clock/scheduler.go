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

package clock

import (
	"sync"
	"time"

	"github.com/frameclock/reftrack/reftrack"
)

// TimerScheduler implements reftrack.Scheduler with stdlib one-shot timers
// created by time.AfterFunc.
type TimerScheduler struct {
	mu     sync.Mutex
	next   reftrack.TimeoutID
	timers map[reftrack.TimeoutID]*time.Timer
}

// NewTimerScheduler returns a ready-to-use TimerScheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[reftrack.TimeoutID]*time.Timer)}
}

// AddTimeout arms cb to fire at when, returning an id RemoveTimeout can cancel.
func (s *TimerScheduler) AddTimeout(when time.Time, cb func()) reftrack.TimeoutID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	id := s.next
	s.timers[id] = time.AfterFunc(time.Until(when), func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		cb()
	})
	return id
}

// RemoveTimeout cancels a previously armed timeout; it is a no-op if the
// timer already fired or was never armed.
func (s *TimerScheduler) RemoveTimeout(id reftrack.TimeoutID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}
