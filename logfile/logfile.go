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

// Package logfile implements reftrack.LogSink as append-only text files
// under a directory, one file per log name, header written once per file
// the way fbclock/daemon's CSVLogger writes its header before the first
// sample.
package logfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/frameclock/reftrack/reftrack"
)

// Sink is a directory of append-only "<name>.log" files.
type Sink struct {
	dir string

	mu    sync.Mutex
	files []*os.File
}

// New returns a Sink that opens files under dir, creating it if needed.
func New(dir string) *Sink {
	return &Sink{dir: dir}
}

// FileOpen opens (or creates) name+".log" under the sink's directory. If
// the file is empty, header is written as its first line.
func (s *Sink) FileOpen(name, header string) (reftrack.LogFileID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return 0, fmt.Errorf("logfile: creating %s: %w", s.dir, err)
	}
	path := filepath.Join(s.dir, name+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("logfile: opening %s: %w", path, err)
	}
	if info, err := f.Stat(); err == nil && info.Size() == 0 {
		if _, err := fmt.Fprintln(f, header); err != nil {
			f.Close()
			return 0, fmt.Errorf("logfile: writing header to %s: %w", path, err)
		}
	}
	s.files = append(s.files, f)
	return reftrack.LogFileID(len(s.files) - 1), nil
}

// FileWrite appends line to the file identified by id. A write failure is
// logged by the caller's discretion; FileWrite itself has no error return
// to match reftrack.LogSink, so failures are silently dropped here, the
// same as reference.c's write_log treating a closed log file as a no-op.
func (s *Sink) FileWrite(id reftrack.LogFileID, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if int(id) < 0 || int(id) >= len(s.files) {
		return
	}
	fmt.Fprintln(s.files[id], line)
}

// Close closes every file the sink has opened.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
