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

// Package notify implements reftrack.Mailer by running an external mailer
// program and piping a message to its stdin, the same notification reference.c's
// maybe_log_offset sends via popen/pclose.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const maxUserLen = 128

// ExecMailer invokes program as "<program> <user>", writing subject+body
// to its stdin. Invocations are rate-limited so a flapping source cannot
// spawn a mail process per update.
type ExecMailer struct {
	Program string
	Timeout time.Duration

	mu      sync.Mutex
	limiter *rate.Limiter
}

// NewExecMailer returns an ExecMailer that invokes program at most once
// per minInterval.
func NewExecMailer(program string, minInterval time.Duration) *ExecMailer {
	return &ExecMailer{
		Program: program,
		Timeout: 10 * time.Second,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Notify sends subject/body to the mailer program for user, truncated to
// maxUserLen characters to avoid command-line overflow. On pipe failure it
// logs an error and returns nil: notification failure must never abort
// the caller's update.
func (m *ExecMailer) Notify(subject, body, user string) error {
	m.mu.Lock()
	allowed := m.limiter.Allow()
	m.mu.Unlock()
	if !allowed {
		log.Debugf("notify: suppressing mail to %q, rate limited", user)
		return nil
	}

	if len(user) > maxUserLen {
		user = user[:maxUserLen]
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.Program, user)
	cmd.Stdin = bytes.NewBufferString(fmt.Sprintf("Subject: %s\n\n%s\n", subject, body))

	if err := cmd.Run(); err != nil {
		log.Errorf("notify: mailer invocation failed: %v", err)
		return nil
	}
	return nil
}
