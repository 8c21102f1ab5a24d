// Copyright 2025 The txtool authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package scheduler provides the reminder scheduling collaborator: a
// callback fired at or after a computed time before a transaction's
// valid-start.
package scheduler

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Scheduler fires a callback at or after the given time. Scheduling
// the same key again replaces the earlier reminder, so duplicate
// scheduling for one transaction is idempotent from the caller's
// perspective.
type Scheduler interface {
	AddReminder(key string, at time.Time)
}

// ReminderKey derives the deterministic reminder key for a network
// transaction id
func ReminderKey(transactionID string) string {
	return fmt.Sprintf("sign-reminder:%s", transactionID)
}

// TimerScheduler is an in-process Scheduler backed by timers
type TimerScheduler struct {
	logger *slog.Logger
	fire   func(key string)
	timers map[string]*time.Timer
	mu     sync.Mutex
	closed bool
}

// NewTimerScheduler returns a scheduler invoking fire for each due
// reminder key
func NewTimerScheduler(
	fire func(key string),
	logger *slog.Logger,
) *TimerScheduler {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &TimerScheduler{
		logger: logger.With("component", "scheduler"),
		fire:   fire,
		timers: make(map[string]*time.Timer),
	}
}

// AddReminder schedules the callback, replacing any reminder already
// held for the key. A time in the past fires immediately.
func (s *TimerScheduler) AddReminder(key string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if timer, ok := s.timers[key]; ok {
		timer.Stop()
	}
	delay := max(time.Until(at), 0)
	s.timers[key] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, key)
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}
		s.logger.Debug("reminder fired", "key", key)
		if s.fire != nil {
			s.fire(key)
		}
	})
}

// Pending returns the number of reminders not yet fired
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels all pending reminders. Safe to call multiple times.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
}
