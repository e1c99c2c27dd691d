// Copyright 2025 AxonFlow
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

// Package events is the append-only turn-event sink: one JSONL line per
// completed request, rotated daily. It is a narrowed, file-only
// descendant of the platform's AuditQueue in agent/audit_queue.go —
// the same Sync/Async mode split and worker-queue-with-fallback
// shape, but writing a single rotating JSONL file instead of a
// database with a fallback file, since turn events have no compliance
// table to land in.
package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DanielWarg/alice-orchestrator/alice/types"
	"github.com/DanielWarg/alice-orchestrator/shared/logger"
)

// Mode controls whether Record blocks until the event is durably
// written (Sync) or hands it to a background worker (Async).
type Mode string

const (
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"
)

// Sink writes TurnEvents to a daily-rotating JSONL file under dir.
type Sink struct {
	dir   string
	mode  Mode
	log   *logger.Logger
	queue chan types.TurnEvent
	wg    sync.WaitGroup

	mu         sync.Mutex
	day        string
	file       *os.File
}

// New creates a Sink writing under dir. In ModeAsync, Record enqueues
// the event onto a buffered channel drained by one background worker;
// a full queue drops the event rather than blocking the request path.
func New(dir string, mode Mode, log *logger.Logger) *Sink {
	s := &Sink{dir: dir, mode: mode, log: log}
	if mode == ModeAsync {
		s.queue = make(chan types.TurnEvent, 1000)
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Record writes one TurnEvent. In ModeSync it writes (and fsyncs)
// before returning; in ModeAsync it enqueues and returns immediately.
func (s *Sink) Record(ev types.TurnEvent) error {
	if s.mode == ModeAsync {
		select {
		case s.queue <- ev:
		default:
			if s.log != nil {
				s.log.Warn("", "", "turn event queue full, dropping event", map[string]interface{}{"trace_id": ev.TraceID})
			}
		}
		return nil
	}
	return s.write(ev)
}

func (s *Sink) worker() {
	defer s.wg.Done()
	for ev := range s.queue {
		if err := s.write(ev); err != nil && s.log != nil {
			s.log.Error("", "", "failed to write turn event", map[string]interface{}{"trace_id": ev.TraceID, "error": err.Error()})
		}
	}
}

// Close drains any queued events and closes the current file.
func (s *Sink) Close() error {
	if s.queue != nil {
		close(s.queue)
		s.wg.Wait()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func (s *Sink) write(ev types.TurnEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal turn event: %w", err)
	}

	f, err := s.fileFor(ev.Timestamp)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write turn event: %w", err)
	}
	return f.Sync()
}

// fileFor returns the file handle for the given timestamp's day,
// rotating (opening a new file) when the day has changed.
func (s *Sink) fileFor(ts time.Time) (*os.File, error) {
	if ts.IsZero() {
		ts = time.Now()
	}
	day := ts.Format("2006-01-02")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil && s.day == day {
		return s.file, nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("events_%s.jsonl", day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open turn log: %w", err)
	}

	if s.file != nil {
		s.file.Close()
	}
	s.file = f
	s.day = day
	return s.file, nil
}
