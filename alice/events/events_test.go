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

package events

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielWarg/alice-orchestrator/alice/types"
)

func TestSyncRecordWritesImmediately(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, ModeSync, nil)

	ev := types.TurnEvent{Version: "1", TraceID: "trace-1", SessionID: "sess-1", Route: types.RouteMicro, Timestamp: time.Now()}
	require.NoError(t, s.Record(ev))

	path := filepath.Join(dir, "events_"+ev.Timestamp.Format("2006-01-02")+".jsonl")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got types.TurnEvent
	require.NoError(t, json.Unmarshal(data[:len(data)-1], &got))
	assert.Equal(t, "trace-1", got.TraceID)
}

func TestAsyncRecordEventuallyPersists(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, ModeAsync, nil)

	ev := types.TurnEvent{Version: "1", TraceID: "trace-2", SessionID: "sess-2", Timestamp: time.Now()}
	require.NoError(t, s.Record(ev))
	require.NoError(t, s.Close())

	path := filepath.Join(dir, "events_"+ev.Timestamp.Format("2006-01-02")+".jsonl")
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines int
	for scanner.Scan() {
		lines++
	}
	assert.Equal(t, 1, lines)
}

func TestMultipleRecordsAppendToSameDayFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, ModeSync, nil)
	now := time.Now()

	require.NoError(t, s.Record(types.TurnEvent{TraceID: "a", Timestamp: now}))
	require.NoError(t, s.Record(types.TurnEvent{TraceID: "b", Timestamp: now}))
	require.NoError(t, s.Close())

	path := filepath.Join(dir, "events_"+now.Format("2006-01-02")+".jsonl")
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines int
	for scanner.Scan() {
		lines++
	}
	assert.Equal(t, 2, lines)
}
