// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package workflow_test contains the tests of the workflows. This file
// provides the shared setup: the test configuration, logging and telemetry,
// plus small helpers that build a populated in-memory store.
package workflow_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"

	"github.com/pymenow/f3backEnd/internal/cloud"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/pymenow/f3backEnd/internal/core/store"
	"github.com/pymenow/f3backEnd/internal/telemetry"
	test "github.com/pymenow/f3backEnd/internal/testutil"
)

var (
	ctx    context.Context // The root context for all tests in the suite.
	config *cloud.Config   // The application configuration loaded from test files.
)

const tName = "f3backend/tests/workflow"

var (
	tracer = otel.Tracer(tName)
	logger = otelslog.NewLogger(tName)
)

// TestMain loads the test configuration and sets up logging and telemetry
// once for the package.
func TestMain(m *testing.M) {
	var cancel context.CancelFunc
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	config = test.GetConfig()

	closeLogs, err := telemetry.SetupLogging(config.Application.LogLevel, "")
	if err != nil {
		panic(err)
	}

	shutdown, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		panic(err)
	}

	logger.Info("completed test setup")

	exitCode := m.Run()

	if err := shutdown(ctx); err != nil {
		logger.Error("failed to shutdown telemetry", "error", err)
	}
	closeLogs()
	os.Exit(exitCode)
}

const uid = "user-1"

// newScript stores a script whose first version holds content.
func newScript(t *testing.T, s store.ResultStore, content string) model.VersionKey {
	t.Helper()
	now := time.Now().UTC()
	script, version, err := s.CreateScript(ctx, uid,
		&model.Script{Title: "Moonshot", Description: "A launch", OwnerID: uid, CreatedAt: now, LastModifiedAt: now},
		&model.Version{Content: content, VersionNumber: 1, CreatedAt: now, ModifiedBy: uid})
	test.HandleErr(err, t)
	return model.VersionKey{UserID: uid, ScriptID: script.ID, VersionID: version.ID}
}

// storeAnalysis stores a completed record of analysisType with data.
func storeAnalysis(t *testing.T, s store.ResultStore, key model.VersionKey, analysisType model.AnalysisType, data map[string]any) {
	t.Helper()
	record := model.NewAnalysisRecord(analysisType, &model.AggregatedResult{
		Data:          data,
		UsageMetadata: map[string]any{},
		ModelVersion:  "gemini-test",
	}, time.Now().UTC())
	test.HandleErr(s.CreateAnalysis(ctx, key, record), t)
}

type recordingLedger struct {
	mu   sync.Mutex
	rows []*model.UsageRow
	err  error
}

func (r *recordingLedger) Record(_ context.Context, row *model.UsageRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row)
	return r.err
}

type recordingTrigger struct {
	mu   sync.Mutex
	keys []model.VersionKey
}

func (r *recordingTrigger) Trigger(_ context.Context, key model.VersionKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return nil
}

type lineSink struct {
	lines [][]byte
	err   error
	calls int
}

func (s *lineSink) WriteChunk(chunk []byte) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.lines = append(s.lines, append([]byte(nil), chunk...))
	return nil
}
