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

// Package test provides utility functions and fakes to support the
// application's test suite. It locates the repository's configuration, caches
// the test configuration, and offers sample events and scene analyses.
package test

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pymenow/f3backEnd/internal/cloud"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

// StateManager caches the application configuration during test runs so the
// TOML files are decoded once.
type StateManager struct {
	once   sync.Once
	config *cloud.Config
}

var state = &StateManager{}

// HandleErr fails the test when err is not nil.
func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// RepoRoot walks up from the working directory until it finds go.mod.
func RepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found above the working directory")
		}
		dir = parent
	}
}

// SetupOS points the configuration loader at `configs/` of the repository and
// selects the "test" runtime, so `.env.test.toml` overrides `.env.toml`.
func SetupOS() error {
	root, err := RepoRoot()
	if err != nil {
		return err
	}
	if err := os.Setenv(cloud.EnvConfigFilePrefix, filepath.Join(root, "configs")); err != nil {
		return err
	}
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// GetConfig returns the cached test configuration, loading it on first use.
func GetConfig() *cloud.Config {
	state.once.Do(func() {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			log.Fatalf("failed to load test configuration: %v\n", err)
		}
		state.config = config
	})
	return state.config
}

// GetTestSceneEventText returns the JSON event that starts the media
// synthesis workflow for key.
func GetTestSceneEventText(key model.VersionKey) string {
	return fmt.Sprintf(`{"userId": %q, "scriptId": %q, "versionId": %q}`, key.UserID, key.ScriptID, key.VersionID)
}

// SceneAnalysisData returns a scene analysis payload with two scenes of two
// dialogues each, keyed "1" and "2".
func SceneAnalysisData() map[string]any {
	return map[string]any{
		"scenes": map[string]any{
			"2": map[string]any{
				"sceneSummary": "The crew lands on the moon.",
				"location":     "Moon base",
				"dialogues": []any{
					map[string]any{"dialogueContent": "We made it.", "gender": "FEMALE", "character": "Ava"},
					map[string]any{"dialogueContent": "Check the oxygen.", "gender": "MALE", "character": "Raj"},
				},
			},
			"1": map[string]any{
				"sceneSummary": "A rocket waits on the launch pad.",
				"location":     "Launch pad",
				"dialogues": []any{
					map[string]any{"dialogueContent": "All systems go.", "gender": "MALE", "character": "Raj"},
					map[string]any{"dialogueContent": "Lift off.", "gender": "FEMALE", "character": "Ava"},
				},
			},
		},
		"totalScenes": 2,
	}
}

// ScriptText is a script body inside the default length window.
const ScriptText = `INT. LAUNCH CONTROL - NIGHT
RAJ watches the countdown. AVA straps into the capsule.
RAJ: All systems go.
AVA: Lift off.`
