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

package services

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/pymenow/f3backEnd/internal/core/store"
)

// LengthWindow is the inclusive range of script lengths, in characters, that
// may be stored or analyzed.
type LengthWindow struct {
	Min int
	Max int
}

// Check fails with Validation when content is outside the window.
func (w LengthWindow) Check(content string) error {
	n := utf8.RuneCountInString(content)
	if n < w.Min || n > w.Max {
		return apperr.New(apperr.Validation, "Script length must be between %d and %d characters.", w.Min, w.Max)
	}
	return nil
}

// PresampleResult is returned when a script is created.
type PresampleResult struct {
	ScriptID  string     `json:"scriptId"`
	VersionID string     `json:"versionId"`
	Results   *Screening `json:"analysisResults"`
}

// VersionResult is returned when a version is added. Results is nil when the
// version carries no content.
type VersionResult struct {
	VersionID     string     `json:"versionId"`
	VersionNumber int        `json:"versionNumber"`
	Results       *Screening `json:"analysisResults,omitempty"`
}

// ScriptService owns the script and version lifecycle.
type ScriptService struct {
	Store    store.ResultStore
	Screener Screener
	Window   LengthWindow
	Now      func() time.Time
}

func NewScriptService(s store.ResultStore, screener Screener, window LengthWindow) *ScriptService {
	return &ScriptService{Store: s, Screener: screener, Window: window, Now: time.Now}
}

// Presample creates a script with its first version and stores the screening
// of its content.
func (s *ScriptService) Presample(ctx context.Context, uid, title, description, content string) (*PresampleResult, error) {
	if uid == "" {
		return nil, apperr.New(apperr.Validation, "Missing user identity.")
	}
	if strings.TrimSpace(title) == "" || strings.TrimSpace(description) == "" || strings.TrimSpace(content) == "" {
		return nil, apperr.New(apperr.Validation, "Invalid input. Ensure title, description, and script are provided.")
	}
	if err := s.Window.Check(content); err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	script, version, err := s.Store.CreateScript(ctx, uid,
		&model.Script{Title: title, Description: description, OwnerID: uid, CreatedAt: now, LastModifiedAt: now},
		&model.Version{Content: content, VersionNumber: 1, CreatedAt: now, ModifiedBy: uid},
	)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "script created", "scriptId", script.ID, "versionId", version.ID)

	key := model.VersionKey{UserID: uid, ScriptID: script.ID, VersionID: version.ID}
	results, err := s.screen(ctx, key, content)
	if err != nil {
		return nil, err
	}
	return &PresampleResult{ScriptID: script.ID, VersionID: version.ID, Results: results}, nil
}

// AddVersion stores a new version of scriptID. Screening runs only when
// content is given.
func (s *ScriptService) AddVersion(ctx context.Context, uid, scriptID, content, fileURL string) (*VersionResult, error) {
	if scriptID == "" {
		return nil, apperr.New(apperr.Validation, "Missing required parameter: scriptId.")
	}
	if content == "" && fileURL == "" {
		return nil, apperr.New(apperr.Validation, "Either scriptContent or fileURL must be provided.")
	}
	if content != "" {
		if err := s.Window.Check(content); err != nil {
			return nil, err
		}
	}

	now := s.Now().UTC()
	version, err := s.Store.AddVersion(ctx, uid, scriptID, &model.Version{
		Content: content, FileURL: fileURL, CreatedAt: now, ModifiedBy: uid,
	}, now)
	if err != nil {
		return nil, err
	}
	out := &VersionResult{VersionID: version.ID, VersionNumber: version.VersionNumber}
	if content == "" {
		return out, nil
	}

	key := model.VersionKey{UserID: uid, ScriptID: scriptID, VersionID: version.ID}
	if out.Results, err = s.screen(ctx, key, content); err != nil {
		return nil, err
	}
	return out, nil
}

// GetScript returns the script with the requested version, or its current
// version when versionID is empty.
func (s *ScriptService) GetScript(ctx context.Context, uid, scriptID, versionID string, includeDetails bool) (*model.ScriptView, error) {
	if scriptID == "" {
		return nil, apperr.New(apperr.Validation, "Missing required query parameter: scriptId.")
	}
	script, err := s.Store.GetScript(ctx, uid, scriptID)
	if err != nil {
		return nil, err
	}
	if versionID == "" {
		versionID = script.CurrentVersion
	}
	version, err := s.Store.GetVersion(ctx, uid, scriptID, versionID)
	if err != nil {
		return nil, err
	}
	view := &model.ScriptView{Script: script, Version: version}
	if includeDetails {
		key := model.VersionKey{UserID: uid, ScriptID: scriptID, VersionID: version.ID}
		if view.Analyses, err = s.Store.ListAnalyses(ctx, key); err != nil {
			return nil, err
		}
	}
	return view, nil
}

// GetAnalyses returns the records of a version, filtered by type when one is
// given. No records is NotFound.
func (s *ScriptService) GetAnalyses(ctx context.Context, key model.VersionKey, analysisType string) ([]*model.AnalysisRecord, error) {
	if key.ScriptID == "" || key.VersionID == "" {
		return nil, apperr.New(apperr.Validation, "Missing required query parameters: scriptId and versionId.")
	}

	var records []*model.AnalysisRecord
	var err error
	if analysisType == "" {
		records, err = s.Store.ListAnalyses(ctx, key)
	} else {
		t, ok := model.ParseAnalysisType(analysisType)
		if !ok {
			return nil, apperr.New(apperr.Validation, "Unknown analysis type %q.", analysisType)
		}
		records, err = s.Store.FindAnalyses(ctx, key, t)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperr.New(apperr.NotFound, "No analyses found for the given parameters.")
	}
	return records, nil
}

func (s *ScriptService) screen(ctx context.Context, key model.VersionKey, content string) (*Screening, error) {
	results, err := s.Screener.Screen(ctx, content)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	for t, data := range map[model.AnalysisType]map[string]any{
		model.Moderation: results.Moderation,
		model.Categories: results.Categories,
		model.Entities:   results.Entities,
	} {
		record := model.NewAnalysisRecord(t, &model.AggregatedResult{Data: data}, now)
		if err := s.Store.CreateAnalysis(ctx, key, record); err != nil {
			return nil, err
		}
	}
	return results, nil
}
