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

// Package model defines the core data structures for the application.
// This file contains the analysis types and the persisted analysis record.
//
// Every analysis lives under a (user, script, version) key and is tagged with
// its AnalysisType. Records are created once and never overwritten; only the
// media synthesis pipeline later touches the audio fields of a scene analysis.
package model

import (
	"time"
)

// AnalysisType names a kind of analysis that can be stored against a version.
type AnalysisType string

const (
	ScriptInfo      AnalysisType = "scriptInfo"
	BrandAnalysis   AnalysisType = "brandAnalysis"
	ScriptSummary   AnalysisType = "scriptSummary"
	Rating          AnalysisType = "rating"
	EmotionAnalysis AnalysisType = "emotionAnalysis"
	SceneAnalysis   AnalysisType = "sceneAnalysis"
	ShotList        AnalysisType = "shotList"
	PromptGenerator AnalysisType = "promptGenerator"
	StoryPlot       AnalysisType = "storyPlot"

	// ScriptContent is the pass-through pseudo type. It always resolves to the
	// raw version content and is never stored as a record.
	ScriptContent AnalysisType = "script"

	// Screening results written when a script or version is created.
	Moderation AnalysisType = "moderation"
	Categories AnalysisType = "categories"
	Entities   AnalysisType = "entities"
)

// StatusCompleted is the only status written on a newly created record.
const StatusCompleted = "completed"

// Pipeline level audio processing states stored on a scene analysis.
const (
	AudioPipelineFailed     = -1
	AudioPipelineInProgress = 0
	AudioPipelineCompleted  = 1
)

// Per-unit audio processing states.
const (
	UnitFailed     = -1
	UnitNotStarted = 0
	UnitInProgress = 1
	UnitDone       = 2
)

var modelBacked = []AnalysisType{
	ScriptInfo, BrandAnalysis, ScriptSummary, Rating, EmotionAnalysis,
	SceneAnalysis, ShotList, PromptGenerator, StoryPlot,
}

// ModelBackedTypes returns the analysis types produced by the generative model,
// in a stable order.
func ModelBackedTypes() []AnalysisType {
	out := make([]AnalysisType, len(modelBacked))
	copy(out, modelBacked)
	return out
}

// IsModelBacked reports whether t is produced by the generative model.
func (t AnalysisType) IsModelBacked() bool {
	for _, m := range modelBacked {
		if m == t {
			return true
		}
	}
	return false
}

// ParseAnalysisType accepts any known type, including the pseudo types.
func ParseAnalysisType(s string) (AnalysisType, bool) {
	t := AnalysisType(s)
	switch t {
	case ScriptContent, Moderation, Categories, Entities:
		return t, true
	}
	return t, t.IsModelBacked()
}

// VersionKey addresses a single script version owned by a user.
type VersionKey struct {
	UserID    string `json:"userId"`
	ScriptID  string `json:"scriptId"`
	VersionID string `json:"versionId"`
}

// TokenCounts is the token usage reported by the model for one analysis.
type TokenCounts struct {
	Prompt     int64 `json:"prompt"`
	Candidates int64 `json:"candidates"`
	Total      int64 `json:"total"`
}

// AggregatedResult is the canonical shape produced from one model call,
// whether it was streamed or buffered.
type AggregatedResult struct {
	Data          map[string]any // Parsed payload, the `data` key when present.
	Extra         map[string]any // Top-level keys that were siblings of `data`.
	UsageMetadata map[string]any // Never nil.
	ModelVersion  string         // "unknown" when the model did not report one.
	FinishReason  string
	Streamed      bool
	Tokens        TokenCounts
}

// AnalysisRecord is the persisted result of one analysis of one version.
type AnalysisRecord struct {
	ID              string         `firestore:"-" json:"id,omitempty"`
	AnalysisType    AnalysisType   `firestore:"analysisType" json:"analysisType"`
	Data            map[string]any `firestore:"data" json:"data"`
	Extra           map[string]any `firestore:"extra,omitempty" json:"extra,omitempty"`
	UsageMetadata   map[string]any `firestore:"usageMetadata" json:"usageMetadata"`
	ModelVersion    string         `firestore:"modelVersion" json:"modelVersion"`
	Streamed        bool           `firestore:"streamed" json:"streamed"`
	Status          string         `firestore:"status" json:"status"`
	Timestamp       time.Time      `firestore:"timestamp" json:"timestamp"`
	AudioProcessing *int           `firestore:"audioProcessing,omitempty" json:"audioProcessing,omitempty"`
	AudioPlaylist   []string       `firestore:"audioPlaylist,omitempty" json:"audioPlaylist,omitempty"`
}

// NewAnalysisRecord builds a completed record from an aggregated model result.
func NewAnalysisRecord(analysisType AnalysisType, result *AggregatedResult, now time.Time) *AnalysisRecord {
	usage := result.UsageMetadata
	if usage == nil {
		usage = map[string]any{}
	}
	version := result.ModelVersion
	if version == "" {
		version = UnknownModelVersion
	}
	return &AnalysisRecord{
		ID:            string(analysisType),
		AnalysisType:  analysisType,
		Data:          result.Data,
		Extra:         result.Extra,
		UsageMetadata: usage,
		ModelVersion:  version,
		Streamed:      result.Streamed,
		Status:        StatusCompleted,
		Timestamp:     now.UTC(),
	}
}

// UnknownModelVersion is stored when the model omits its version.
const UnknownModelVersion = "unknown"
