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

// Package store is the single source of truth for scripts, versions and
// analysis records. Documents are addressed by path:
//
//	users/{uid}/scripts/{scriptId}
//	users/{uid}/scripts/{scriptId}/versions/{versionId}
//	users/{uid}/scripts/{scriptId}/versions/{versionId}/analyses/{analysisType}
//
// Analyses are written with create-if-absent semantics, so a second record of
// the same type for the same version is rejected by the store itself and not
// only by the read that precedes it.
package store

import (
	"context"
	"time"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

// Backends accepted in the `[store] backend` setting.
const (
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

// ResultStore is the persistence contract used by services and commands.
type ResultStore interface {
	// CreateScript stores a new script with its first version and returns both
	// with their assigned ids.
	CreateScript(ctx context.Context, uid string, script *model.Script, first *model.Version) (*model.Script, *model.Version, error)

	// GetScript reads a script. A missing script is NotFound.
	GetScript(ctx context.Context, uid, scriptID string) (*model.Script, error)

	// GetVersion reads one version. A missing version is NotFound.
	GetVersion(ctx context.Context, uid, scriptID, versionID string) (*model.Version, error)

	// AddVersion stores a new version numbered max(existing)+1 and makes it the
	// script's current version.
	AddVersion(ctx context.Context, uid, scriptID string, version *model.Version, now time.Time) (*model.Version, error)

	// FindAnalyses returns the records of a version tagged with analysisType.
	FindAnalyses(ctx context.Context, key model.VersionKey, analysisType model.AnalysisType) ([]*model.AnalysisRecord, error)

	// ListAnalyses returns every record of a version.
	ListAnalyses(ctx context.Context, key model.VersionKey) ([]*model.AnalysisRecord, error)

	// CreateAnalysis stores a new record. An existing record of the same type
	// fails with DuplicateAnalysis and is never overwritten.
	CreateAnalysis(ctx context.Context, key model.VersionKey, record *model.AnalysisRecord) error

	// UpdateAnalysisFields sets top level fields of the record of
	// analysisType in a single write. A missing record is NotFound.
	UpdateAnalysisFields(ctx context.Context, key model.VersionKey, analysisType model.AnalysisType, fields map[string]any) error
}

// Field names accepted by UpdateAnalysisFields.
const (
	FieldData            = "data"
	FieldAudioProcessing = "audioProcessing"
	FieldAudioPlaylist   = "audioPlaylist"
)

// FirstAnalysis returns the record of analysisType or a NotFound error.
func FirstAnalysis(ctx context.Context, s ResultStore, key model.VersionKey, analysisType model.AnalysisType) (*model.AnalysisRecord, error) {
	records, err := s.FindAnalyses(ctx, key, analysisType)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperr.New(apperr.NotFound, "No %s analysis found for this version.", analysisType)
	}
	return records[0], nil
}

// DuplicateError is the error returned for a second analysis of the same type.
func DuplicateError(analysisType model.AnalysisType) error {
	return apperr.New(apperr.DuplicateAnalysis, "An analysis of type %s already exists for this version.", analysisType)
}
