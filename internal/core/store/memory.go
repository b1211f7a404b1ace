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

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

type memoryScript struct {
	script   model.Script
	versions map[string]*memoryVersion
}

type memoryVersion struct {
	version  model.Version
	analyses map[string]*model.AnalysisRecord
}

// MemoryStore is an in-process ResultStore used for local runs and tests.
// Values are deep copied on the way in and out, so callers never share state
// with the store.
type MemoryStore struct {
	mu      sync.Mutex
	scripts map[string]map[string]*memoryScript // uid -> scriptId -> script
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scripts: make(map[string]map[string]*memoryScript)}
}

func (m *MemoryStore) CreateScript(_ context.Context, uid string, script *model.Script, first *model.Version) (*model.Script, *model.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := *script
	s.ID = uuid.NewString()
	v := *first
	v.ID = uuid.NewString()
	s.CurrentVersion = v.ID

	if m.scripts[uid] == nil {
		m.scripts[uid] = make(map[string]*memoryScript)
	}
	m.scripts[uid][s.ID] = &memoryScript{
		script:   s,
		versions: map[string]*memoryVersion{v.ID: {version: v, analyses: map[string]*model.AnalysisRecord{}}},
	}
	outS, outV := s, v
	return &outS, &outV, nil
}

func (m *MemoryStore) GetScript(_ context.Context, uid, scriptID string) (*model.Script, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.script(uid, scriptID)
	if err != nil {
		return nil, err
	}
	out := s.script
	return &out, nil
}

func (m *MemoryStore) GetVersion(_ context.Context, uid, scriptID, versionID string) (*model.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, err := m.version(model.VersionKey{UserID: uid, ScriptID: scriptID, VersionID: versionID})
	if err != nil {
		return nil, err
	}
	out := v.version
	return &out, nil
}

func (m *MemoryStore) AddVersion(_ context.Context, uid, scriptID string, version *model.Version, now time.Time) (*model.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.script(uid, scriptID)
	if err != nil {
		return nil, err
	}
	highest := 0
	for _, existing := range s.versions {
		if existing.version.VersionNumber > highest {
			highest = existing.version.VersionNumber
		}
	}
	v := *version
	v.ID = uuid.NewString()
	v.VersionNumber = highest + 1
	s.versions[v.ID] = &memoryVersion{version: v, analyses: map[string]*model.AnalysisRecord{}}
	s.script.CurrentVersion = v.ID
	s.script.LastModifiedAt = now.UTC()
	out := v
	return &out, nil
}

func (m *MemoryStore) FindAnalyses(_ context.Context, key model.VersionKey, analysisType model.AnalysisType) ([]*model.AnalysisRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, err := m.version(key)
	if err != nil {
		return nil, err
	}
	var out []*model.AnalysisRecord
	for _, r := range v.analyses {
		if r.AnalysisType == analysisType {
			out = append(out, cloneRecord(r))
		}
	}
	return out, nil
}

func (m *MemoryStore) ListAnalyses(_ context.Context, key model.VersionKey) ([]*model.AnalysisRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, err := m.version(key)
	if err != nil {
		return nil, err
	}
	out := make([]*model.AnalysisRecord, 0, len(v.analyses))
	for _, r := range v.analyses {
		out = append(out, cloneRecord(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnalysisType < out[j].AnalysisType })
	return out, nil
}

func (m *MemoryStore) CreateAnalysis(_ context.Context, key model.VersionKey, record *model.AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, err := m.version(key)
	if err != nil {
		return err
	}
	id := record.ID
	if id == "" {
		id = string(record.AnalysisType)
	}
	if _, exists := v.analyses[id]; exists {
		return DuplicateError(record.AnalysisType)
	}
	stored := cloneRecord(record)
	stored.ID = id
	v.analyses[id] = stored
	return nil
}

func (m *MemoryStore) UpdateAnalysisFields(_ context.Context, key model.VersionKey, analysisType model.AnalysisType, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, err := m.version(key)
	if err != nil {
		return err
	}
	var target *model.AnalysisRecord
	for _, r := range v.analyses {
		if r.AnalysisType == analysisType {
			target = r
			break
		}
	}
	if target == nil {
		return apperr.New(apperr.NotFound, "No %s analysis found for this version.", analysisType)
	}
	for name, value := range fields {
		switch name {
		case FieldData:
			data, _ := value.(map[string]any)
			target.Data = deepCopyMap(data)
		case FieldAudioProcessing:
			status, ok := value.(int)
			if !ok {
				return apperr.New(apperr.Internal, "audioProcessing must be an int, got %T", value)
			}
			target.AudioProcessing = &status
		case FieldAudioPlaylist:
			playlist, _ := value.([]string)
			target.AudioPlaylist = append([]string(nil), playlist...)
		default:
			return apperr.New(apperr.Internal, "field %s cannot be updated", name)
		}
	}
	return nil
}

func (m *MemoryStore) script(uid, scriptID string) (*memoryScript, error) {
	s, ok := m.scripts[uid][scriptID]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "Script not found.")
	}
	return s, nil
}

func (m *MemoryStore) version(key model.VersionKey) (*memoryVersion, error) {
	s, err := m.script(key.UserID, key.ScriptID)
	if err != nil {
		return nil, err
	}
	v, ok := s.versions[key.VersionID]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "Version not found.")
	}
	return v, nil
}

func cloneRecord(r *model.AnalysisRecord) *model.AnalysisRecord {
	out := *r
	out.Data = deepCopyMap(r.Data)
	out.Extra = deepCopyMap(r.Extra)
	out.UsageMetadata = deepCopyMap(r.UsageMetadata)
	if r.AudioProcessing != nil {
		status := *r.AudioProcessing
		out.AudioProcessing = &status
	}
	if r.AudioPlaylist != nil {
		out.AudioPlaylist = append([]string(nil), r.AudioPlaylist...)
	}
	return &out
}

func deepCopyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
