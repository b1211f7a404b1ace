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

package commands

import (
	"time"

	"github.com/pymenow/f3backEnd/internal/core/cor"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/pymenow/f3backEnd/internal/core/store"
)

// PersistAnalysis writes the completed record under the resolved version.
// The store refuses a second record of the same type, which covers a
// concurrent request that passed CheckDuplicate at the same time.
type PersistAnalysis struct {
	cor.BaseCommand
	store store.ResultStore
	now   func() time.Time
}

func NewPersistAnalysis(name string, s store.ResultStore) *PersistAnalysis {
	return &PersistAnalysis{BaseCommand: *cor.NewBaseCommand(name), store: s, now: time.Now}
}

func (s *PersistAnalysis) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(ParamAggregated) != nil && context.Get(ParamVersionKey) != nil
}

func (s *PersistAnalysis) Execute(context cor.Context) {
	req := analysisRequest(context)
	key := context.Get(ParamVersionKey).(model.VersionKey)
	result := context.Get(ParamAggregated).(*model.AggregatedResult)

	record := model.NewAnalysisRecord(req.AnalysisType, result, s.now().UTC())
	if err := s.store.CreateAnalysis(context.GetContext(), key, record); err != nil {
		s.Fail(context, err)
		return
	}

	s.Succeed(context)
	context.Add(ParamRecord, record)
	context.Add(cor.CtxOut, record)
}
