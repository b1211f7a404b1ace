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

// Package services_test contains the test suite for the services package.
package services_test

import (
	"context"
	"strings"
	"testing"

	"cloud.google.com/go/language/apiv2/languagepb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/pymenow/f3backEnd/internal/core/services"
	"github.com/pymenow/f3backEnd/internal/core/store"
)

type fakeAnalyzer struct{}

func (fakeAnalyzer) ModerateText(context.Context, *languagepb.ModerateTextRequest, ...gax.CallOption) (*languagepb.ModerateTextResponse, error) {
	return &languagepb.ModerateTextResponse{
		ModerationCategories: []*languagepb.ClassificationCategory{{Name: "Toxic", Confidence: 0.1}},
		LanguageCode:         "en",
	}, nil
}

func (fakeAnalyzer) ClassifyText(context.Context, *languagepb.ClassifyTextRequest, ...gax.CallOption) (*languagepb.ClassifyTextResponse, error) {
	return &languagepb.ClassifyTextResponse{
		Categories: []*languagepb.ClassificationCategory{{Name: "/Arts & Entertainment", Confidence: 0.9}},
	}, nil
}

func (fakeAnalyzer) AnalyzeEntities(_ context.Context, req *languagepb.AnalyzeEntitiesRequest, _ ...gax.CallOption) (*languagepb.AnalyzeEntitiesResponse, error) {
	return &languagepb.AnalyzeEntitiesResponse{
		Entities: []*languagepb.Entity{{Name: "Mumbai", Type: languagepb.Entity_LOCATION}},
	}, nil
}

const content = "INT. KITCHEN - NIGHT. Asha pours tea for her father."

func newService() (*services.ScriptService, *store.MemoryStore) {
	mem := store.NewMemoryStore()
	svc := services.NewScriptService(mem, services.NewTextScreener(fakeAnalyzer{}), services.LengthWindow{Min: 20, Max: 2000})
	return svc, mem
}

func TestPresampleStoresScriptAndScreening(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService()

	res, err := svc.Presample(ctx, "u1", "Tea", "A short scene", content)
	require.NoError(t, err)
	require.NotEmpty(t, res.ScriptID)
	require.NotEmpty(t, res.VersionID)

	moderation := res.Results.Moderation["moderationCategories"].([]any)
	assert.Equal(t, "Toxic", moderation[0].(map[string]any)["name"])
	entities := res.Results.Entities["entities"].([]any)
	assert.Equal(t, "LOCATION", entities[0].(map[string]any)["type"])

	key := model.VersionKey{UserID: "u1", ScriptID: res.ScriptID, VersionID: res.VersionID}
	records, err := mem.ListAnalyses(ctx, key)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, model.Categories, records[0].AnalysisType)
	assert.Equal(t, model.Entities, records[1].AnalysisType)
	assert.Equal(t, model.Moderation, records[2].AnalysisType)

	v, err := mem.GetVersion(ctx, "u1", res.ScriptID, res.VersionID)
	require.NoError(t, err)
	assert.Equal(t, 1, v.VersionNumber)
	assert.Equal(t, "u1", v.ModifiedBy)
}

func TestPresampleValidation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Presample(ctx, "u1", "", "d", content)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, err = svc.Presample(ctx, "u1", "t", "d", "too short")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	// Length is counted in characters, not bytes.
	_, err = svc.Presample(ctx, "u1", "t", "d", strings.Repeat("é", 2000))
	assert.NoError(t, err)
	_, err = svc.Presample(ctx, "u1", "t", "d", strings.Repeat("é", 2001))
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestAddVersionNumbersAndScreening(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService()
	res, err := svc.Presample(ctx, "u1", "Tea", "A short scene", content)
	require.NoError(t, err)

	for want := 2; want <= 4; want++ {
		v, err := svc.AddVersion(ctx, "u1", res.ScriptID, content, "")
		require.NoError(t, err)
		assert.Equal(t, want, v.VersionNumber)
		assert.NotNil(t, v.Results)
	}

	fileOnly, err := svc.AddVersion(ctx, "u1", res.ScriptID, "", "gs://bucket/u1/script.pdf")
	require.NoError(t, err)
	assert.Equal(t, 5, fileOnly.VersionNumber)
	assert.Nil(t, fileOnly.Results)
	records, err := mem.ListAnalyses(ctx, model.VersionKey{UserID: "u1", ScriptID: res.ScriptID, VersionID: fileOnly.VersionID})
	require.NoError(t, err)
	assert.Empty(t, records)

	view, err := svc.GetScript(ctx, "u1", res.ScriptID, "", false)
	require.NoError(t, err)
	assert.Equal(t, fileOnly.VersionID, view.Version.ID)

	_, err = svc.AddVersion(ctx, "u1", res.ScriptID, "", "")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	_, err = svc.AddVersion(ctx, "u1", "missing", content, "")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestGetScriptAndAnalyses(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	res, err := svc.Presample(ctx, "u1", "Tea", "A short scene", content)
	require.NoError(t, err)

	view, err := svc.GetScript(ctx, "u1", res.ScriptID, res.VersionID, true)
	require.NoError(t, err)
	assert.Equal(t, "Tea", view.Script.Title)
	assert.Equal(t, content, view.Version.Content)
	assert.Len(t, view.Analyses, 3)

	key := model.VersionKey{UserID: "u1", ScriptID: res.ScriptID, VersionID: res.VersionID}
	records, err := svc.GetAnalyses(ctx, key, "entities")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = svc.GetAnalyses(ctx, key, "sceneAnalysis")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	_, err = svc.GetAnalyses(ctx, key, "nonsense")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	// Another user cannot see the script.
	_, err = svc.GetScript(ctx, "u2", res.ScriptID, "", false)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
