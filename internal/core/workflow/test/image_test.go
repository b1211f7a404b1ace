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

package workflow_test

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pymenow/f3backEnd/internal/cloud"
	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/commands"
	"github.com/pymenow/f3backEnd/internal/core/imagery"
	"github.com/pymenow/f3backEnd/internal/core/workflow"
	test "github.com/pymenow/f3backEnd/internal/testutil"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fluxServer serves the Flux submit and result endpoints plus the image.
func fluxServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/flux-dev":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "req-1"})
		case r.URL.Path == "/get_result":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "Ready",
				"result": map[string]string{"sample": srv.URL + "/sample.png"},
			})
		case r.URL.Path == "/sample.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(body)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestImageGenerationStoresAndSigns(t *testing.T) {
	srv := fluxServer(t, pngBytes(t, 64, 64, color.White))

	flux, err := imagery.NewProvider(imagery.ProviderFlux, cloud.ImageProvider{BaseURL: srv.URL, PollIntervalMillis: 1, TimeoutSeconds: 5}, srv.Client())
	require.NoError(t, err)

	mark, err := imagery.NewWatermarker(bytes.NewReader(pngBytes(t, 8, 8, color.Black)), nil)
	require.NoError(t, err)

	objects := test.NewFakeObjectStore("artifacts")
	w := workflow.NewImageGenerationWorkflow(
		map[string]imagery.Provider{imagery.ProviderFlux: flux},
		srv.Client(), 1<<20, mark, objects)

	result, err := w.Run(ctx, &commands.ImageRequest{
		UserID: uid, ScriptID: "s1", VersionID: "v1", Prompt: "a rocket at dawn", Prod: true,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Path, "user-1/s1/v1/images/"))
	assert.True(t, strings.HasSuffix(result.Path, ".png"))
	assert.Equal(t, "gs://artifacts/"+result.Path, result.URI)
	assert.NotEmpty(t, result.SignedURL)

	stored, ok := objects.Objects[result.Path]
	require.True(t, ok)
	img, err := png.Decode(bytes.NewReader(stored))
	require.NoError(t, err)
	r, g, b, _ := img.At(63-imagery.WatermarkMargin, 63-imagery.WatermarkMargin).RGBA()
	assert.Equal(t, [3]uint32{0, 0, 0}, [3]uint32{r, g, b})
	assert.Equal(t, "image/png", objects.Types[result.Path])
}

func TestImageGenerationWithoutProvider(t *testing.T) {
	objects := test.NewFakeObjectStore("artifacts")
	w := workflow.NewImageGenerationWorkflow(map[string]imagery.Provider{}, nil, 1<<20, nil, objects)

	_, err := w.Run(ctx, &commands.ImageRequest{UserID: uid, ScriptID: "s1", VersionID: "v1", Prompt: "x"})
	assert.Equal(t, apperr.Configuration, apperr.KindOf(err))
	assert.Empty(t, objects.Paths())
}

func TestImageGenerationRequiresPrompt(t *testing.T) {
	objects := test.NewFakeObjectStore("artifacts")
	w := workflow.NewImageGenerationWorkflow(map[string]imagery.Provider{}, nil, 1<<20, nil, objects)

	_, err := w.Run(ctx, &commands.ImageRequest{UserID: uid, ScriptID: "s1", VersionID: "v1"})
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}
