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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// well-known context keys shared by the commands of one chain and the values
// stored under them.
package commands

import (
	"context"

	"github.com/pymenow/f3backEnd/internal/core/model"
)

// Context keys. Commands of the analysis chain read and write these instead
// of relying only on the In/Out piping, because several later steps need the
// request and the resolved version.
const (
	ParamAnalysisRequest = "__analysis_request__" // *AnalysisRequest
	ParamVersionKey      = "__version_key__"      // model.VersionKey, resolved to a concrete version
	ParamScriptContent   = "__script_content__"   // string
	ParamPrompt          = "__prompt__"           // string
	ParamModelResponse   = "__model_response__"   // *genai.GenerateContentResponse
	ParamModelChunks     = "__model_chunks__"     // []*genai.GenerateContentResponse
	ParamAggregated      = "__aggregated__"       // *model.AggregatedResult
	ParamRecord          = "__record__"           // *model.AnalysisRecord

	ParamSceneRecord = "__scene_record__" // *model.AnalysisRecord of the scene analysis
	ParamSceneTree   = "__scene_tree__"   // *SynthesizedTree

	ParamImageRequest = "__image_request__" // *ImageRequest
	ParamImageURL     = "__image_url__"     // string
	ParamImageBytes   = "__image_bytes__"   // *ImageData
	ParamArtifactPath = "__artifact_path__" // string
	ParamSignedURL    = "__signed_url__"    // string
)

// StreamSink receives the model chunks of a streamed analysis, one encoded
// JSON chunk per call. An error means the caller went away; the chain stops
// forwarding but keeps consuming the stream.
type StreamSink interface {
	WriteChunk(chunk []byte) error
}

// AnalysisRequest is the input of the analysis chain.
type AnalysisRequest struct {
	CallerID     string // Identity proven by the auth layer.
	UserID       string // Owner named in the request body.
	ScriptID     string
	VersionID    string // Empty selects the current version.
	AnalysisType model.AnalysisType
	Stream       bool
	Sink         StreamSink // Only used when Stream is set.
}

// Key returns the version key named by the request.
func (r *AnalysisRequest) Key() model.VersionKey {
	return model.VersionKey{UserID: r.UserID, ScriptID: r.ScriptID, VersionID: r.VersionID}
}

// MediaTrigger hands a completed scene analysis to the media pipeline
// without waiting for it.
type MediaTrigger interface {
	Trigger(ctx context.Context, key model.VersionKey) error
}

// UsageRecorder is the part of the usage ledger the analysis chain writes to.
type UsageRecorder interface {
	Record(ctx context.Context, row *model.UsageRow) error
}
