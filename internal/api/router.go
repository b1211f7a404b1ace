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

// Package api holds the HTTP surface of the server: the gin router, the
// authentication middleware and one handler group per resource.
//
// Every route lives under /api/v1 and requires a bearer token. Handlers
// translate JSON bodies into calls on the workflows and services and render
// failures through the error kinds of package apperr.
package api

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/pymenow/f3backEnd/internal/core/commands"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/pymenow/f3backEnd/internal/core/services"
	"github.com/pymenow/f3backEnd/internal/core/workflow"
)

// Analyzer runs one analysis through the orchestrator.
type Analyzer interface {
	Run(ctx context.Context, req *commands.AnalysisRequest) (*model.AnalysisRecord, error)
}

// ImageGenerator runs the image generation workflow.
type ImageGenerator interface {
	Run(ctx context.Context, req *commands.ImageRequest) (*workflow.ImageResult, error)
}

// UsageReader serves the usage dashboard.
type UsageReader interface {
	Summary(ctx context.Context, userID string) ([]*model.UsageSummary, error)
}

// Dependencies are the collaborators the handlers call into.
type Dependencies struct {
	Verifier       TokenVerifier
	Analysis       Analyzer
	Scripts        *services.ScriptService
	Objects        services.ObjectStore
	Media          commands.MediaTrigger
	Units          commands.UnitRunner
	Images         ImageGenerator
	Usage          UsageReader
	HTTPClient     *http.Client // Downloads artifacts given by URL.
	MaxUploadBytes int64
	ServiceName    string // Name reported by the tracing middleware.
}

// NewRouter builds the gin engine with tracing, CORS and authentication and
// registers every route group.
func NewRouter(deps *Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	serviceName := deps.ServiceName
	if serviceName == "" {
		serviceName = "f3-backend"
	}
	r.Use(otelgin.Middleware(serviceName))
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1", Authenticate(deps.Verifier))
	{
		AnalysisRouter(apiV1, deps)
		ScriptRouter(apiV1, deps)
		AudioRouter(apiV1, deps)
		ImageRouter(apiV1, deps)
		ArtifactRouter(apiV1, deps)
		Dashboard(apiV1, deps)
	}
	return r
}
