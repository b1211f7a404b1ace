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

// Package api holds the HTTP surface of the server. This file defines the
// statistics endpoints backed by the usage ledger.
//
// Functions:
//   - Dashboard: Sets up the `/stats` route group. `/stats/usage` returns the
//     caller's analysis runs and token totals per analysis type.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pymenow/f3backEnd/internal/core/model"
)

// Dashboard configures the API routes for usage statistics.
//
// Inputs:
//   - r: A *gin.RouterGroup to which the new "/stats" route group will be added.
//   - deps: The handler dependencies. deps.Usage answers the queries.
//
// Outputs:
//   - This function does not return any value. It modifies the provided *gin.RouterGroup
//     by adding the route handlers.
func Dashboard(r *gin.RouterGroup, deps *Dependencies) {
	stats := r.Group("/stats")
	{
		stats.GET("/usage", func(c *gin.Context) {
			summary, err := deps.Usage.Summary(c.Request.Context(), CallerID(c))
			if err != nil {
				renderError(c, err)
				return
			}
			if summary == nil {
				summary = make([]*model.UsageSummary, 0)
			}
			c.JSON(http.StatusOK, gin.H{"usage": summary})
		})
	}
}
