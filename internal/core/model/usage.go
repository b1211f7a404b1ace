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

package model

import "time"

// UsageRow is one row of the BigQuery usage ledger, written per persisted
// analysis. The `bigquery` tags map the fields onto table columns.
type UsageRow struct {
	UserID          string    `bigquery:"user_id"`
	ScriptID        string    `bigquery:"script_id"`
	VersionID       string    `bigquery:"version_id"`
	AnalysisType    string    `bigquery:"analysis_type"`
	ModelVersion    string    `bigquery:"model_version"`
	PromptTokens    int64     `bigquery:"prompt_tokens"`
	CandidateTokens int64     `bigquery:"candidate_tokens"`
	TotalTokens     int64     `bigquery:"total_tokens"`
	Streamed        bool      `bigquery:"streamed"`
	CreatedAt       time.Time `bigquery:"created_at"`
}

// NewUsageRow builds a ledger row for a persisted record.
func NewUsageRow(key VersionKey, record *AnalysisRecord, tokens TokenCounts) *UsageRow {
	return &UsageRow{
		UserID:          key.UserID,
		ScriptID:        key.ScriptID,
		VersionID:       key.VersionID,
		AnalysisType:    string(record.AnalysisType),
		ModelVersion:    record.ModelVersion,
		PromptTokens:    tokens.Prompt,
		CandidateTokens: tokens.Candidates,
		TotalTokens:     tokens.Total,
		Streamed:        record.Streamed,
		CreatedAt:       record.Timestamp,
	}
}

// UsageSummary aggregates the ledger per analysis type for the dashboard.
type UsageSummary struct {
	AnalysisType    string `bigquery:"analysis_type" json:"analysisType"`
	Runs            int64  `bigquery:"runs" json:"runs"`
	PromptTokens    int64  `bigquery:"prompt_tokens" json:"promptTokens"`
	CandidateTokens int64  `bigquery:"candidate_tokens" json:"candidateTokens"`
	TotalTokens     int64  `bigquery:"total_tokens" json:"totalTokens"`
}
