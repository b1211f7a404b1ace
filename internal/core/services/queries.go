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

// Package services contains the business logic for interacting with data sources.
// This file centralizes the BigQuery SQL used by the usage ledger. The table
// name is injected with `fmt.Sprintf`; every caller supplied value is passed
// as a named query parameter.
package services

const (
	// QryUsageSummary aggregates the usage rows of one user per analysis type.
	//
	// Placeholders:
	// - `%s`: The fully qualified name of the usage table.
	//
	// Parameters:
	// - `@user_id`: The authenticated user.
	QryUsageSummary = "SELECT analysis_type, COUNT(*) AS runs, SUM(prompt_tokens) AS prompt_tokens, " +
		"SUM(candidate_tokens) AS candidate_tokens, SUM(total_tokens) AS total_tokens " +
		"FROM `%s` WHERE user_id = @user_id GROUP BY analysis_type ORDER BY analysis_type"
)
