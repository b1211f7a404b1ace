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
// This file, `usage.go`, defines the UsageService, the token usage ledger
// kept in BigQuery. One row is appended per persisted analysis and the usage
// dashboard aggregates them per analysis type.
package services

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

// UsageLedger records and summarizes model token usage.
type UsageLedger interface {
	Record(ctx context.Context, row *model.UsageRow) error
	Summary(ctx context.Context, userID string) ([]*model.UsageSummary, error)
}

// UsageService implements UsageLedger on BigQuery.
type UsageService struct {
	BigqueryClient *bigquery.Client // Client for interacting with Google BigQuery.
	DatasetName    string           // The name of the BigQuery dataset.
	UsageTable     string           // The name of the table holding one row per analysis.
}

// GetFQN returns the queryable name of the usage table,
// e.g. `gcp-project-id.f3_ds.analysis_usage`.
func (s *UsageService) GetFQN() string {
	fqn := s.BigqueryClient.Dataset(s.DatasetName).Table(s.UsageTable).FullyQualifiedName()
	return strings.Replace(fqn, ":", ".", -1)
}

// Record appends one row through the streaming inserter.
func (s *UsageService) Record(ctx context.Context, row *model.UsageRow) error {
	inserter := s.BigqueryClient.Dataset(s.DatasetName).Table(s.UsageTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return apperr.Wrap(apperr.Storage, err, "failed to record usage")
	}
	return nil
}

// Summary returns the per analysis type totals of userID, ordered by type.
//
// Inputs:
//   - ctx: The context for the request.
//   - userID: The authenticated user.
//
// Outputs:
//   - []*model.UsageSummary: One entry per analysis type the user ran. Never nil.
//   - error: An error if the query or row scanning fails.
func (s *UsageService) Summary(ctx context.Context, userID string) (out []*model.UsageSummary, err error) {
	out = make([]*model.UsageSummary, 0)

	q := s.BigqueryClient.Query(fmt.Sprintf(QryUsageSummary, s.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	itr, err := q.Read(ctx)
	if err != nil {
		return out, apperr.Wrap(apperr.Storage, err, "failed to read from BigQuery")
	}
	for {
		r := &model.UsageSummary{}
		err := itr.Next(r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return out, apperr.Wrap(apperr.Storage, err, "failed to iterate results")
		}
		out = append(out, r)
	}
	return out, nil
}
