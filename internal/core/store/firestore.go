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
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

const (
	usersCollection    = "users"
	scriptsCollection  = "scripts"
	versionsCollection = "versions"
	analysesCollection = "analyses"
)

// FirestoreStore implements ResultStore on Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore wraps an initialized Firestore client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (f *FirestoreStore) scriptRef(uid, scriptID string) *firestore.DocumentRef {
	return f.client.Collection(usersCollection).Doc(uid).Collection(scriptsCollection).Doc(scriptID)
}

func (f *FirestoreStore) versionRef(key model.VersionKey) *firestore.DocumentRef {
	return f.scriptRef(key.UserID, key.ScriptID).Collection(versionsCollection).Doc(key.VersionID)
}

func (f *FirestoreStore) analyses(key model.VersionKey) *firestore.CollectionRef {
	return f.versionRef(key).Collection(analysesCollection)
}

// CreateScript writes the script and its first version in one transaction.
func (f *FirestoreStore) CreateScript(ctx context.Context, uid string, script *model.Script, first *model.Version) (*model.Script, *model.Version, error) {
	scripts := f.client.Collection(usersCollection).Doc(uid).Collection(scriptsCollection)
	sRef := scripts.NewDoc()
	vRef := sRef.Collection(versionsCollection).NewDoc()

	s := *script
	s.ID = sRef.ID
	s.CurrentVersion = vRef.ID
	v := *first
	v.ID = vRef.ID

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(sRef, &s); err != nil {
			return err
		}
		return tx.Create(vRef, &v)
	})
	if err != nil {
		return nil, nil, storageError(err, "failed to create script")
	}
	return &s, &v, nil
}

func (f *FirestoreStore) GetScript(ctx context.Context, uid, scriptID string) (*model.Script, error) {
	snap, err := f.scriptRef(uid, scriptID).Get(ctx)
	if err != nil {
		return nil, notFoundOr(err, "Script not found.")
	}
	var s model.Script
	if err := snap.DataTo(&s); err != nil {
		return nil, apperr.Wrap(apperr.Storage, err, "failed to decode script %s", scriptID)
	}
	s.ID = snap.Ref.ID
	return &s, nil
}

func (f *FirestoreStore) GetVersion(ctx context.Context, uid, scriptID, versionID string) (*model.Version, error) {
	snap, err := f.versionRef(model.VersionKey{UserID: uid, ScriptID: scriptID, VersionID: versionID}).Get(ctx)
	if err != nil {
		return nil, notFoundOr(err, "Version not found.")
	}
	var v model.Version
	if err := snap.DataTo(&v); err != nil {
		return nil, apperr.Wrap(apperr.Storage, err, "failed to decode version %s", versionID)
	}
	v.ID = snap.Ref.ID
	return &v, nil
}

// AddVersion reads the highest version number and writes the next version in
// the same transaction, so concurrent additions retry instead of colliding.
func (f *FirestoreStore) AddVersion(ctx context.Context, uid, scriptID string, version *model.Version, now time.Time) (*model.Version, error) {
	sRef := f.scriptRef(uid, scriptID)
	versions := sRef.Collection(versionsCollection)
	vRef := versions.NewDoc()
	var out model.Version

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(sRef); err != nil {
			return err
		}
		latest, err := tx.Documents(versions.OrderBy("versionNumber", firestore.Desc).Limit(1)).GetAll()
		if err != nil {
			return err
		}
		highest := 0
		if len(latest) > 0 {
			var v model.Version
			if err := latest[0].DataTo(&v); err != nil {
				return err
			}
			highest = v.VersionNumber
		}

		out = *version
		out.ID = vRef.ID
		out.VersionNumber = highest + 1
		if err := tx.Create(vRef, &out); err != nil {
			return err
		}
		return tx.Update(sRef, []firestore.Update{
			{Path: "currentVersion", Value: vRef.ID},
			{Path: "lastModifiedAt", Value: now.UTC()},
		})
	})
	if err != nil {
		return nil, notFoundOr(err, "Script not found.")
	}
	return &out, nil
}

func (f *FirestoreStore) FindAnalyses(ctx context.Context, key model.VersionKey, analysisType model.AnalysisType) ([]*model.AnalysisRecord, error) {
	snaps, err := f.analyses(key).Where("analysisType", "==", string(analysisType)).Documents(ctx).GetAll()
	if err != nil {
		return nil, storageError(err, "failed to query %s analyses", analysisType)
	}
	return decodeRecords(snaps)
}

func (f *FirestoreStore) ListAnalyses(ctx context.Context, key model.VersionKey) ([]*model.AnalysisRecord, error) {
	snaps, err := f.analyses(key).OrderBy("analysisType", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, storageError(err, "failed to list analyses")
	}
	return decodeRecords(snaps)
}

// CreateAnalysis uses the analysis type as the document id, so Firestore
// rejects a second record of the same type with AlreadyExists.
func (f *FirestoreStore) CreateAnalysis(ctx context.Context, key model.VersionKey, record *model.AnalysisRecord) error {
	id := record.ID
	if id == "" {
		id = string(record.AnalysisType)
	}
	_, err := f.analyses(key).Doc(id).Create(ctx, record)
	if status.Code(err) == codes.AlreadyExists {
		return DuplicateError(record.AnalysisType)
	}
	if err != nil {
		return storageError(err, "failed to store %s analysis", record.AnalysisType)
	}
	return nil
}

func (f *FirestoreStore) UpdateAnalysisFields(ctx context.Context, key model.VersionKey, analysisType model.AnalysisType, fields map[string]any) error {
	records, err := f.FindAnalyses(ctx, key, analysisType)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return apperr.New(apperr.NotFound, "No %s analysis found for this version.", analysisType)
	}
	updates := make([]firestore.Update, 0, len(fields))
	for name, value := range fields {
		updates = append(updates, firestore.Update{Path: name, Value: value})
	}
	if _, err := f.analyses(key).Doc(records[0].ID).Update(ctx, updates); err != nil {
		return notFoundOr(err, "No %s analysis found for this version.", analysisType)
	}
	return nil
}

func decodeRecords(snaps []*firestore.DocumentSnapshot) ([]*model.AnalysisRecord, error) {
	out := make([]*model.AnalysisRecord, 0, len(snaps))
	for _, snap := range snaps {
		var r model.AnalysisRecord
		if err := snap.DataTo(&r); err != nil {
			return nil, apperr.Wrap(apperr.Storage, err, "failed to decode analysis %s", snap.Ref.ID)
		}
		r.ID = snap.Ref.ID
		out = append(out, &r)
	}
	return out, nil
}

func notFoundOr(err error, format string, args ...any) error {
	if status.Code(err) == codes.NotFound {
		return apperr.New(apperr.NotFound, format, args...)
	}
	return storageError(err, format, args...)
}

func storageError(err error, format string, args ...any) error {
	if apperr.KindOf(err) != apperr.Internal {
		return err
	}
	return apperr.Wrap(apperr.Storage, err, format, args...)
}
