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

// Package services contains the business logic that sits between the HTTP
// handlers, the command chains and the data sources.
// This file defines the ArtifactService, which stores user artifacts in
// Google Cloud Storage and issues time-limited URLs for them.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"

	"github.com/pymenow/f3backEnd/internal/cloud"
	"github.com/pymenow/f3backEnd/internal/core/apperr"
)

// DefaultSignedURLExpiry is the lifetime of every issued URL unless configured.
const DefaultSignedURLExpiry = 10 * time.Minute

// ObjectStore is the artifact storage contract used by handlers and commands.
// Paths are bucket relative.
type ObjectStore interface {
	Save(ctx context.Context, path string, contentType string, data []byte) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	SignedURL(ctx context.Context, path string) (string, error)
	URI(path string) string
}

// ArtifactService encapsulates the clients and configuration needed to store
// and serve artifacts.
type ArtifactService struct {
	StorageClient *storage.Client                   // Client for interacting with Google Cloud Storage.
	IAMClient     *credentials.IamCredentialsClient // Used for signing URLs when SignerEmail is set.
	SignerEmail   string                            // The service account email used to sign URLs.
	Bucket        string                            // Bucket holding every artifact.
	Expiry        time.Duration                     // Lifetime of signed URLs.
}

// NewArtifactService builds the service from the shared clients.
func NewArtifactService(clients *cloud.ServiceClients, config *cloud.Config) *ArtifactService {
	expiry := time.Duration(config.Storage.SignedURLMinutes) * time.Minute
	if expiry <= 0 {
		expiry = DefaultSignedURLExpiry
	}
	return &ArtifactService{
		StorageClient: clients.StorageClient,
		IAMClient:     clients.IAMClient,
		SignerEmail:   config.Application.SignerServiceAccountEmail,
		Bucket:        config.Storage.Bucket,
		Expiry:        expiry,
	}
}

// URI returns the gs:// URI of a bucket relative path.
func (s *ArtifactService) URI(path string) string {
	return cloud.GSURI(s.Bucket, path)
}

// Save writes data to path, replacing any existing object.
func (s *ArtifactService) Save(ctx context.Context, path string, contentType string, data []byte) error {
	w := s.StorageClient.Bucket(s.Bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return apperr.Wrap(apperr.Storage, err, "failed to write %s", path)
	}
	if err := w.Close(); err != nil {
		return apperr.Wrap(apperr.Storage, err, "failed to finalize %s", path)
	}
	slog.DebugContext(ctx, "artifact saved", "path", path, "bytes", len(data))
	return nil
}

// Open returns a reader over the object. A missing object is NotFound.
func (s *ArtifactService) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	r, err := s.StorageClient.Bucket(s.Bucket).Object(path).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, apperr.New(apperr.NotFound, "File not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, err, "failed to open %s", path)
	}
	return r, nil
}

// Delete removes the object. A missing object is NotFound.
func (s *ArtifactService) Delete(ctx context.Context, path string) error {
	err := s.StorageClient.Bucket(s.Bucket).Object(path).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return apperr.New(apperr.NotFound, "File not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.Storage, err, "failed to delete %s", path)
	}
	return nil
}

// SignedURL creates a V4 GET URL for path that expires after s.Expiry.
// When a signer service account is configured the bytes are signed through
// the IAM Credentials API, otherwise the client's own credentials are used.
func (s *ArtifactService) SignedURL(ctx context.Context, path string) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(s.Expiry),
	}
	if s.SignerEmail != "" && s.IAMClient != nil {
		opts.GoogleAccessID = s.SignerEmail
		opts.SignBytes = func(b []byte) ([]byte, error) {
			req := &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.SignerEmail),
				Payload: b,
			}
			resp, err := s.IAMClient.SignBlob(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		}
	}

	u, err := s.StorageClient.Bucket(s.Bucket).SignedURL(path, opts)
	if err != nil {
		return "", apperr.Wrap(apperr.Storage, err, "Bucket(%q).SignedURL(%q)", s.Bucket, path)
	}
	return u, nil
}
