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

// Package cloud provides components for interacting with Google Cloud services.
// This file is responsible for initializing and holding all the client
// objects needed to communicate with Google Cloud. It acts as a dependency
// injection container: one `ServiceClients` is built at startup and handed to
// the services and workflows.
//
// Logic Flow:
//  1. `NewCloudServiceClients` is called at application startup with the config.
//  2. It initializes clients for Storage, Pub/Sub, GenAI, BigQuery, IAM,
//     Text-to-Speech, Natural Language and, for the firestore backend, Firestore.
//  3. It creates one listener per configured subscription, one publisher per
//     configured topic and one rate limited model per configured agent model.
//  4. Everything is bundled into a single `ServiceClients` struct.
package cloud

import (
	"context"
	"errors"
	"log/slog"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/firestore"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	language "cloud.google.com/go/language/apiv2"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"google.golang.org/genai"
)

// ServiceClients is the central container for the clients that talk to
// Google Cloud.
type ServiceClients struct {
	StorageClient   *storage.Client                         // Client for Google Cloud Storage (GCS).
	PubsubClient    *pubsub.Client                          // Client for Google Cloud Pub/Sub.
	GenAIClient     *genai.Client                           // Client for Gemini on Vertex AI.
	BiqQueryClient  *bigquery.Client                        // Client for the usage ledger.
	IAMClient       *credentials.IamCredentialsClient       // Client for IAM to sign GCS URLs.
	FirestoreClient *firestore.Client                       // Nil unless the store backend is firestore.
	SpeechClient    *texttospeech.Client                    // Client for Text-to-Speech.
	LanguageClient  *language.Client                        // Client for Natural Language.
	PubSubListeners map[string]*PubSubListener              // Listeners keyed by a logical name from the config.
	Publishers      map[string]*PubSubPublisher             // Publishers keyed by a logical name from the config.
	AgentModels     map[string]*QuotaAwareGenerativeAIModel // Rate limited models keyed by a logical name.
}

// Close releases every open client. Nil clients are skipped.
func (c *ServiceClients) Close() error {
	var errs []error
	for _, p := range c.Publishers {
		p.Stop()
	}
	if c.StorageClient != nil {
		errs = append(errs, c.StorageClient.Close())
	}
	if c.PubsubClient != nil {
		errs = append(errs, c.PubsubClient.Close())
	}
	if c.BiqQueryClient != nil {
		errs = append(errs, c.BiqQueryClient.Close())
	}
	if c.IAMClient != nil {
		errs = append(errs, c.IAMClient.Close())
	}
	if c.FirestoreClient != nil {
		errs = append(errs, c.FirestoreClient.Close())
	}
	if c.SpeechClient != nil {
		errs = append(errs, c.SpeechClient.Close())
	}
	if c.LanguageClient != nil {
		errs = append(errs, c.LanguageClient.Close())
	}
	return errors.Join(errs...)
}

// NewCloudServiceClients is a factory function that initializes all required Google Cloud
// service clients based on the provided configuration.
//
// Inputs:
//   - ctx: The root context.Context for the application.
//   - config: A pointer to the loaded application configuration (`Config`).
//
// Outputs:
//   - *ServiceClients: A pointer to the fully initialized ServiceClients struct.
//   - error: An error if any of the clients fail to initialize. Clients that
//     were already created are closed.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	cloud = &ServiceClients{
		PubSubListeners: make(map[string]*PubSubListener),
		Publishers:      make(map[string]*PubSubPublisher),
		AgentModels:     make(map[string]*QuotaAwareGenerativeAIModel),
	}
	defer func() {
		if err != nil {
			_ = cloud.Close()
			cloud = nil
		}
	}()

	project := config.Application.GoogleProjectId

	if cloud.StorageClient, err = storage.NewClient(ctx); err != nil {
		return cloud, err
	}
	if cloud.PubsubClient, err = pubsub.NewClient(ctx, project); err != nil {
		return cloud, err
	}
	slog.InfoContext(ctx, "creating genai client", "project", project, "location", config.Application.GoogleLocation)
	if cloud.GenAIClient, err = genai.NewClient(ctx, &genai.ClientConfig{
		Project:  project,
		Location: config.Application.GoogleLocation,
		Backend:  genai.BackendVertexAI,
	}); err != nil {
		return cloud, err
	}
	if cloud.BiqQueryClient, err = bigquery.NewClient(ctx, project); err != nil {
		return cloud, err
	}
	if cloud.IAMClient, err = credentials.NewIamCredentialsClient(ctx); err != nil {
		return cloud, err
	}
	if cloud.SpeechClient, err = texttospeech.NewClient(ctx); err != nil {
		return cloud, err
	}
	if cloud.LanguageClient, err = language.NewClient(ctx); err != nil {
		return cloud, err
	}
	if config.Store.Backend == "firestore" {
		database := config.Store.Database
		if database == "" {
			database = firestore.DefaultDatabaseID
		}
		if cloud.FirestoreClient, err = firestore.NewClientWithDatabase(ctx, project, database); err != nil {
			return cloud, err
		}
	}

	// The command is attached later, when the workflows are built.
	for subKey, values := range config.TopicSubscriptions {
		listener, lErr := NewPubSubListener(cloud.PubsubClient, values.Name, nil)
		if lErr != nil {
			return cloud, lErr
		}
		cloud.PubSubListeners[subKey] = listener
	}
	for topicKey, values := range config.Topics {
		cloud.Publishers[topicKey] = NewPubSubPublisher(cloud.PubsubClient, values.Name)
	}
	for amKey, values := range config.AgentModels {
		cloud.AgentModels[amKey] = NewQuotaAwareModel(NewAnalysisModelConfig(values), values.Model, cloud.GenAIClient.Models, values.RateLimit)
	}

	return cloud, nil
}
