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

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/pymenow/f3backEnd/internal/api"
	"github.com/pymenow/f3backEnd/internal/cloud"
	"github.com/pymenow/f3backEnd/internal/core/commands"
	"github.com/pymenow/f3backEnd/internal/core/dependency"
	"github.com/pymenow/f3backEnd/internal/core/imagery"
	"github.com/pymenow/f3backEnd/internal/core/prompts"
	"github.com/pymenow/f3backEnd/internal/core/services"
	"github.com/pymenow/f3backEnd/internal/core/speech"
	"github.com/pymenow/f3backEnd/internal/core/store"
	"github.com/pymenow/f3backEnd/internal/core/workflow"
)

// StateManager holds the shared components of the running server.
type StateManager struct {
	config   *cloud.Config
	cloud    *cloud.ServiceClients
	store    store.ResultStore
	media    *workflow.MediaSynthesisWorkflow
	inline   *workflow.InlineTrigger // Nil unless the trigger mode is inline.
	handlers *api.Dependencies
}

var state = &StateManager{}

// SetupOS defaults the config directory and runtime when the environment
// does not name them.
func SetupOS() (err error) {
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

// GetConfig loads and validates the configuration once.
func GetConfig() (*cloud.Config, error) {
	if state.config != nil {
		return state.config, nil
	}
	if err := SetupOS(); err != nil {
		return nil, fmt.Errorf("failed to setup os: %w", err)
	}
	config := cloud.NewConfig()
	if err := cloud.LoadConfig(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	state.config = config
	return config, nil
}

// InitState builds the clients, services and workflows and attaches the
// scene analysis listener when the pubsub trigger is configured.
func InitState(ctx context.Context) error {
	config, err := GetConfig()
	if err != nil {
		return err
	}

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create cloud clients: %w", err)
	}
	state.cloud = cloudClients

	switch config.Store.Backend {
	case "memory":
		slog.WarnContext(ctx, "using the in-memory result store, data is lost on restart")
		state.store = store.NewMemoryStore()
	default:
		state.store = store.NewFirestoreStore(cloudClients.FirestoreClient)
	}

	model, ok := cloudClients.AgentModels[config.Analysis.AgentModel]
	if !ok {
		return fmt.Errorf("agent model %q is not configured", config.Analysis.AgentModel)
	}
	resolver, err := dependency.NewResolver()
	if err != nil {
		return err
	}
	window := services.LengthWindow{Min: config.Analysis.MinScriptLength, Max: config.Analysis.MaxScriptLength}

	artifacts := services.NewArtifactService(cloudClients, config)
	usage := &services.UsageService{
		BigqueryClient: cloudClients.BiqQueryClient,
		DatasetName:    config.BigQueryDataSource.DatasetName,
		UsageTable:     config.BigQueryDataSource.UsageTable,
	}

	detector, err := speech.NewLanguageDetector(cloudClients.LanguageClient, config.Media.DetectionCacheSize)
	if err != nil {
		return err
	}
	units := speech.NewUnitSynthesizer(
		detector,
		speech.NewVoiceSelector(config.Voices, config.Media.DefaultLanguage, config.Media.DefaultGender),
		speech.NewGoogleSynthesizer(cloudClients.SpeechClient),
		artifacts)

	state.media = workflow.NewMediaSynthesisWorkflow(state.store, units, config.Media.Workers,
		time.Duration(config.Media.UnitTimeoutSeconds)*time.Second)

	var trigger commands.MediaTrigger
	switch config.Analysis.Trigger {
	case cloud.TriggerPubSub:
		trigger = workflow.NewPubSubTrigger(cloudClients.Publishers["SceneAnalysisTopic"])
	default:
		state.inline = workflow.NewInlineTrigger(state.media)
		trigger = state.inline
	}

	analysis := workflow.NewAnalysisWorkflow(workflow.AnalysisDependencies{
		Store:        state.store,
		Assembler:    dependency.NewAssembler(resolver, state.store),
		Model:        model,
		Instructions: prompts.SystemInstruction,
		Window:       window,
		ModelTimeout: time.Duration(config.Analysis.ModelTimeoutSeconds) * time.Second,
		Usage:        usage,
		Trigger:      trigger,
	})

	httpClient := &http.Client{Timeout: 2 * time.Minute}
	providers := make(map[string]imagery.Provider)
	for name, values := range config.ImageProviders {
		provider, err := imagery.NewProvider(name, values, httpClient)
		if err != nil {
			return err
		}
		providers[name] = provider
	}
	watermarker, err := loadWatermarker(config.Storage)
	if err != nil {
		return err
	}
	images := workflow.NewImageGenerationWorkflow(providers, httpClient, config.Storage.MaxUploadBytes, watermarker, artifacts)

	verifier, err := newVerifier(ctx, config)
	if err != nil {
		return err
	}

	state.handlers = &api.Dependencies{
		Verifier:       verifier,
		Analysis:       analysis,
		Scripts:        services.NewScriptService(state.store, services.NewTextScreener(cloudClients.LanguageClient), window),
		Objects:        artifacts,
		Media:          trigger,
		Units:          units,
		Images:         images,
		Usage:          usage,
		HTTPClient:     httpClient,
		MaxUploadBytes: config.Storage.MaxUploadBytes,
		ServiceName:    config.Application.Name,
	}

	SetupListeners(ctx, config, cloudClients)
	return nil
}

// SetupListeners runs the media synthesis workflow for every message on the
// scene analysis subscription. Messages are Ack'd only on success.
func SetupListeners(ctx context.Context, config *cloud.Config, cloudClients *cloud.ServiceClients) {
	if config.Analysis.Trigger != cloud.TriggerPubSub {
		return
	}
	listener, ok := cloudClients.PubSubListeners["SceneAnalysisTopic"]
	if !ok {
		slog.WarnContext(ctx, "no SceneAnalysisTopic subscription configured, media synthesis only runs elsewhere")
		return
	}
	listener.SetCommand(state.media)
	listener.Listen(ctx)
}

func newVerifier(ctx context.Context, config *cloud.Config) (api.TokenVerifier, error) {
	if config.Auth.DevHMACSecret != "" {
		slog.WarnContext(ctx, "accepting HS256 development tokens")
		return api.NewHMACVerifier(config.Auth.DevHMACSecret), nil
	}
	return api.NewFirebaseVerifier(ctx, config.Auth.JWKSURL, config.Auth.IssuerPrefix, config.Application.GoogleProjectId)
}

func loadWatermarker(cfg cloud.Storage) (*imagery.Watermarker, error) {
	open := func(path string) (io.ReadCloser, error) {
		if path == "" {
			return nil, nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open watermark %s: %w", path, err)
		}
		return f, nil
	}

	mark, err := open(cfg.WatermarkPath)
	if err != nil {
		return nil, err
	}
	tall, err := open(cfg.Watermark1024Path)
	if err != nil {
		if mark != nil {
			mark.Close()
		}
		return nil, err
	}

	var markReader, tallReader io.Reader
	if mark != nil {
		defer mark.Close()
		markReader = mark
	}
	if tall != nil {
		defer tall.Close()
		tallReader = tall
	}
	return imagery.NewWatermarker(markReader, tallReader)
}
