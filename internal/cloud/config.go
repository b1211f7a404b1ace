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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files, and the clients used to talk to Google Cloud.
//
// This file centralizes all configuration structs:
//   - Application: project, location, HTTP port, logging and telemetry switches.
//   - Auth: Firebase ID token verification settings.
//   - Store and Storage: the result store backend and the artifact bucket.
//   - Analysis: the model and limits used by the analysis orchestrator.
//   - Media: worker count, deadlines and language defaults of the media pipeline.
//   - Voices, ImageProviders, Topics and TopicSubscriptions.
package cloud

import (
	"fmt"

	"google.golang.org/genai"
)

// DefaultSafetySettings turns every content filter off. Scripts routinely
// contain violence and strong language that must reach the model unfiltered.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdOff,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdOff,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdOff,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdOff,
	},
}

// Trigger modes for the media synthesis pipeline.
const (
	TriggerPubSub = "pubsub"
	TriggerInline = "inline"
)

// BigQueryDataSource represents the configuration of the usage ledger.
type BigQueryDataSource struct {
	DatasetName string `toml:"dataset"`     // The BigQuery dataset.
	UsageTable  string `toml:"usage_table"` // One row per persisted analysis.
}

// VertexAiLLMModel represents the configuration for a Vertex AI large language model (LLM).
type VertexAiLLMModel struct {
	Model        string  `toml:"model"`         // The name of the Vertex AI LLM.
	Temperature  float32 `toml:"temperature"`   // The temperature parameter for the LLM.
	TopP         float32 `toml:"top_p"`         // The top_p parameter for the LLM.
	MaxTokens    int32   `toml:"max_tokens"`    // The maximum number of tokens for the LLM output.
	OutputFormat string  `toml:"output_format"` // The desired output MIME type.
	RateLimit    int     `toml:"rate_limit"`    // Burst size of the request limiter, refilled once per second.
}

// TopicSubscription represents the configuration for a Pub/Sub topic subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`               // The name of the Pub/Sub subscription.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The name of the dead-letter topic for the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // The timeout for the subscription in seconds.
}

// Topic is a Pub/Sub topic the server publishes to.
type Topic struct {
	Name string `toml:"name"`
}

// Storage represents the configuration of the artifact bucket.
type Storage struct {
	Bucket            string `toml:"bucket"`              // Bucket holding every user artifact.
	SignedURLMinutes  int    `toml:"signed_url_minutes"`  // Lifetime of issued signed URLs.
	WatermarkPath     string `toml:"watermark_path"`      // PNG composited onto generated images. Empty disables watermarking.
	Watermark1024Path string `toml:"watermark_1024_path"` // Variant used for images 1024 pixels high.
	MaxUploadBytes    int64  `toml:"max_upload_bytes"`    // Upper bound for uploads and downloaded artifacts.
}

// Voice is the voice set used for one language.
type Voice struct {
	LanguageCode string `toml:"language_code"` // BCP-47 code sent to Text-to-Speech.
	Male         string `toml:"male"`          // Voice name for MALE lines. Empty lets the service choose.
	Female       string `toml:"female"`        // Voice name for FEMALE lines.
	Narrator     string `toml:"narrator"`      // Voice name for scene summaries.
}

// ImageProvider configures one external image generation API. The API key
// is read from the environment variable named by APIKeyEnv.
type ImageProvider struct {
	BaseURL            string `toml:"base_url"`
	DefaultPath        string `toml:"default_path"` // Model path used when the caller gives none.
	APIKeyEnv          string `toml:"api_key_env"`
	Width              int    `toml:"width"`
	Height             int    `toml:"height"`
	PollIntervalMillis int    `toml:"poll_interval_millis"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
}

// Config represents the overall configuration for the application, loaded from TOML files.
// It acts as the root container for all other configuration structs.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name                      string `toml:"name"`                         // The name of the application.
		GoogleProjectId           string `toml:"google_project_id"`            // The Google Cloud project ID.
		GoogleLocation            string `toml:"location"`                     // The Google Cloud location.
		SignerServiceAccountEmail string `toml:"signer_service_account_email"` // Service account used to sign GCS URLs through IAM.
		HTTPPort                  int    `toml:"http_port"`                    // Port the API listens on.
		LogLevel                  string `toml:"log_level"`                    // debug, info, warn or error.
		LogFile                   string `toml:"log_file"`                     // Optional file receiving a copy of the logs.
		Telemetry                 bool   `toml:"telemetry"`                    // Install the GCP trace and metric exporters.
	} `toml:"application"`

	// Auth controls verification of Firebase ID tokens.
	Auth struct {
		JWKSURL       string `toml:"jwks_url"`        // Key set the ID tokens are signed with.
		IssuerPrefix  string `toml:"issuer_prefix"`   // Issuer is this prefix followed by the project id.
		DevHMACSecret string `toml:"dev_hmac_secret"` // When set, HS256 tokens signed with it are accepted instead.
	} `toml:"auth"`

	// Store selects the result store backend.
	Store struct {
		Backend  string `toml:"backend"`  // firestore or memory.
		Database string `toml:"database"` // Firestore database id.
	} `toml:"store"`

	// Analysis configures the analysis orchestrator.
	Analysis struct {
		AgentModel          string `toml:"agent_model"`           // Key into AgentModels.
		MinScriptLength     int    `toml:"min_script_length"`     // Inclusive lower bound, in characters.
		MaxScriptLength     int    `toml:"max_script_length"`     // Inclusive upper bound, in characters.
		ModelTimeoutSeconds int    `toml:"model_timeout_seconds"` // Deadline of one model call.
		Trigger             string `toml:"trigger"`               // pubsub or inline.
	} `toml:"analysis"`

	// Media configures the media synthesis pipeline.
	Media struct {
		Workers            int    `toml:"workers"`              // Units synthesized in parallel, 1 is sequential.
		UnitTimeoutSeconds int    `toml:"unit_timeout_seconds"` // Deadline of one unit (detect, synthesize, store).
		DefaultLanguage    string `toml:"default_language"`     // Locale that gets the narrator voice for summaries.
		DefaultGender      string `toml:"default_gender"`       // Gender used when a dialogue has none.
		DetectionCacheSize int    `toml:"detection_cache_size"` // Entries of the language detection cache.
	} `toml:"media"`

	Storage            Storage                      `toml:"storage"`               // Storage configuration.
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"` // Usage ledger configuration.
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"`   // Pub/Sub subscriptions keyed by a logical name (e.g., "SceneAnalysisTopic").
	Topics             map[string]Topic             `toml:"topics"`                // Pub/Sub topics keyed by a logical name.
	AgentModels        map[string]VertexAiLLMModel  `toml:"agent_models"`          // Vertex AI LLMs keyed by a logical name (e.g., "script-analyst").
	Voices             map[string]Voice             `toml:"voices"`                // Voice sets keyed by language code.
	ImageProviders     map[string]ImageProvider     `toml:"image_providers"`       // "flux" and "fal".
}

// NewConfig is a constructor function that creates a new, initialized Config instance.
// The maps are initialized so the loader can populate them, and the scalar
// defaults match the limits the API documents.
//
// Outputs:
//   - *Config: A pointer to a new Config struct with defaults applied.
func NewConfig() *Config {
	c := &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		Topics:             make(map[string]Topic),
		AgentModels:        make(map[string]VertexAiLLMModel),
		Voices:             make(map[string]Voice),
		ImageProviders:     make(map[string]ImageProvider),
	}
	c.Application.HTTPPort = 8080
	c.Application.LogLevel = "info"
	c.Auth.JWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
	c.Auth.IssuerPrefix = "https://securetoken.google.com/"
	c.Store.Backend = "firestore"
	c.Analysis.MinScriptLength = 20
	c.Analysis.MaxScriptLength = 2000
	c.Analysis.ModelTimeoutSeconds = 120
	c.Analysis.Trigger = TriggerInline
	c.Media.Workers = 1
	c.Media.UnitTimeoutSeconds = 60
	c.Media.DefaultLanguage = "en-US"
	c.Media.DefaultGender = "MALE"
	c.Media.DetectionCacheSize = 1024
	c.Storage.SignedURLMinutes = 10
	c.Storage.MaxUploadBytes = 20 << 20
	return c
}

// Validate checks the settings that would otherwise fail on the first request.
func (c *Config) Validate() error {
	if c.Analysis.MinScriptLength < 0 || c.Analysis.MinScriptLength >= c.Analysis.MaxScriptLength {
		return fmt.Errorf("analysis: min_script_length (%d) must be below max_script_length (%d)",
			c.Analysis.MinScriptLength, c.Analysis.MaxScriptLength)
	}
	if c.Analysis.ModelTimeoutSeconds <= 0 {
		return fmt.Errorf("analysis: model_timeout_seconds must be positive")
	}
	if _, ok := c.AgentModels[c.Analysis.AgentModel]; !ok {
		return fmt.Errorf("analysis: agent_model %q is not configured", c.Analysis.AgentModel)
	}
	switch c.Analysis.Trigger {
	case TriggerInline:
	case TriggerPubSub:
		if _, ok := c.Topics["SceneAnalysisTopic"]; !ok {
			return fmt.Errorf("analysis: pubsub trigger needs topics.SceneAnalysisTopic")
		}
	default:
		return fmt.Errorf("analysis: unknown trigger %q", c.Analysis.Trigger)
	}
	switch c.Store.Backend {
	case "firestore", "memory":
	default:
		return fmt.Errorf("store: unknown backend %q", c.Store.Backend)
	}
	if c.Media.Workers <= 0 {
		return fmt.Errorf("media: workers must be positive")
	}
	if c.Media.UnitTimeoutSeconds <= 0 {
		return fmt.Errorf("media: unit_timeout_seconds must be positive")
	}
	if c.Storage.SignedURLMinutes <= 0 {
		return fmt.Errorf("storage: signed_url_minutes must be positive")
	}
	return nil
}
