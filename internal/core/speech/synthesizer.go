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

package speech

import (
	"context"
	"log/slog"

	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

// AudioContentType is the MIME type of every synthesized artifact.
const AudioContentType = "audio/mpeg"

// Synthesizer renders text as MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice VoiceConfig) ([]byte, error)
}

// SpeechClient is the part of the Text-to-Speech client used here.
type SpeechClient interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
}

// GoogleSynthesizer calls Cloud Text-to-Speech.
type GoogleSynthesizer struct {
	client SpeechClient
}

func NewGoogleSynthesizer(client SpeechClient) *GoogleSynthesizer {
	return &GoogleSynthesizer{client: client}
}

func (s *GoogleSynthesizer) Synthesize(ctx context.Context, text string, voice VoiceConfig) ([]byte, error) {
	gender := texttospeechpb.SsmlVoiceGender_SSML_VOICE_GENDER_UNSPECIFIED
	if v, ok := texttospeechpb.SsmlVoiceGender_value[voice.Gender]; ok {
		gender = texttospeechpb.SsmlVoiceGender(v)
	}
	resp, err := s.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: voice.LanguageCode,
			Name:         voice.Name,
			SsmlGender:   gender,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Synthesis, err, "speech synthesis failed")
	}
	if len(resp.GetAudioContent()) == 0 {
		return nil, apperr.New(apperr.Synthesis, "speech synthesis returned no audio")
	}
	return resp.GetAudioContent(), nil
}

// AudioWriter stores a synthesized artifact at a bucket relative path.
type AudioWriter interface {
	Save(ctx context.Context, path string, contentType string, data []byte) error
}

// Unit is one synthesis job: a scene summary or a dialogue line.
type Unit struct {
	Name      string // e.g. scene_1_summary, scene_1_dialogue_0
	Text      string
	Gender    string
	Narration bool
}

// UnitSynthesizer runs detect, select, synthesize and save for one unit.
type UnitSynthesizer struct {
	detector    Detector
	voices      *VoiceSelector
	synthesizer Synthesizer
	writer      AudioWriter
}

func NewUnitSynthesizer(detector Detector, voices *VoiceSelector, synthesizer Synthesizer, writer AudioWriter) *UnitSynthesizer {
	return &UnitSynthesizer{detector: detector, voices: voices, synthesizer: synthesizer, writer: writer}
}

// Synthesize produces the audio of unit for the version and returns the
// stored object path. Errors carry the LanguageDetection, Synthesis or
// Storage kind of the step that failed.
func (u *UnitSynthesizer) Synthesize(ctx context.Context, key model.VersionKey, unit Unit) (string, error) {
	language, err := u.detector.Detect(ctx, unit.Text)
	if err != nil {
		if apperr.KindOf(err) == apperr.Internal {
			err = apperr.Wrap(apperr.LanguageDetection, err, "language detection failed")
		}
		return "", err
	}

	voice := u.voices.Select(language, unit.Gender, unit.Narration)
	slog.DebugContext(ctx, "synthesizing unit", "unit", unit.Name, "language", language, "voice", voice.Name, "gender", voice.Gender)

	audio, err := u.synthesizer.Synthesize(ctx, unit.Text, voice)
	if err != nil {
		if apperr.KindOf(err) == apperr.Internal {
			err = apperr.Wrap(apperr.Synthesis, err, "speech synthesis failed")
		}
		return "", err
	}

	path := model.AudioUnitPath(key, unit.Name)
	if err := u.writer.Save(ctx, path, AudioContentType, audio); err != nil {
		if apperr.KindOf(err) == apperr.Internal {
			err = apperr.Wrap(apperr.Storage, err, "failed to store audio %s", path)
		}
		return "", err
	}
	return path, nil
}
