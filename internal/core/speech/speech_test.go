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

package speech_test

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/language/apiv2/languagepb"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pymenow/f3backEnd/internal/cloud"
	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/pymenow/f3backEnd/internal/core/speech"
)

type fakeAnalyzer struct {
	code  string
	err   error
	calls int
}

func (f *fakeAnalyzer) AnalyzeSentiment(_ context.Context, req *languagepb.AnalyzeSentimentRequest, _ ...gax.CallOption) (*languagepb.AnalyzeSentimentResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &languagepb.AnalyzeSentimentResponse{LanguageCode: f.code}, nil
}

func TestDetectorCachesAnswers(t *testing.T) {
	analyzer := &fakeAnalyzer{code: "en"}
	d, err := speech.NewLanguageDetector(analyzer, 8)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		code, err := d.Detect(context.Background(), "Hello there")
		require.NoError(t, err)
		assert.Equal(t, "en", code)
	}
	assert.Equal(t, 1, analyzer.calls)
}

func TestDetectorFailsClosed(t *testing.T) {
	d, err := speech.NewLanguageDetector(&fakeAnalyzer{}, 8)
	require.NoError(t, err)

	_, err = d.Detect(context.Background(), "Hello there")
	assert.Equal(t, apperr.LanguageDetection, apperr.KindOf(err))

	_, err = d.Detect(context.Background(), "   ")
	assert.Equal(t, apperr.LanguageDetection, apperr.KindOf(err))

	failing, err := speech.NewLanguageDetector(&fakeAnalyzer{err: errors.New("unavailable")}, 8)
	require.NoError(t, err)
	_, err = failing.Detect(context.Background(), "Hello there")
	assert.Equal(t, apperr.LanguageDetection, apperr.KindOf(err))
}

func testVoices() *speech.VoiceSelector {
	return speech.NewVoiceSelector(map[string]cloud.Voice{
		"en-US": {LanguageCode: "en-US", Male: "en-US-Male", Female: "en-US-Female", Narrator: "en-US-Narrator"},
		"hi":    {LanguageCode: "hi-IN", Male: "hi-IN-Male", Female: "hi-IN-Female", Narrator: "hi-IN-Narrator"},
	}, "en-US", "")
}

func TestVoiceSelection(t *testing.T) {
	voices := testVoices()

	narrator := voices.Select("en-US", "", true)
	assert.Equal(t, "en-US-Narrator", narrator.Name)
	assert.Equal(t, speech.GenderMale, narrator.Gender)

	female := voices.Select("en-us", "female", false)
	assert.Equal(t, "en-US-Female", female.Name)
	assert.Equal(t, "en-US", female.LanguageCode)

	// Summaries outside the default locale use the gendered voice.
	hindi := voices.Select("hi", "", true)
	assert.Equal(t, "hi-IN-Male", hindi.Name)
	assert.Equal(t, "hi-IN", hindi.LanguageCode)

	unknown := voices.Select("fr", "robot", false)
	assert.Equal(t, speech.VoiceConfig{LanguageCode: "fr", Gender: speech.GenderMale}, unknown)
}

func TestVoiceSelectionFallsBackToBaseLanguage(t *testing.T) {
	voices := speech.NewVoiceSelector(map[string]cloud.Voice{
		"es": {LanguageCode: "es-ES", Female: "es-ES-Female"},
	}, "en-US", "FEMALE")
	v := voices.Select("es-MX", "", false)
	assert.Equal(t, "es-ES-Female", v.Name)
	assert.Equal(t, speech.GenderFemale, v.Gender)
}

type fakeSpeechClient struct {
	req *texttospeechpb.SynthesizeSpeechRequest
}

func (f *fakeSpeechClient) SynthesizeSpeech(_ context.Context, req *texttospeechpb.SynthesizeSpeechRequest, _ ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	f.req = req
	return &texttospeechpb.SynthesizeSpeechResponse{AudioContent: []byte("mp3")}, nil
}

func TestGoogleSynthesizerBuildsRequest(t *testing.T) {
	client := &fakeSpeechClient{}
	audio, err := speech.NewGoogleSynthesizer(client).Synthesize(context.Background(), "Hi", speech.VoiceConfig{
		LanguageCode: "en-US", Name: "en-US-Female", Gender: speech.GenderFemale,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), audio)
	assert.Equal(t, "Hi", client.req.GetInput().GetText())
	assert.Equal(t, texttospeechpb.SsmlVoiceGender_FEMALE, client.req.GetVoice().GetSsmlGender())
	assert.Equal(t, texttospeechpb.AudioEncoding_MP3, client.req.GetAudioConfig().GetAudioEncoding())
}

type staticDetector string

func (s staticDetector) Detect(context.Context, string) (string, error) { return string(s), nil }

type recordingSynth struct {
	voice speech.VoiceConfig
	err   error
}

func (r *recordingSynth) Synthesize(_ context.Context, _ string, voice speech.VoiceConfig) ([]byte, error) {
	r.voice = voice
	return []byte("audio"), r.err
}

type mapWriter map[string][]byte

func (m mapWriter) Save(_ context.Context, path, _ string, data []byte) error {
	m[path] = data
	return nil
}

func TestUnitSynthesizerStoresAudio(t *testing.T) {
	synth := &recordingSynth{}
	writer := mapWriter{}
	u := speech.NewUnitSynthesizer(staticDetector("en-US"), testVoices(), synth, writer)

	key := model.VersionKey{UserID: "u1", ScriptID: "s1", VersionID: "v1"}
	path, err := u.Synthesize(context.Background(), key, speech.Unit{Name: "scene_1_summary", Text: "Night falls.", Narration: true})
	require.NoError(t, err)
	assert.Equal(t, "u1/s1/v1/audio/scene_1_summary.mp3", path)
	assert.Equal(t, []byte("audio"), writer[path])
	assert.Equal(t, "en-US-Narrator", synth.voice.Name)
}

func TestUnitSynthesizerClassifiesFailures(t *testing.T) {
	synth := &recordingSynth{err: errors.New("quota")}
	writer := mapWriter{}
	u := speech.NewUnitSynthesizer(staticDetector("en-US"), testVoices(), synth, writer)

	_, err := u.Synthesize(context.Background(), model.VersionKey{UserID: "u1", ScriptID: "s1", VersionID: "v1"}, speech.Unit{Name: "x", Text: "t"})
	assert.Equal(t, apperr.Synthesis, apperr.KindOf(err))
	assert.Empty(t, writer)
}
