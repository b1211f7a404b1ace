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
	"strings"

	"github.com/pymenow/f3backEnd/internal/cloud"
)

// Genders understood by Text-to-Speech.
const (
	GenderMale    = "MALE"
	GenderFemale  = "FEMALE"
	GenderNeutral = "NEUTRAL"
)

// VoiceConfig is the voice one synthesis call uses.
type VoiceConfig struct {
	LanguageCode string
	Name         string // Empty lets the service pick a voice for the language and gender.
	Gender       string
}

// VoiceSelector maps a detected language and a gender hint onto a voice.
type VoiceSelector struct {
	voices          map[string]cloud.Voice
	defaultLanguage string
	defaultGender   string
}

// NewVoiceSelector is the constructor for VoiceSelector. Voice sets are looked
// up by the full detected code first and then by its base language.
func NewVoiceSelector(voices map[string]cloud.Voice, defaultLanguage, defaultGender string) *VoiceSelector {
	normalized := make(map[string]cloud.Voice, len(voices))
	for k, v := range voices {
		normalized[strings.ToLower(k)] = v
	}
	if defaultGender == "" {
		defaultGender = GenderMale
	}
	return &VoiceSelector{voices: normalized, defaultLanguage: defaultLanguage, defaultGender: NormalizeGender(defaultGender)}
}

// NormalizeGender upper-cases a hint and maps anything unknown to "".
func NormalizeGender(g string) string {
	switch g = strings.ToUpper(strings.TrimSpace(g)); g {
	case GenderMale, GenderFemale, GenderNeutral:
		return g
	}
	return ""
}

// Select returns the voice for a unit.
//
// Inputs:
//   - language: The detected language code, e.g. "en" or "en-US".
//   - gender: The gender hint of a dialogue. Empty or unknown uses the default.
//   - narration: True for scene summaries.
//
// Outputs:
//   - VoiceConfig: Scene summaries in the default locale get the narrator
//     voice. Other units get the voice configured for the gender, when any.
func (s *VoiceSelector) Select(language, gender string, narration bool) VoiceConfig {
	g := NormalizeGender(gender)
	if g == "" {
		g = s.defaultGender
	}

	set, ok := s.lookup(language)
	if !ok {
		return VoiceConfig{LanguageCode: language, Gender: g}
	}
	out := VoiceConfig{LanguageCode: set.LanguageCode, Gender: g}
	if out.LanguageCode == "" {
		out.LanguageCode = language
	}

	if narration && strings.EqualFold(out.LanguageCode, s.defaultLanguage) && set.Narrator != "" {
		out.Name = set.Narrator
		return out
	}
	switch g {
	case GenderFemale:
		out.Name = set.Female
	case GenderMale:
		out.Name = set.Male
	}
	return out
}

func (s *VoiceSelector) lookup(language string) (cloud.Voice, bool) {
	code := strings.ToLower(language)
	if v, ok := s.voices[code]; ok {
		return v, true
	}
	base, _, _ := strings.Cut(code, "-")
	v, ok := s.voices[base]
	return v, ok
}
