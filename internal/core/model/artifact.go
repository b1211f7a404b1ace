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

package model

import (
	"fmt"
	"strings"
)

// ArtifactType is the folder an object is stored under for a version.
type ArtifactType string

const (
	ArtifactImages  ArtifactType = "images"
	ArtifactPDFs    ArtifactType = "pdfs"
	ArtifactOutputs ArtifactType = "outputs"
	ArtifactLogs    ArtifactType = "logs"
	ArtifactAudio   ArtifactType = "audio"
)

// ParseArtifactType validates an artifact type supplied by a caller.
func ParseArtifactType(s string) (ArtifactType, bool) {
	switch t := ArtifactType(s); t {
	case ArtifactImages, ArtifactPDFs, ArtifactOutputs, ArtifactLogs, ArtifactAudio:
		return t, true
	}
	return "", false
}

// ArtifactPath is the bucket relative object path of an artifact:
// {uid}/{scriptId}/{versionId}/{artifactType}/{fileName}.
func ArtifactPath(key VersionKey, artifactType ArtifactType, fileName string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", key.UserID, key.ScriptID, key.VersionID, artifactType, fileName)
}

// AudioUnitPath is the object path of one synthesized audio unit.
func AudioUnitPath(key VersionKey, unitName string) string {
	return ArtifactPath(key, ArtifactAudio, unitName+".mp3")
}

// OwnsPath reports whether path sits under the user's prefix.
func OwnsPath(userID, path string) bool {
	return userID != "" && strings.HasPrefix(strings.TrimPrefix(path, "/"), userID+"/")
}
