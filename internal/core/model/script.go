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

import "time"

// Script is the top level document a user creates. Its content lives in versions.
type Script struct {
	ID             string    `firestore:"-" json:"id"`
	Title          string    `firestore:"title" json:"title"`
	Description    string    `firestore:"description" json:"description"`
	OwnerID        string    `firestore:"ownerId" json:"ownerId"`
	CurrentVersion string    `firestore:"currentVersion" json:"currentVersion"` // ID of the latest version.
	CreatedAt      time.Time `firestore:"createdAt" json:"createdAt"`
	LastModifiedAt time.Time `firestore:"lastModifiedAt" json:"lastModifiedAt"`
}

// Version is one revision of a script. Content is required for any analysis.
type Version struct {
	ID            string    `firestore:"-" json:"id"`
	Content       string    `firestore:"content,omitempty" json:"content,omitempty"`
	FileURL       string    `firestore:"fileURL,omitempty" json:"fileURL,omitempty"`
	VersionNumber int       `firestore:"versionNumber" json:"versionNumber"`
	CreatedAt     time.Time `firestore:"createdAt" json:"createdAt"`
	ModifiedBy    string    `firestore:"modifiedBy" json:"modifiedBy"`
}

// ScriptView is a script with one resolved version and, optionally, its analyses.
type ScriptView struct {
	Script   *Script           `json:"script"`
	Version  *Version          `json:"version"`
	Analyses []*AnalysisRecord `json:"analyses,omitempty"`
}
