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

// Package cloud contains data structures and utilities for interacting with Google Cloud services.
// This file holds the Cloud Storage object model shared by the artifact
// service and the image workflow.
package cloud

import (
	"fmt"
	"strings"
)

const gsScheme = "gs://"

// GCSObject is a simplified, internal representation of a Google Cloud Storage
// object that is passed between commands.
type GCSObject struct {
	Bucket   string // The name of the GCS bucket.
	Name     string // The object path inside the bucket.
	MIMEType string // The MIME type of the object (e.g., "image/png").
}

// URI returns the gs:// form of the object.
func (o GCSObject) URI() string {
	return GSURI(o.Bucket, o.Name)
}

// GSURI joins a bucket and an object path.
func GSURI(bucket, name string) string {
	return fmt.Sprintf("%s%s/%s", gsScheme, bucket, strings.TrimPrefix(name, "/"))
}

// ObjectPath accepts either a bucket relative path or a gs:// URI of bucket
// and returns the bucket relative path.
func ObjectPath(bucket, pathOrURI string) (string, error) {
	if !strings.HasPrefix(pathOrURI, gsScheme) {
		return strings.TrimPrefix(pathOrURI, "/"), nil
	}
	rest := strings.TrimPrefix(pathOrURI, gsScheme)
	b, name, ok := strings.Cut(rest, "/")
	if !ok || name == "" {
		return "", fmt.Errorf("malformed object uri %q", pathOrURI)
	}
	if b != bucket {
		return "", fmt.Errorf("object %q is not in bucket %s", pathOrURI, bucket)
	}
	return name, nil
}
