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

package apperr_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.Validation:           http.StatusBadRequest,
		apperr.DuplicateAnalysis:    http.StatusBadRequest,
		apperr.MissingDependency:    http.StatusBadRequest,
		apperr.Authorization:        http.StatusForbidden,
		apperr.NotFound:             http.StatusNotFound,
		apperr.MalformedModelOutput: http.StatusInternalServerError,
		apperr.Storage:              http.StatusInternalServerError,
		apperr.Timeout:              http.StatusGatewayTimeout,
		apperr.Internal:             http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, apperr.HTTPStatus(apperr.New(kind, "x")), kind.String())
	}
}

func TestKindOfWrapped(t *testing.T) {
	base := apperr.New(apperr.MissingDependency, "shotList requires sceneAnalysis to be completed first.")
	wrapped := fmt.Errorf("resolve chain: %w", base)

	assert.Equal(t, apperr.MissingDependency, apperr.KindOf(wrapped))
	assert.True(t, apperr.Is(wrapped, apperr.MissingDependency))
	assert.Equal(t, "shotList requires sceneAnalysis to be completed first.", apperr.PublicMessage(wrapped))
}

func TestUnclassifiedErrors(t *testing.T) {
	assert.Equal(t, apperr.Internal, apperr.KindOf(errors.New("boom")))
	assert.Equal(t, "Internal server error.", apperr.PublicMessage(errors.New("boom")))

	deadline := fmt.Errorf("model call: %w", context.DeadlineExceeded)
	assert.Equal(t, apperr.Timeout, apperr.KindOf(deadline))
	assert.Equal(t, http.StatusGatewayTimeout, apperr.HTTPStatus(deadline))
}

func TestServerErrorsHideDetail(t *testing.T) {
	err := apperr.Wrap(apperr.Storage, errors.New("rpc error: unavailable"), "failed to write analysis")
	assert.Equal(t, "Internal server error.", apperr.PublicMessage(err))
	assert.Contains(t, err.Error(), "rpc error")
}
