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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// first three steps of the analysis chain, which reject a request before any
// model work is done.
//
// Logic Flow:
//  1. ValidateRequest requires the user and script identity and a model
//     backed analysis type.
//  2. AuthorizeRequest requires the authenticated caller to be the owner
//     named in the request.
//  3. CheckDuplicate resolves the version (the current one when none is
//     given) and fails if a record of the requested type already exists.
package commands

import (
	"log/slog"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/cor"
	"github.com/pymenow/f3backEnd/internal/core/store"
)

func analysisRequest(context cor.Context) *AnalysisRequest {
	req, _ := context.Get(ParamAnalysisRequest).(*AnalysisRequest)
	return req
}

// ValidateRequest checks the shape of an AnalysisRequest.
type ValidateRequest struct {
	cor.BaseCommand
}

func NewValidateRequest(name string) *ValidateRequest {
	return &ValidateRequest{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *ValidateRequest) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil
}

func (c *ValidateRequest) Execute(context cor.Context) {
	req := analysisRequest(context)
	switch {
	case req == nil:
		c.Fail(context, apperr.New(apperr.Validation, "Missing analysis request."))
	case req.UserID == "" || req.ScriptID == "":
		c.Fail(context, apperr.New(apperr.Validation, "Missing required fields: userId and scriptId."))
	case !req.AnalysisType.IsModelBacked():
		c.Fail(context, apperr.New(apperr.Validation, "Unsupported analysis type %q.", req.AnalysisType))
	default:
		c.Succeed(context)
	}
}

// AuthorizeRequest requires the caller to own the script.
type AuthorizeRequest struct {
	cor.BaseCommand
}

func NewAuthorizeRequest(name string) *AuthorizeRequest {
	return &AuthorizeRequest{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *AuthorizeRequest) IsExecutable(context cor.Context) bool {
	return context != nil && analysisRequest(context) != nil
}

func (c *AuthorizeRequest) Execute(context cor.Context) {
	req := analysisRequest(context)
	if req.CallerID == "" || req.CallerID != req.UserID {
		slog.WarnContext(context.GetContext(), "caller does not own script", "caller", req.CallerID, "owner", req.UserID, "scriptId", req.ScriptID)
		c.Fail(context, apperr.New(apperr.Authorization, "Unauthorized access to this script."))
		return
	}
	c.Succeed(context)
}

// CheckDuplicate resolves the target version and rejects the request when
// the analysis already exists.
type CheckDuplicate struct {
	cor.BaseCommand
	store store.ResultStore
}

func NewCheckDuplicate(name string, s store.ResultStore) *CheckDuplicate {
	return &CheckDuplicate{BaseCommand: *cor.NewBaseCommand(name), store: s}
}

func (c *CheckDuplicate) IsExecutable(context cor.Context) bool {
	return context != nil && analysisRequest(context) != nil
}

func (c *CheckDuplicate) Execute(context cor.Context) {
	ctx := context.GetContext()
	req := analysisRequest(context)
	key := req.Key()

	if key.VersionID == "" {
		script, err := c.store.GetScript(ctx, key.UserID, key.ScriptID)
		if err != nil {
			c.Fail(context, err)
			return
		}
		if script.CurrentVersion == "" {
			c.Fail(context, apperr.New(apperr.NotFound, "Script has no current version."))
			return
		}
		key.VersionID = script.CurrentVersion
	}

	existing, err := c.store.FindAnalyses(ctx, key, req.AnalysisType)
	if err != nil {
		c.Fail(context, err)
		return
	}
	if len(existing) > 0 {
		c.Fail(context, store.DuplicateError(req.AnalysisType))
		return
	}

	c.Succeed(context)
	context.Add(ParamVersionKey, key)
}
