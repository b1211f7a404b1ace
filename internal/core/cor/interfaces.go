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

// Package cor (Chain of Responsibility) is the execution framework behind every
// workflow in the backend: the analysis orchestrator, the media synthesis
// pipeline and the image generation workflow are all chains of commands that
// share one Context per run.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the piping keys a BaseChain flips between commands.
const (
	// CtxIn holds the primary input of the next command.
	CtxIn = "__IN__"
	// CtxOut is where a command places its primary output.
	CtxOut = "__OUT__"
)

// Context is the property bag shared by the commands of a single run. It
// carries data, the ordered list of errors and the Go context used for
// cancellation and tracing.
type Context interface {
	// SetContext replaces the Go context, the chain uses it to nest spans.
	SetContext(context context.Context)

	// GetContext returns the current Go context.
	GetContext() context.Context

	// Add stores a value and returns the Context for chaining.
	Add(key string, value interface{}) Context

	// AddError records an error raised by the named command.
	AddError(key string, err error)

	// GetErrors returns all errors keyed by command name.
	GetErrors() map[string]error

	// Err returns the recorded errors joined in the order they were added,
	// or nil when the run is clean.
	Err() error

	// Get returns a stored value or nil.
	Get(key string) interface{}

	// Remove deletes a stored value.
	Remove(key string)

	// HasErrors reports whether any command failed.
	HasErrors() bool

	// Defer registers a cleanup function executed by Close in reverse order.
	Defer(fn func())

	// Close runs the registered cleanup functions.
	Close()
}

// Executable is anything with an Execute step.
type Executable interface {
	Execute(context Context)
}

// Command is one atomic, traced unit of work.
type Command interface {
	Executable

	GetName() string

	// GetInputParam is the key the command reads its primary input from.
	GetInputParam() string

	// GetOutputParam is the key the command writes its primary output to.
	GetOutputParam() string

	// IsExecutable is the precondition checked by the chain before Execute.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Chain is a Command that runs other commands in order. Chains nest.
type Chain interface {
	Command

	// ContinueOnFailure controls whether the chain keeps going after a
	// command records an error. The default is to stop.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command to the chain.
	AddCommand(command Command) Chain
}
