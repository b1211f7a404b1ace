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

// Package cor (Chain of Responsibility) provides the fundamental building blocks
// for creating workflows as a sequence of commands. This file defines the
// `BaseChain`, the default implementation of the `Chain` interface.
//
// Logic Flow:
//  1. `Execute` opens a span for the whole chain.
//  2. For each command a child span is opened. If an earlier command recorded
//     an error and the chain does not continue on failure, the loop stops.
//  3. A command whose `IsExecutable` precondition is false is skipped. Skipping
//     is not an error: workflows use it to short-circuit on a no-op (for example
//     a media run with no scene analysis to read).
//  4. After each command the value in `CtxOut` is moved to `CtxIn` so the output
//     of one command becomes the input of the next.
//  5. The chain span ends with Ok or Error depending on the context's errors.
package cor

import (
	"fmt"

	"go.opentelemetry.io/otel/codes"
)

// BaseChain runs a slice of commands sequentially.
type BaseChain struct {
	BaseCommand
	continueOnFailure bool      // Keep executing after a command records an error.
	commands          []Command // Ordered commands of the chain.
}

// NewBaseChain is the constructor for BaseChain.
//
// Inputs:
//   - name: A string name for this chain instance, used for logging and telemetry.
//
// Outputs:
//   - *BaseChain: A pointer to the newly instantiated chain.
func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseCommand: *NewBaseCommand(name)}
}

// ContinueOnFailure sets the error handling behavior of the chain.
func (c *BaseChain) ContinueOnFailure(continueOnFailure bool) Chain {
	c.continueOnFailure = continueOnFailure
	return c
}

// AddCommand appends a command to the chain.
func (c *BaseChain) AddCommand(command Command) Chain {
	c.commands = append(c.commands, command)
	return c
}

// Commands returns the names of the chained commands in execution order.
func (c *BaseChain) Commands() []string {
	out := make([]string, 0, len(c.commands))
	for _, cmd := range c.commands {
		out = append(out, cmd.GetName())
	}
	return out
}

// IsExecutable only needs a Go context.
func (c *BaseChain) IsExecutable(context Context) bool {
	return context.GetContext() != nil
}

// Execute runs the chained commands.
//
// Inputs:
//   - chCtx: The shared `cor.Context` for the entire workflow execution.
func (c *BaseChain) Execute(chCtx Context) {
	parentCtx := chCtx.GetContext()

	outerCtx, chainSpan := c.Tracer.Start(parentCtx, fmt.Sprintf("%s_execute", c.GetName()))
	defer chainSpan.End()

	for _, command := range c.commands {
		if chCtx.HasErrors() && !c.continueOnFailure {
			break
		}

		commandContext, commandSpan := c.Tracer.Start(outerCtx, command.GetName())

		if command.IsExecutable(chCtx) {
			chCtx.SetContext(commandContext)
			command.Execute(chCtx)
			// Reset so the next command's span is a sibling, not a grandchild.
			chCtx.SetContext(outerCtx)
		} else {
			commandSpan.AddEvent("skipped: preconditions not met")
		}

		if chCtx.HasErrors() {
			commandSpan.SetStatus(codes.Error, "error during or after command execution")
		} else {
			commandSpan.SetStatus(codes.Ok, "command completed successfully")
		}
		commandSpan.End()

		outputValue := chCtx.Get(CtxOut)
		chCtx.Remove(CtxIn)
		if outputValue != nil {
			chCtx.Add(CtxIn, outputValue)
		}
		chCtx.Remove(CtxOut)
	}

	// Restore the caller's context so it does not observe an ended span.
	chCtx.SetContext(parentCtx)

	if !chCtx.HasErrors() {
		chainSpan.SetStatus(codes.Ok, "chain completed successfully")
	} else {
		chainSpan.SetStatus(codes.Error, "chain failed to execute")
	}
}
