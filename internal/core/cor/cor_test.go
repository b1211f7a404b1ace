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

package cor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pymenow/f3backEnd/internal/core/cor"
)

// appendCommand reads a string from CtxIn and writes it back with a suffix.
type appendCommand struct {
	cor.BaseCommand
	suffix string
	runs   *int
}

func newAppend(name, suffix string, runs *int) *appendCommand {
	return &appendCommand{BaseCommand: *cor.NewBaseCommand(name), suffix: suffix, runs: runs}
}

func (a *appendCommand) Execute(ctx cor.Context) {
	*a.runs++
	in, _ := ctx.Get(a.GetInputParam()).(string)
	ctx.Add(a.GetOutputParam(), in+a.suffix)
	a.Succeed(ctx)
}

type failCommand struct {
	cor.BaseCommand
	err error
}

func (f *failCommand) Execute(ctx cor.Context) {
	f.Fail(ctx, f.err)
}

func TestChainPipesOutputToNextInput(t *testing.T) {
	runs := 0
	chain := cor.NewBaseChain("pipe").
		AddCommand(newAppend("a", "-a", &runs)).
		AddCommand(newAppend("b", "-b", &runs))

	ctx := cor.NewBaseContextWith(context.Background())
	ctx.Add(cor.CtxIn, "start")
	chain.Execute(ctx)

	require.NoError(t, ctx.Err())
	assert.Equal(t, 2, runs)
	assert.Equal(t, "start-a-b", ctx.Get(cor.CtxIn))
	assert.Nil(t, ctx.Get(cor.CtxOut))
}

func TestChainSkipsCommandWithoutInput(t *testing.T) {
	runs := 0
	chain := cor.NewBaseChain("skip").AddCommand(newAppend("a", "-a", &runs))

	ctx := cor.NewBaseContextWith(context.Background())
	chain.Execute(ctx)

	assert.Zero(t, runs)
	assert.False(t, ctx.HasErrors())
}

func TestChainStopsOnFailure(t *testing.T) {
	runs := 0
	boom := errors.New("boom")
	chain := cor.NewBaseChain("stop").
		AddCommand(&failCommand{BaseCommand: *cor.NewBaseCommand("fail"), err: boom}).
		AddCommand(newAppend("a", "-a", &runs))

	ctx := cor.NewBaseContextWith(context.Background())
	ctx.Add(cor.CtxIn, "start")
	chain.Execute(ctx)

	assert.Zero(t, runs)
	assert.ErrorIs(t, ctx.Err(), boom)
	assert.Contains(t, ctx.GetErrors(), "fail")
}

func TestChainContinuesOnFailureWhenAsked(t *testing.T) {
	runs := 0
	chain := cor.NewBaseChain("continue").
		AddCommand(newAppend("a", "-a", &runs)).
		AddCommand(&failCommand{BaseCommand: *cor.NewBaseCommand("fail"), err: errors.New("boom")}).
		AddCommand(newAppend("b", "-b", &runs))
	chain.ContinueOnFailure(true)

	ctx := cor.NewBaseContextWith(context.Background())
	ctx.Add(cor.CtxIn, "start")
	chain.Execute(ctx)

	// The failing command writes no output, so the last command has no input.
	assert.Equal(t, 1, runs)
	assert.True(t, ctx.HasErrors())
}

func TestContextErrJoinsInOrder(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	again := errors.New("again")

	ctx := cor.NewBaseContext()
	assert.NoError(t, ctx.Err())

	ctx.AddError("one", first)
	assert.Same(t, first, ctx.Err())

	ctx.AddError("two", second)
	ctx.AddError("one", again)
	ctx.AddError("three", nil)

	err := ctx.Err()
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
	assert.ErrorIs(t, err, again)
	assert.Equal(t, "first\nagain\nsecond", err.Error())
	assert.Len(t, ctx.GetErrors(), 2)
}

func TestContextCloseRunsDeferredInReverse(t *testing.T) {
	var order []int
	ctx := cor.NewBaseContext()
	ctx.Defer(func() { order = append(order, 1) })
	ctx.Defer(func() { order = append(order, 2) })

	ctx.Close()
	ctx.Close()

	assert.Equal(t, []int{2, 1}, order)
}

func TestChainCommandNames(t *testing.T) {
	runs := 0
	chain := cor.NewBaseChain("names").
		AddCommand(newAppend("a", "", &runs)).
		AddCommand(newAppend("b", "", &runs))
	assert.Equal(t, []string{"a", "b"}, chain.(*cor.BaseChain).Commands())
}
