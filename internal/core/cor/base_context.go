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

package cor

import (
	"context"
	"errors"
	"sync"
)

// BaseContext is the default Context. It is safe for concurrent use so that
// worker goroutines inside a command may record errors directly.
type BaseContext struct {
	mu       sync.RWMutex
	data     map[string]interface{} // Values shared between commands.
	errors   map[string]error       // Errors keyed by the command that raised them.
	order    []string               // Insertion order of the error keys.
	cleanups []func()               // Functions run by Close, last registered first.
	context  context.Context        // Go context for cancellation and spans.
}

// NewBaseContext returns an empty context. Callers set the Go context with
// SetContext before executing a chain.
func NewBaseContext() Context {
	return &BaseContext{
		data:   make(map[string]interface{}),
		errors: make(map[string]error),
	}
}

// NewBaseContextWith returns an empty context bound to ctx.
func NewBaseContextWith(ctx context.Context) Context {
	c := NewBaseContext()
	c.SetContext(ctx)
	return c
}

func (c *BaseContext) SetContext(context context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.context = context
}

func (c *BaseContext) GetContext() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.context
}

func (c *BaseContext) Add(key string, value interface{}) Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return c
}

// AddError records err under key. A second error from the same command is
// joined onto the first rather than replacing it.
func (c *BaseContext) AddError(key string, err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.errors[key]; ok {
		c.errors[key] = errors.Join(prev, err)
		return
	}
	c.errors[key] = err
	c.order = append(c.order, key)
}

func (c *BaseContext) GetErrors() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]error, len(c.errors))
	for k, v := range c.errors {
		out[k] = v
	}
	return out
}

func (c *BaseContext) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.order) == 0 {
		return nil
	}
	if len(c.order) == 1 {
		return c.errors[c.order[0]]
	}
	errs := make([]error, 0, len(c.order))
	for _, k := range c.order {
		errs = append(errs, c.errors[k])
	}
	return errors.Join(errs...)
}

func (c *BaseContext) Get(key string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data[key]
}

func (c *BaseContext) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

func (c *BaseContext) HasErrors() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.errors) > 0
}

func (c *BaseContext) Defer(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanups = append(c.cleanups, fn)
}

// Close runs cleanups registered with Defer. It is safe to call twice.
func (c *BaseContext) Close() {
	c.mu.Lock()
	fns := c.cleanups
	c.cleanups = nil
	c.mu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
