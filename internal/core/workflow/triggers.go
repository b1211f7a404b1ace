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

package workflow

import (
	goctx "context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/pymenow/f3backEnd/internal/core/model"
)

// sceneEvent is the message that starts the media synthesis workflow.
func sceneEvent(key model.VersionKey) string {
	data, _ := json.Marshal(key)
	return string(data)
}

// EventPublisher publishes one event. cloud.PubSubPublisher satisfies it.
type EventPublisher interface {
	Publish(ctx goctx.Context, event any) (string, error)
}

// PubSubTrigger hands scene analyses to the SceneAnalysisTopic. The listener
// on its subscription runs the media synthesis workflow.
type PubSubTrigger struct {
	publisher EventPublisher
}

func NewPubSubTrigger(publisher EventPublisher) *PubSubTrigger {
	return &PubSubTrigger{publisher: publisher}
}

func (t *PubSubTrigger) Trigger(ctx goctx.Context, key model.VersionKey) error {
	id, err := t.publisher.Publish(ctx, key)
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "scene event published", "messageId", id, "scriptId", key.ScriptID)
	return nil
}

// InlineTrigger runs the media synthesis workflow in a goroutine of this
// process. The run is detached from the request's cancellation.
type InlineTrigger struct {
	workflow *MediaSynthesisWorkflow
	wg       sync.WaitGroup
}

func NewInlineTrigger(workflow *MediaSynthesisWorkflow) *InlineTrigger {
	return &InlineTrigger{workflow: workflow}
}

func (t *InlineTrigger) Trigger(ctx goctx.Context, key model.VersionKey) error {
	runCtx := goctx.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.workflow.Run(runCtx, key); err != nil {
			slog.ErrorContext(runCtx, "inline media synthesis failed", "scriptId", key.ScriptID, "error", err)
		}
	}()
	return nil
}

// Wait blocks until every started run has finished.
func (t *InlineTrigger) Wait() {
	t.wg.Wait()
}
