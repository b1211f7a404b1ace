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

package cloud

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// PubSubPublisher sends JSON encoded events to one topic.
type PubSubPublisher struct {
	topic *pubsub.Topic
}

// NewPubSubPublisher returns a publisher for topicID.
func NewPubSubPublisher(client *pubsub.Client, topicID string) *PubSubPublisher {
	return &PubSubPublisher{topic: client.Topic(topicID)}
}

// Publish encodes event as JSON and waits for the server to accept it.
func (p *PubSubPublisher) Publish(ctx context.Context, event any) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}
	id, err := p.topic.Publish(ctx, &pubsub.Message{Data: data}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to publish to %s: %w", p.topic.ID(), err)
	}
	return id, nil
}

// Stop flushes pending messages.
func (p *PubSubPublisher) Stop() {
	p.topic.Stop()
}
