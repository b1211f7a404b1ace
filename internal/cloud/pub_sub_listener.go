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

// Package cloud provides components for interacting with Google Cloud services.
// This file defines a generic Pub/Sub message listener that hands every
// message to a cor.Command.
//
// Logic Flow:
//  1. A PubSubListener is created with a client and a subscription ID.
//  2. A Command (the media synthesis workflow) is attached to it.
//  3. `Listen` starts a goroutine that receives messages until the context ends.
//  4. Each message runs the Command in a fresh cor.Context whose input is the
//     message body.
//  5. The message is Ack'd when the Command recorded no errors, or when the
//     failure would repeat on every delivery (see Redeliverable). Otherwise it
//     is left to redeliver according to the subscription's retry policy.
package cloud

import (
	"context"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/cor"
)

// PubSubListener connects a subscription to a processing command.
type PubSubListener struct {
	client       *pubsub.Client       // The client for interacting with the Pub/Sub service.
	subscription *pubsub.Subscription // The subscription this listener pulls messages from.
	command      cor.Command          // The command executed for each message.
}

// NewPubSubListener is the constructor for creating a PubSubListener.
//
// Inputs:
//   - pubsubClient: An authenticated *pubsub.Client.
//   - subscriptionID: The string ID of the subscription.
//   - command: The command run per message. It may be attached later with SetCommand.
//
// Outputs:
//   - *PubSubListener: A pointer to the newly created listener.
//   - error: Always nil, kept for symmetry with the other constructors.
func NewPubSubListener(
	pubsubClient *pubsub.Client,
	subscriptionID string,
	command cor.Command,
) (cmd *PubSubListener, err error) {
	sub := pubsubClient.Subscription(subscriptionID)
	cmd = &PubSubListener{
		client:       pubsubClient,
		subscription: sub,
		command:      command,
	}
	return cmd, nil
}

// SetCommand attaches a command if none is set yet.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// Listen starts the asynchronous receive loop. Cancelling ctx stops it.
func (m *PubSubListener) Listen(ctx context.Context) {
	slog.InfoContext(ctx, "listening", "subscription", m.subscription.String())

	go func() {
		tracer := otel.Tracer("message-listener")

		err := m.subscription.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
			spanCtx, span := tracer.Start(msgCtx, "receive-message")
			defer span.End()
			span.SetAttributes(attribute.String("msg", string(msg.Data)), attribute.String("id", msg.ID))
			slog.InfoContext(spanCtx, "received message", "id", msg.ID)

			chainCtx := cor.NewBaseContextWith(spanCtx)
			defer chainCtx.Close()
			chainCtx.Add(cor.CtxIn, string(msg.Data))

			m.command.Execute(chainCtx)

			if !chainCtx.HasErrors() {
				span.SetStatus(codes.Ok, "success")
				msg.Ack()
				return
			}
			span.SetStatus(codes.Error, "failed")
			err := chainCtx.Err()
			if !Redeliverable(err) {
				slog.WarnContext(spanCtx, "dropping message that cannot succeed on retry", "id", msg.ID, "error", err)
				msg.Ack()
				return
			}
			slog.ErrorContext(spanCtx, "error executing chain", "id", msg.ID, "error", err)
		})

		if err != nil {
			slog.ErrorContext(ctx, "error receiving data", "subscription", m.subscription.String(), "error", err)
		}
	}()
}

// Redeliverable reports whether a failed message may succeed on a later
// delivery. Malformed events and unparseable payloads fail the same way every
// time, so they are Ack'd instead of looping until the retention expires.
func Redeliverable(err error) bool {
	if err == nil {
		return false
	}
	switch apperr.KindOf(err) {
	case apperr.Validation, apperr.MalformedModelOutput:
		return false
	}
	return true
}
