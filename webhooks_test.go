/*
Copyright 2024 IdleForge Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package forge

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idleforge/forge/config"
	"github.com/idleforge/forge/model"
)

func newWebhookTestForge(t *testing.T, webhookURL string) (*Forge, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	mockConfig := &config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
	}
	mockConfig.Notification.Webhook.Url = webhookURL
	config.MockConfig(mockConfig)

	f := &Forge{queue: NewQueue(mockConfig)}
	t.Cleanup(func() { _ = f.queue.Close() })
	return f, mr
}

func TestSendWebhook(t *testing.T) {
	f, mr := newWebhookTestForge(t, "http://localhost:5001/webhook")

	err := f.SendWebhook(NewWebhook{
		Event:     "payout.pending",
		Reference: "pay_123",
		Payload:   &model.PayoutObligation{PayoutID: "pay_123"},
	})
	assert.NoError(t, err)

	// Verify that the task was enqueued
	assert.NotEmpty(t, mr.Keys())
	queued, err := f.queue.GetWebhookFromQueue("payout.pending", "pay_123")
	require.NoError(t, err)
	require.NotNil(t, queued)
	assert.Equal(t, "payout.pending", queued.Event)
	assert.Equal(t, "pay_123", queued.Reference)
}

func TestSendWebhookWithoutURLIsNoOp(t *testing.T) {
	f, mr := newWebhookTestForge(t, "")

	err := f.SendWebhook(NewWebhook{Event: "payout.pending"})
	assert.NoError(t, err)
	assert.Empty(t, mr.Keys())
}

func TestSendWebhookDeduplicatesByReference(t *testing.T) {
	f, _ := newWebhookTestForge(t, "http://localhost:5001/webhook")

	conf, err := config.Fetch()
	require.NoError(t, err)

	webhook := NewWebhook{
		Event:     "payout.completed",
		Reference: "pay_456",
		Payload:   &model.PayoutObligation{PayoutID: "pay_456"},
	}
	require.NoError(t, f.SendWebhook(webhook))
	// A second identical notification is dropped while the first waits.
	require.NoError(t, f.SendWebhook(webhook))

	pending, err := f.queue.Inspector.ListPendingTasks(conf.Queue.WebhookQueue)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestGetEventFromStatus(t *testing.T) {
	assert.Equal(t, "payout.pending", getEventFromStatus(model.StatusPending))
	assert.Equal(t, "payout.claim_requested", getEventFromStatus(model.StatusClaimRequested))
	assert.Equal(t, "payout.completed", getEventFromStatus(model.StatusCompleted))
	assert.Equal(t, "payout.failed", getEventFromStatus(model.StatusFailed))
	assert.Equal(t, "payout.unknown", getEventFromStatus("shipped"))
}
