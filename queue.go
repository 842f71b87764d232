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
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/idleforge/forge/config"
	redis_db "github.com/idleforge/forge/internal/redis-db"
)

// Queue wraps the asynq client used for deferred work, currently only
// webhook delivery.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// queueWebhook enqueues a webhook delivery task on the shared client.
// Tasks carrying a reference are keyed by event and reference, so a
// retried transition does not queue the same notification twice while
// the first is still waiting.
func (q *Queue) queueWebhook(conf *config.Configuration, webhook NewWebhook) error {
	payload, err := json.Marshal(webhook)
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{
		asynq.Queue(conf.Queue.WebhookQueue),
		asynq.MaxRetry(conf.Queue.MaxRetryAttempts),
	}
	if webhook.Reference != "" {
		taskOptions = append(taskOptions, asynq.TaskID(webhookTaskID(webhook.Event, webhook.Reference)))
	}
	task := asynq.NewTask(conf.Queue.WebhookQueue, payload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		log.Println(err, info)
		return err
	}
	return nil
}

// GetWebhookFromQueue retrieves a queued webhook task by its event and
// reference. Returns nil if no matching task is waiting.
func (q *Queue) GetWebhookFromQueue(event, reference string) (*NewWebhook, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	task, err := q.Inspector.GetTaskInfo(conf.Queue.WebhookQueue, webhookTaskID(event, reference))
	if err != nil || task == nil {
		return nil, nil
	}
	var webhook NewWebhook
	if err := json.Unmarshal(task.Payload, &webhook); err != nil {
		return nil, err
	}
	return &webhook, nil
}

func webhookTaskID(event, reference string) string {
	return fmt.Sprintf("%s:%s", event, reference)
}

// Close shuts down the queue client and inspector connections.
func (q *Queue) Close() error {
	if err := q.Client.Close(); err != nil {
		return err
	}
	return q.Inspector.Close()
}
