package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Publisher pushes progress payloads to Redis: the latest payload is stored
// under a per-job key for polling clients, and published on a per-job
// channel for live subscribers. Publishing is best-effort; Redis failures
// are logged and never fail the job. A nil client disables publishing.
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// PublishImport pushes a progress snapshot for an import job.
func (p *Publisher) PublishImport(ctx context.Context, taskID string, payload Payload) {
	p.publish(ctx, fmt.Sprintf("upload:%s", taskID), fmt.Sprintf("progress:upload:%s", taskID), payload)
}

// PublishDeletion pushes a progress snapshot for a deletion job.
func (p *Publisher) PublishDeletion(ctx context.Context, jobID int64, payload Payload) {
	p.publish(ctx, fmt.Sprintf("deletion:%d", jobID), fmt.Sprintf("progress:deletion:%d", jobID), payload)
}

func (p *Publisher) publish(ctx context.Context, key, channel string, payload Payload) {
	if p.rdb == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("Failed to marshal progress payload", zap.String("key", key), zap.Error(err))
		return
	}

	if err := p.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		zap.L().Error("Failed to write progress to Redis", zap.String("key", key), zap.Error(err))
	}
	if err := p.rdb.Publish(ctx, channel, data).Err(); err != nil {
		zap.L().Error("Failed to publish progress to Redis", zap.String("channel", channel), zap.Error(err))
	}
}
