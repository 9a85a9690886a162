package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stream names.
const (
	StreamDatasets   = "courtside.datasets"
	StreamSpotChecks = "courtside.spotchecks"
	StreamSweeps     = "courtside.sweeps"
)

// DatasetSaved announces a dataset written to disk.
type DatasetSaved struct {
	Kind     string `json:"kind"`
	EntityID int    `json:"entity_id,omitempty"`
	GameID   string `json:"game_id,omitempty"`
	Name     string `json:"name"`
	Rows     int    `json:"rows"`
	Path     string `json:"path"`
}

// RedisStreamPublisher publishes events to Redis streams
type RedisStreamPublisher struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, now: time.Now}
}

// PublishDatasetSaved publishes a saved-dataset event.
func (rsp *RedisStreamPublisher) PublishDatasetSaved(ctx context.Context, event DatasetSaved) error {
	return rsp.publish(ctx, StreamDatasets, event)
}

// PublishSpotCheck publishes a box score consistency report.
func (rsp *RedisStreamPublisher) PublishSpotCheck(ctx context.Context, report interface{}) error {
	return rsp.publish(ctx, StreamSpotChecks, report)
}

// PublishSweepEvent publishes a sweep progress event.
func (rsp *RedisStreamPublisher) PublishSweepEvent(ctx context.Context, event interface{}) error {
	return rsp.publish(ctx, StreamSweeps, event)
}

func (rsp *RedisStreamPublisher) publish(ctx context.Context, stream string, payload interface{}) error {
	args, err := rsp.xaddArgs(stream, payload)
	if err != nil {
		return err
	}
	return rsp.client.XAdd(ctx, args).Err()
}

func (rsp *RedisStreamPublisher) xaddArgs(stream string, payload interface{}) (*redis.XAddArgs, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &redis.XAddArgs{
		Stream: stream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": rsp.now().Unix(),
		},
	}, nil
}
