package server

import (
	"context"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"tetriq/logger"
)

// PlayerScore is one player's outcome in a finished round.
type PlayerScore struct {
	PlayerID uint64 `json:"player_id"`
	Actions  uint64 `json:"actions"`
	Lost     bool   `json:"lost"`
}

// RoundResult is what the loop hands to the recorder when a round ends.
type RoundResult struct {
	Channel uint64        `json:"channel"`
	Players []PlayerScore `json:"players"`
	EndedAt time.Time     `json:"ended_at"`
}

// Recorder receives finished rounds. Record must not block the loop.
type Recorder interface {
	Record(res RoundResult)
}

// RedisRecorder keeps a leaderboard of applied actions per player and a
// round counter in Redis. A nil *RedisRecorder is a valid no-op recorder.
type RedisRecorder struct {
	client *redis.Client
	queue  chan RoundResult
	prefix string
}

// NewRedisRecorder connects to Redis. It returns nil when addr is empty or
// the server does not answer a ping, so the game keeps running without it.
func NewRedisRecorder(ctx context.Context, addr, password string, db int) *RedisRecorder {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Log.Warnf("redis %s unavailable, round recording disabled: %v", addr, err)
		_ = client.Close()
		return nil
	}
	logger.Log.Infof("recording rounds to redis %s", addr)
	return &RedisRecorder{
		client: client,
		queue:  make(chan RoundResult, 128),
		prefix: "tetriq:",
	}
}

func (r *RedisRecorder) leaderboardKey() string { return r.prefix + "leaderboard" }
func (r *RedisRecorder) roundsKey() string      { return r.prefix + "rounds" }

// Record queues res; it is dropped when the writer is behind.
func (r *RedisRecorder) Record(res RoundResult) {
	if r == nil {
		return
	}
	select {
	case r.queue <- res:
	default:
		logger.Log.Warnf("recorder queue full, dropping round of channel %d", res.Channel)
	}
}

// Run writes queued rounds until ctx is done, then closes the client.
func (r *RedisRecorder) Run(ctx context.Context) error {
	if r == nil {
		return nil
	}
	for {
		select {
		case res := <-r.queue:
			if err := r.write(ctx, res); err != nil {
				logger.Log.Warnf("record round of channel %d: %v", res.Channel, err)
			}
		case <-ctx.Done():
			return r.client.Close()
		}
	}
}

func (r *RedisRecorder) write(ctx context.Context, res RoundResult) error {
	pipe := r.client.TxPipeline()
	for _, p := range res.Players {
		pipe.ZIncrBy(ctx, r.leaderboardKey(), float64(p.Actions), strconv.FormatUint(p.PlayerID, 10))
	}
	pipe.Incr(ctx, r.roundsKey())
	_, err := pipe.Exec(ctx)
	return err
}
