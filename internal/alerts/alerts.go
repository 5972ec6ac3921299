// Package alerts publishes error-path notifications over redis so the web
// layer can surface them. Everything is nil-safe: with no redis configured
// the publisher silently drops alerts.
package alerts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	channel    = "reefdb:alerts"
	recentKey  = "reefdb:alerts:recent"
	recentKeep = 100
)

type Alert struct {
	Kind       string    `json:"kind"`
	ScheduleID int       `json:"schedule_id,omitempty"`
	Product    string    `json:"product,omitempty"`
	Message    string    `json:"message"`
	At         time.Time `json:"at"`
}

type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(address, username, password string) *Publisher {
	if address == "" {
		log.Info().Msg("redis not configured, alerts disabled")
		return &Publisher{}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     address,
		Username: username,
		Password: password,
		DB:       0,
	})
	return &Publisher{rdb: rdb}
}

// DoseError reports a failed or aborted dose.
func (p *Publisher) DoseError(ctx context.Context, scheduleID int, product, message string) {
	p.publish(ctx, Alert{
		Kind:       "dose_error",
		ScheduleID: scheduleID,
		Product:    product,
		Message:    message,
		At:         time.Now(),
	})
}

// Recent returns the newest alerts, most recent first.
func (p *Publisher) Recent(ctx context.Context, n int64) ([]Alert, error) {
	if p == nil || p.rdb == nil {
		return nil, nil
	}
	if n <= 0 {
		n = 50
	}
	raw, err := p.rdb.LRange(ctx, recentKey, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Alert, 0, len(raw))
	for _, item := range raw {
		var a Alert
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			log.Error().Err(err).Msg("bad alert payload in redis")
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (p *Publisher) publish(ctx context.Context, a Alert) {
	if p == nil || p.rdb == nil {
		return
	}
	payload, err := json.Marshal(a)
	if err != nil {
		log.Error().Err(err).Msg("could not encode alert")
		return
	}
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		log.Error().Err(err).Msg("alert publish failed")
	}
	pipe := p.rdb.Pipeline()
	pipe.LPush(ctx, recentKey, payload)
	pipe.LTrim(ctx, recentKey, 0, recentKeep-1)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Msg("alert history update failed")
	}
}
