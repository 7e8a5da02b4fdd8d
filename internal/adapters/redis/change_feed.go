package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
)

// DefaultChangeChannel is the pub/sub channel for principal-level changes.
const DefaultChangeChannel = "auth:changes"

// PrincipalChange is published when something happens to all sessions of a principal,
// such as an operator revoking them.
type PrincipalChange struct {
	UserID string                  `json:"user_id"`
	Event  domainauth.SessionEvent `json:"event"`
}

// ChangeFeed publishes and receives PrincipalChange messages over Redis pub/sub.
type ChangeFeed struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

// ChangeFeedOptions configures NewChangeFeed.
type ChangeFeedOptions struct {
	Client  redis.UniversalClient
	Channel string
	Logger  *slog.Logger
}

// NewChangeFeed creates a ChangeFeed.
func NewChangeFeed(opts ChangeFeedOptions) *ChangeFeed {
	if opts.Client == nil {
		panic("redis.NewChangeFeed: client is required")
	}
	if opts.Channel == "" {
		opts.Channel = DefaultChangeChannel
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeFeed{
		client:  opts.Client,
		channel: opts.Channel,
		logger:  logger.With("component", "auth_change_feed"),
	}
}

// Publish sends change to every subscriber.
func (f *ChangeFeed) Publish(ctx context.Context, change PrincipalChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal principal change: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Listen subscribes and calls handle for each message until ctx is done.
// ready, when non-nil, is closed once the subscription is confirmed.
// Malformed messages are logged and skipped.
func (f *ChangeFeed) Listen(ctx context.Context, ready chan<- struct{}, handle func(PrincipalChange)) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer func() {
		if err := sub.Close(); err != nil {
			f.logger.Debug("close subscription", "error", err)
		}
	}()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var change PrincipalChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil || change.UserID == "" {
				f.logger.Warn("discarding malformed principal change", "error", err)
				continue
			}
			handle(change)
		}
	}
}
