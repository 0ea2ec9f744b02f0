// backend/collector/feed_client.go
package collector

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/gewnthar/density/backend/config"
	"github.com/gewnthar/density/backend/models"
)

// FeedClient pulls one cycle's occupancy payload from the upstream feed.
// The feed returns a JSON object keyed by group id, one entry per group
// currently reporting a client count.
type FeedClient struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

func NewFeedClient(cfg config.FeedConfig, logger *zap.Logger) *FeedClient {
	client := resty.New().SetTimeout(cfg.Timeout)
	return &FeedClient{
		client: client,
		url:    cfg.URL,
		logger: logger,
	}
}

// FetchSnapshot GETs the feed and decodes the group-keyed payload.
func (c *FeedClient) FetchSnapshot(ctx context.Context) (models.SnapshotPayload, error) {
	var payload models.SnapshotPayload

	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&payload).
		ForceContentType("application/json").
		Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch occupancy feed from %s: %w", c.url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("occupancy feed returned status %d", resp.StatusCode())
	}

	c.logger.Debug("fetched occupancy feed", zap.Int("groups", len(payload)))
	return payload, nil
}
