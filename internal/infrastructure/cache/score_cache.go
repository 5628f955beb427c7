package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flowcomply/compliance-engine/internal/domain/scoring"
)

const scoreKeyPrefix = "score:latest:"

// ScoreCache keeps the latest snapshot per organization as JSON.
type ScoreCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewScoreCache(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *ScoreCache {
	return &ScoreCache{client: client, ttl: ttl, logger: logger.Named("score_cache")}
}

func scoreKey(orgID uuid.UUID) string {
	return scoreKeyPrefix + orgID.String()
}

// GetLatest reports false on a miss.
func (c *ScoreCache) GetLatest(ctx context.Context, orgID uuid.UUID) (*scoring.ComplianceScoreSnapshot, bool, error) {
	data, err := c.client.Get(ctx, scoreKey(orgID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var s scoring.ComplianceScoreSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		c.logger.Warn("discarding undecodable cached snapshot",
			zap.String("organization_id", orgID.String()), zap.Error(err))
		return nil, false, nil
	}
	return &s, true, nil
}

func (c *ScoreCache) SetLatest(ctx context.Context, s *scoring.ComplianceScoreSnapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}
	if err := c.client.Set(ctx, scoreKey(s.OrganizationID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot.
func (c *ScoreCache) Invalidate(ctx context.Context, orgID uuid.UUID) error {
	if err := c.client.Del(ctx, scoreKey(orgID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
