package redisstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Latest check status per monitor, hashed under the owning user. The
// event hub reads the whole hash to build a connect-time snapshot
// without a database round trip.

func statusKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:status:%v", userID)
}

func (c *Client) SetStatus(ctx context.Context, userID, monitorID uuid.UUID, payload []byte) error {
	return retry(ctx, 2, func() error {
		return c.rdb.HSet(ctx, statusKey(userID), monitorID.String(), payload).Err()
	})
}

// Snapshot returns monitorID -> latest status payload (JSON) for one user.
func (c *Client) Snapshot(ctx context.Context, userID uuid.UUID) (map[string]string, error) {
	res, err := c.rdb.HGetAll(ctx, statusKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	return res, err
}

func (c *Client) DelStatus(ctx context.Context, userID, monitorID uuid.UUID) error {
	return c.rdb.HDel(ctx, statusKey(userID), monitorID.String()).Err()
}
