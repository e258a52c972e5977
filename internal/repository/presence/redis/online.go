package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const onlineKey = "presence:online"

func (r repo) IncrOnline(ctx context.Context) (int64, error) {
	n, err := r.rc.Incr(ctx, onlineKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment online counter: %w", err)
	}

	return n, nil
}

func (r repo) DecrOnline(ctx context.Context) (int64, error) {
	n, err := decrClampScript.Run(ctx, r.rc, []string{onlineKey}).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to decrement online counter: %w", err)
	}

	return n, nil
}

func (r repo) GetOnline(ctx context.Context) (int64, error) {
	n, err := r.rc.Get(ctx, onlineKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get online counter: %w", err)
	}

	return n, nil
}
