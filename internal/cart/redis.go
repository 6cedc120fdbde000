package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chanjin5212/myfarm-sub001/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cartTTL = 7 * 24 * time.Hour

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	sfg    singleflight.Group // collapses concurrent reads of the same cart
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    cartTTL,
	}
}

func (r *RedisStore) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	v, err, _ := r.sfg.Do(userID, func() (interface{}, error) {
		data, err := r.client.Get(ctx, cartKey(userID)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrCartNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("redis get failed: %w", err)
		}

		var cart domain.Cart
		if err2 := json.Unmarshal(data, &cart); err2 != nil {
			return nil, fmt.Errorf("unmarshal cart failed: %w", err2)
		}
		return &cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

func (r *RedisStore) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	jsonCart, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := r.client.Set(ctx, cartKey(userID), jsonCart, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// RemoveMatching drops every cart item that matches a paid order line on the
// (product, variant) pair. When nothing survives, the cart key is deleted
// outright.
func (r *RedisStore) RemoveMatching(ctx context.Context, userID string, lines []domain.OrderLine) error {
	cart, err := r.Get(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	remaining := cart.Items[:0]
	for _, item := range cart.Items {
		if !matchesAny(item, lines) {
			remaining = append(remaining, item)
		}
	}
	if len(remaining) == len(cart.Items) {
		return nil
	}
	if len(remaining) == 0 {
		return r.Delete(ctx, userID)
	}

	cart.Items = remaining
	cart.UpdatedAt = time.Now().UTC()
	return r.Set(ctx, userID, cart)
}

func matchesAny(item domain.CartItem, lines []domain.OrderLine) bool {
	for _, line := range lines {
		if item.MatchesLine(line) {
			return true
		}
	}
	return false
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}
