package cache

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrUserNotCached = errors.New("user not found in cache")

type Config struct {
	Enabled      bool
	Addr         string
	Password     string
	UsersHashKey string
	SeatMapTTL   time.Duration
}

type ValkeyClient struct {
	client       *redis.Client
	usersHashKey string
	seatMapTTL   time.Duration
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return newClient(rdb, cfg), nil
}

func newClient(rdb *redis.Client, cfg Config) *ValkeyClient {
	usersHashKey := cfg.UsersHashKey
	if usersHashKey == "" {
		usersHashKey = "users:auth"
	}
	ttl := cfg.SeatMapTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ValkeyClient{
		client:       rdb,
		usersHashKey: usersHashKey,
		seatMapTTL:   ttl,
	}
}

func authKey(email, passwordHash string) string {
	authString := fmt.Sprintf("%s:%s", email, passwordHash)
	return base64.StdEncoding.EncodeToString([]byte(authString))
}

func seatMapKey(busID int64) string {
	return "seatmap:" + strconv.FormatInt(busID, 10)
}

func (v *ValkeyClient) GetUserIDByAuth(ctx context.Context, email, passwordHash string) (int64, error) {
	userIDStr, err := v.client.HGet(ctx, v.usersHashKey, authKey(email, passwordHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrUserNotCached
		}
		return 0, fmt.Errorf("cache lookup error: %w", err)
	}

	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID in cache: %w", err)
	}

	return userID, nil
}

func (v *ValkeyClient) SetUserAuth(ctx context.Context, email, passwordHash string, userID int64) error {
	if err := v.client.HSet(ctx, v.usersHashKey, authKey(email, passwordHash), userID).Err(); err != nil {
		return fmt.Errorf("cache write error: %w", err)
	}
	return nil
}

// GetSeatMap returns the cached seat map JSON of a bus. ok is false on a miss.
func (v *ValkeyClient) GetSeatMap(ctx context.Context, busID int64) ([]byte, bool, error) {
	data, err := v.client.Get(ctx, seatMapKey(busID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache lookup error: %w", err)
	}
	return data, true, nil
}

func (v *ValkeyClient) SetSeatMap(ctx context.Context, busID int64, data []byte) error {
	if err := v.client.Set(ctx, seatMapKey(busID), data, v.seatMapTTL).Err(); err != nil {
		return fmt.Errorf("cache write error: %w", err)
	}
	return nil
}

func (v *ValkeyClient) InvalidateSeatMap(ctx context.Context, busID int64) error {
	if err := v.client.Del(ctx, seatMapKey(busID)).Err(); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
