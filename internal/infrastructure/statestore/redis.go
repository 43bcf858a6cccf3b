package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/devilmonastery/gatekeeper/internal/config"
	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
	"github.com/devilmonastery/gatekeeper/internal/domain/repositories"
	"github.com/devilmonastery/gatekeeper/internal/pkg/metrics"
)

const redisKeyPrefix = "login_state:"

// Redis stores login states in Redis with native TTL expiry. Consume uses
// GETDEL, so replayed tokens race on the server and only one caller wins.
type Redis struct {
	client *redis.Client
	prefix string
}

var _ repositories.StateRepository = (*Redis)(nil)

// stateRecord is the wire form of a login state. Unlike the entity it
// serializes the code verifier, which must survive the round trip.
type stateRecord struct {
	Token          string    `json:"token"`
	Provider       string    `json:"provider"`
	RedirectTarget string    `json:"redirect_target"`
	CodeVerifier   string    `json:"code_verifier"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

func (r *stateRecord) toEntity() *entities.LoginState {
	return &entities.LoginState{
		Token:          r.Token,
		Provider:       r.Provider,
		RedirectTarget: r.RedirectTarget,
		CodeVerifier:   r.CodeVerifier,
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt,
	}
}

func recordFromEntity(state *entities.LoginState) *stateRecord {
	return &stateRecord{
		Token:          state.Token,
		Provider:       state.Provider,
		RedirectTarget: state.RedirectTarget,
		CodeVerifier:   state.CodeVerifier,
		CreatedAt:      state.CreatedAt,
		ExpiresAt:      state.ExpiresAt,
	}
}

// NewRedis connects to Redis and verifies the connection with a ping
func NewRedis(cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Redis{
		client: client,
		prefix: redisKeyPrefix,
	}, nil
}

func (r *Redis) key(token string) string {
	return r.prefix + token
}

// Issue stores a login state record with its TTL
func (r *Redis) Issue(ctx context.Context, state *entities.LoginState) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("states", "issue", time.Since(start), 1, err)
	}()

	if state.Token == "" {
		err = errors.New("state token is required")
		return err
	}
	ttl := time.Until(state.ExpiresAt)
	if ttl <= 0 {
		err = errors.New("state expiry must be in the future")
		return err
	}

	data, marshalErr := json.Marshal(recordFromEntity(state))
	if marshalErr != nil {
		err = fmt.Errorf("failed to marshal login state: %w", marshalErr)
		return err
	}

	err = r.client.Set(ctx, r.key(state.Token), data, ttl).Err()
	if err != nil {
		err = fmt.Errorf("failed to store login state: %w", err)
	}
	return err
}

// Consume atomically reads and deletes the record via GETDEL
func (r *Redis) Consume(ctx context.Context, token string) (*entities.LoginState, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("states", "consume", time.Since(start), rowCount, err)
	}()

	val, getErr := r.client.GetDel(ctx, r.key(token)).Result()
	if errors.Is(getErr, redis.Nil) {
		err = repositories.ErrStateNotFound
		return nil, err
	}
	if getErr != nil {
		err = fmt.Errorf("failed to consume login state: %w", getErr)
		return nil, err
	}

	var record stateRecord
	if unmarshalErr := json.Unmarshal([]byte(val), &record); unmarshalErr != nil {
		err = fmt.Errorf("failed to unmarshal login state: %w", unmarshalErr)
		return nil, err
	}

	state := record.toEntity()
	// Redis expiry already bounds the key lifetime; this guards against
	// clock skew between instances.
	if state.IsExpired() {
		err = repositories.ErrStateNotFound
		return nil, err
	}
	rowCount = 1
	return state, nil
}

// PurgeExpired is a no-op: Redis expires state keys natively
func (r *Redis) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// HealthCheck verifies the Redis connection
func (r *Redis) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the Redis client
func (r *Redis) Close() error {
	return r.client.Close()
}
