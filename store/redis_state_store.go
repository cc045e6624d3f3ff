package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AdminStep is where an admin currently is inside a multi-message dialog
// (premium grant, premium revoke, broadcast).
type AdminStep string

const (
	StepGiveWaitUserID   AdminStep = "give_wait_user_id"
	StepGiveWaitDuration AdminStep = "give_wait_duration"
	StepRevokeWaitUserID AdminStep = "revoke_wait_user_id"
	StepBroadcastWait    AdminStep = "broadcast_wait"
	StepBroadcastConfirm AdminStep = "broadcast_confirm"
)

type AdminState struct {
	Step       AdminStep `json:"step"`
	TargetID   int64     `json:"target_id,omitempty"`
	FromChatID int64     `json:"from_chat_id,omitempty"`
	MessageID  int       `json:"message_id,omitempty"`
}

type RedisStateStore struct {
	client *RedisClient
	ttl    time.Duration
}

func NewRedisStateStore(redisClient *RedisClient, ttlHours int) *RedisStateStore {
	ttl := time.Duration(ttlHours) * time.Hour
	if ttlHours <= 0 {
		ttl = 24 * time.Hour
	}

	return &RedisStateStore{
		client: redisClient,
		ttl:    ttl,
	}
}

func (s *RedisStateStore) GetAdminState(ctx context.Context, adminID int64) (*AdminState, error) {
	key := s.client.generateKey("admin_state", fmt.Sprintf("%d", adminID))
	var state AdminState
	if err := s.client.Get(ctx, key, &state); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

func (s *RedisStateStore) SetAdminState(ctx context.Context, adminID int64, state *AdminState) error {
	key := s.client.generateKey("admin_state", fmt.Sprintf("%d", adminID))
	return s.client.Set(ctx, key, state, s.ttl)
}

func (s *RedisStateStore) ClearAdminState(ctx context.Context, adminID int64) error {
	key := s.client.generateKey("admin_state", fmt.Sprintf("%d", adminID))
	return s.client.Del(ctx, key)
}
