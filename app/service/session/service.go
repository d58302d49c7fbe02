package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samber/do"
)

const keyPrefix = "chat:history:"

// Service persists per-session conversation history. Each operation performs
// exactly one store round trip; Save replaces the whole blob, so a concurrent
// Load observes either the previous or the new history, never a partial one.
type Service struct {
	store Store
}

func New(di *do.Injector) (*Service, error) {
	return NewService(do.MustInvoke[Store](di)), nil
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Load returns the ordered history of the session. An absent session yields
// an empty history, not an error.
func (s *Service) Load(ctx context.Context, sessionID string) ([]Turn, error) {
	blob, err := s.store.Get(ctx, keyPrefix+sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	if blob == nil {
		return []Turn{}, nil
	}

	var turns []Turn
	if err = json.Unmarshal(blob, &turns); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}

	return turns, nil
}

// Save writes the full history of the session in one round trip. The caller
// passes prior turns plus the new ones, already in occurrence order.
func (s *Service) Save(ctx context.Context, sessionID string, turns []Turn) error {
	blob, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	if err = s.store.Set(ctx, keyPrefix+sessionID, blob); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}

	return nil
}

// Clear removes the session's history.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if err := s.store.Del(ctx, keyPrefix+sessionID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	return nil
}
