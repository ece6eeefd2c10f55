// Package history composes the KV store's per-room message streams with a
// relational username lookup into the batches the chat protocol's hello
// and room-history frames need (spec.md §4.9).
package history

import (
	"context"

	"github.com/anarthal/servertech-chat-sub000/internal/model"
)

// Streams is the narrow KV surface this service needs.
type Streams interface {
	ReverseRangeBatch(ctx context.Context, cursorsByRoom map[string]string) (map[string]model.MessageBatch, error)
}

// Usernames is the narrow relational surface this service needs.
type Usernames interface {
	UsernamesByID(ctx context.Context, ids []int64) (model.UsernameMap, error)
}

// Service composes Streams and Usernames into room-history responses.
type Service struct {
	streams   Streams
	usernames Usernames
}

func New(streams Streams, usernames Usernames) *Service {
	return &Service{streams: streams, usernames: usernames}
}

// Fetch loads the most recent page for every room in roomIDs, plus a
// username map covering every author that appears in any of them.
func (s *Service) Fetch(ctx context.Context, roomIDs []string) (map[string]model.MessageBatch, model.UsernameMap, error) {
	cursors := make(map[string]string, len(roomIDs))
	for _, id := range roomIDs {
		cursors[id] = ""
	}
	return s.fetchBatches(ctx, cursors)
}

// FetchOne loads a single room's page, optionally starting strictly before
// lastSeenID (cursor-based pagination).
func (s *Service) FetchOne(ctx context.Context, roomID string, lastSeenID string) (model.MessageBatch, model.UsernameMap, error) {
	batches, usernames, err := s.fetchBatches(ctx, map[string]string{roomID: lastSeenID})
	if err != nil {
		return model.MessageBatch{}, nil, err
	}
	return batches[roomID], usernames, nil
}

func (s *Service) fetchBatches(ctx context.Context, cursors map[string]string) (map[string]model.MessageBatch, model.UsernameMap, error) {
	batches, err := s.streams.ReverseRangeBatch(ctx, cursors)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[int64]struct{})
	for _, batch := range batches {
		for _, msg := range batch.Messages {
			seen[msg.UserID] = struct{}{}
		}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}

	usernames, err := s.usernames.UsernamesByID(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	return batches, usernames, nil
}
