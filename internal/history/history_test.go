package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anarthal/servertech-chat-sub000/internal/model"
)

type fakeStreams struct {
	batches map[string]model.MessageBatch
	gotCursors map[string]string
}

func (f *fakeStreams) ReverseRangeBatch(_ context.Context, cursors map[string]string) (map[string]model.MessageBatch, error) {
	f.gotCursors = cursors
	out := make(map[string]model.MessageBatch, len(cursors))
	for room := range cursors {
		out[room] = f.batches[room]
	}
	return out, nil
}

type fakeUsernames struct {
	byID      model.UsernameMap
	gotIDs    []int64
}

func (f *fakeUsernames) UsernamesByID(_ context.Context, ids []int64) (model.UsernameMap, error) {
	f.gotIDs = ids
	out := make(model.UsernameMap, len(ids))
	for _, id := range ids {
		if name, ok := f.byID[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func TestFetchCollectsDistinctUserIDsAcrossRooms(t *testing.T) {
	streams := &fakeStreams{batches: map[string]model.MessageBatch{
		"beast": {Messages: []model.Message{{UserID: 1}, {UserID: 2}}},
		"async": {Messages: []model.Message{{UserID: 2}, {UserID: 3}}},
	}}
	usernames := &fakeUsernames{byID: model.UsernameMap{1: "alice", 2: "bob", 3: "carol"}}
	svc := New(streams, usernames)

	batches, um, err := svc.Fetch(context.Background(), []string{"beast", "async"})
	require.NoError(t, err)
	assert.Len(t, batches, 2)
	assert.ElementsMatch(t, []int64{1, 2, 3}, usernames.gotIDs)
	assert.Equal(t, "bob", um.Lookup(2))
}

func TestFetchSkipsUsernameQueryWhenNoMessages(t *testing.T) {
	streams := &fakeStreams{batches: map[string]model.MessageBatch{"beast": {}}}
	usernames := &fakeUsernames{byID: model.UsernameMap{}}
	svc := New(streams, usernames)

	_, _, err := svc.Fetch(context.Background(), []string{"beast"})
	require.NoError(t, err)
	assert.Empty(t, usernames.gotIDs)
}

func TestFetchOnePassesLastSeenIDAsCursor(t *testing.T) {
	streams := &fakeStreams{batches: map[string]model.MessageBatch{"wasm": {}}}
	usernames := &fakeUsernames{byID: model.UsernameMap{}}
	svc := New(streams, usernames)

	_, _, err := svc.FetchOne(context.Background(), "wasm", "100-0")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"wasm": "100-0"}, streams.gotCursors)
}
