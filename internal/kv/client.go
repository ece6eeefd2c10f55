// Package kv wraps the key-value store (a Redis-family store, spec.md §4.4)
// behind a typed facade: per-room append-only streams for chat history, plus
// plain string keys for session tokens. Stream replies are parsed by a
// custom one-pass state machine (parser.go) rather than go-redis's typed
// stream helpers, so ReverseRange/ReverseRangeBatch exercise the literal
// reply shape spec.md §4.4 describes. AppendToStream(s) read the XADD-assigned
// id directly from go-redis's command result, without the parser.
package kv

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/anarthal/servertech-chat-sub000/internal/apperr"
	"github.com/anarthal/servertech-chat-sub000/internal/model"
)

// Client is a typed facade over a single go-redis client connection.
type Client struct {
	rdb    redis.UniversalClient
	logger zerolog.Logger
}

// Config names the connection parameters SPEC_FULL.md's config layer reads
// from the environment (REDIS_HOST etc.).
type Config struct {
	Host string
	Port int
}

// New dials (lazily — go-redis connects on first use) a client against cfg.
func New(cfg Config, logger zerolog.Logger) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	})
	return &Client{rdb: rdb, logger: logger.With().Str("component", "kv").Logger()}
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func streamKey(roomID string) string {
	return "room_message_stream/" + roomID
}

// AppendToStream appends one message to roomID's stream (XADD with an
// auto-generated id) and returns the message with its assigned ID populated.
func (c *Client) AppendToStream(ctx context.Context, roomID string, msg model.Message) (model.Message, error) {
	batch, err := c.AppendToStreams(ctx, map[string]model.Message{roomID: msg})
	if err != nil {
		return model.Message{}, err
	}
	return batch[roomID], nil
}

// AppendToStreams appends one message per room in a single pipelined round
// trip, returning each message with its assigned stream id. spec.md §4.4:
// a chat-message batch fans out to one XADD per room.
func (c *Client) AppendToStreams(ctx context.Context, byRoom map[string]model.Message) (map[string]model.Message, error) {
	pipe := c.rdb.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(byRoom))
	for roomID, msg := range byRoom {
		payload, err := encodePayload(msg)
		if err != nil {
			return nil, apperr.Of(apperr.KindBadRequest, err)
		}
		cmds[roomID] = pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: streamKey(roomID),
			Values: map[string]any{"payload": payload},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, classifyErr(err)
	}

	out := make(map[string]model.Message, len(byRoom))
	for roomID, cmd := range cmds {
		id, err := cmd.Result()
		if err != nil {
			return nil, classifyErr(err)
		}
		m := byRoom[roomID]
		m.ID = id
		out[roomID] = m
	}
	return out, nil
}

// ReverseRange fetches one newest-first page from roomID's stream, older
// than exclusiveCursor (empty string means "from the newest end"). The page
// size is model.ReverseRangePageSize; HasMore is true when the page is full.
func (c *Client) ReverseRange(ctx context.Context, roomID string, exclusiveCursor string) (model.MessageBatch, error) {
	batches, err := c.ReverseRangeBatch(ctx, map[string]string{roomID: exclusiveCursor})
	if err != nil {
		return model.MessageBatch{}, err
	}
	return batches[roomID], nil
}

// ReverseRangeBatch issues one XREVRANGE per room, all in a single pipelined
// round trip, and runs each room's reply through the one-pass state machine
// in parser.go as its own single-command reply.
func (c *Client) ReverseRangeBatch(ctx context.Context, cursorsByRoom map[string]string) (map[string]model.MessageBatch, error) {
	// Stable order so callers and the parser agree on which commands are
	// which, and so re-running with the same input is deterministic.
	roomIDs := make([]string, 0, len(cursorsByRoom))
	for roomID := range cursorsByRoom {
		roomIDs = append(roomIDs, roomID)
	}
	sort.Strings(roomIDs)

	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.SliceCmd, len(roomIDs))
	for i, roomID := range roomIDs {
		start := "+"
		end := "-"
		if cursor := cursorsByRoom[roomID]; cursor != "" {
			start = "(" + cursor
		}
		cmds[i] = pipe.XRevRangeN(ctx, streamKey(roomID), start, end, model.ReverseRangePageSize)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, classifyErr(err)
	}

	out := make(map[string]model.MessageBatch, len(roomIDs))
	for i, roomID := range roomIDs {
		raw, err := cmds[i].Result()
		if err != nil && err != redis.Nil {
			return nil, classifyErr(err)
		}
		messages, err := parseXRevRangeReply(raw)
		if err != nil {
			return nil, err
		}
		out[roomID] = model.MessageBatch{
			Messages: messages,
			HasMore:  len(messages) >= model.ReverseRangePageSize,
		}
	}
	return out, nil
}

// parseXRevRangeReply adapts go-redis's typed []redis.XMessage result back
// into the untyped node-sequence shape parser.go expects, so a single parser
// implementation serves both the pipelined batch path here and any future
// raw Do()-based caller.
func parseXRevRangeReply(msgs []redis.XMessage) ([]model.Message, error) {
	tree := make([]any, 0, len(msgs))
	for _, m := range msgs {
		payload, ok := m.Values["payload"]
		if !ok {
			return nil, apperr.Of(apperr.KindParseError, fmt.Errorf("stream entry %s missing payload field", m.ID))
		}
		payloadStr, ok := payload.(string)
		if !ok {
			return nil, apperr.Of(apperr.KindParseError, fmt.Errorf("stream entry %s payload field is not a string", m.ID))
		}
		tree = append(tree, []any{m.ID, []any{"payload", payloadStr}})
	}
	commands, err := parseCommandReplies([]any{tree})
	if err != nil {
		return nil, err
	}
	return commands[0], nil
}

// SetIfAbsent sets key to value with ttl, only if key does not already
// exist (SET NX EX). Returns apperr.KindAlreadyExists if it did.
func (c *Client) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) error {
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return classifyErr(err)
	}
	if !ok {
		return apperr.Of(apperr.KindAlreadyExists, nil)
	}
	return nil
}

// GetInt reads key as an integer. Returns apperr.KindNotFound if absent.
func (c *Client) GetInt(ctx context.Context, key string) (int64, error) {
	v, err := c.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, apperr.Of(apperr.KindNotFound, nil)
	}
	if err != nil {
		return 0, classifyErr(err)
	}
	return v, nil
}

// GetString reads key as a string. Returns apperr.KindNotFound if absent —
// used by the session store (spec.md §4.5) to look up the user id stored
// under a session token key.
func (c *Client) GetString(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", apperr.Of(apperr.KindNotFound, nil)
	}
	if err != nil {
		return "", classifyErr(err)
	}
	return v, nil
}

func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if err == context.DeadlineExceeded {
		return apperr.Of(apperr.KindTimeout, err)
	}
	if err == context.Canceled {
		return apperr.Of(apperr.KindCancelled, err)
	}
	return apperr.Of(apperr.KindUnknown, err)
}
