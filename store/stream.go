package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/c360/wavescope/errors"
)

// maxReadBatch bounds how many entries one blocking read returns.
const maxReadBatch = 64

// Entry is one append-only stream record. ID is the stream's monotonic
// sequence, so it doubles as the resume cursor.
type Entry struct {
	ID     uint64
	Fields map[string][]byte
}

// EncodeFields serializes an entry field map for the wire.
func EncodeFields(fields map[string][]byte) ([]byte, error) {
	data, err := msgpack.Marshal(fields)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Entry", "EncodeFields", "marshal")
	}
	return data, nil
}

// DecodeFields deserializes an entry field map.
func DecodeFields(data []byte) (map[string][]byte, error) {
	var fields map[string][]byte
	if err := msgpack.Unmarshal(data, &fields); err != nil {
		return nil, errors.WrapInvalid(err, "Entry", "DecodeFields", "unmarshal")
	}
	return fields, nil
}

// sanitizeToken makes a user key usable as a stream name and subject token.
func sanitizeToken(key string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, key)
}

func (c *Client) streamName(key string) string {
	return fmt.Sprintf("%s_%s", c.streamPrefix, sanitizeToken(key))
}

func (c *Client) streamSubject(key string) string {
	return fmt.Sprintf("%s.stream.%s", c.streamPrefix, sanitizeToken(key))
}

// ensureStream creates the backing stream for a key on first use.
func (c *Client) ensureStream(ctx context.Context, key string) (jetstream.Stream, error) {
	c.mu.RLock()
	js := c.js
	c.mu.RUnlock()
	if js == nil {
		return nil, errors.WrapTransient(errors.ErrNoConnection, "Client", "ensureStream", "check connection")
	}

	name := c.streamName(key)

	c.knownStreamsMu.Lock()
	known := c.knownStreams[name]
	c.knownStreamsMu.Unlock()

	if known {
		stream, err := js.Stream(ctx, name)
		if err == nil {
			return stream, nil
		}
		// Fall through and recreate; the stream may have been deleted.
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      name,
		Subjects:  []string{c.streamSubject(key)},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
	})
	if err != nil {
		c.recordFailure()
		return nil, errors.WrapTransient(err, "Client", "ensureStream",
			fmt.Sprintf("create stream for %s", key))
	}

	c.knownStreamsMu.Lock()
	c.knownStreams[name] = true
	c.knownStreamsMu.Unlock()

	return stream, nil
}

// StreamAppend appends a field map as a new entry and returns its id.
func (c *Client) StreamAppend(ctx context.Context, key string, fields map[string][]byte) (uint64, error) {
	if _, err := c.ensureStream(ctx, key); err != nil {
		return 0, err
	}
	defer c.opTimer("stream_append")()

	data, err := EncodeFields(fields)
	if err != nil {
		return 0, err
	}

	c.mu.RLock()
	js := c.js
	c.mu.RUnlock()

	ack, err := js.Publish(ctx, c.streamSubject(key), data)
	if err != nil {
		c.recordFailure()
		return 0, errors.WrapTransient(err, "Client", "StreamAppend",
			fmt.Sprintf("publish to %s", key))
	}
	return ack.Sequence, nil
}

// streamCursor caches a pull consumer positioned after a delivered id so
// successive reads resume without recreating consumers.
type streamCursor struct {
	consumer jetstream.Consumer
	next     uint64 // next stream sequence this consumer will deliver
}

// consumerFor returns a consumer delivering entries with id > afterID,
// reusing the cached one when its position matches.
func (c *Client) consumerFor(ctx context.Context, key string, afterID uint64) (*streamCursor, error) {
	c.consumersMu.Lock()
	defer c.consumersMu.Unlock()

	if cur, ok := c.consumers[key]; ok && cur.next == afterID+1 {
		return cur, nil
	}

	stream, err := c.ensureStream(ctx, key)
	if err != nil {
		return nil, err
	}

	cfg := jetstream.ConsumerConfig{
		Name:              fmt.Sprintf("ws_%s", uuid.NewString()[:13]),
		AckPolicy:         jetstream.AckExplicitPolicy,
		InactiveThreshold: 5 * time.Minute,
	}
	if afterID == 0 {
		cfg.DeliverPolicy = jetstream.DeliverAllPolicy
	} else {
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = afterID + 1
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, cfg)
	if err != nil {
		c.recordFailure()
		return nil, errors.WrapTransient(err, "Client", "consumerFor",
			fmt.Sprintf("create consumer for %s", key))
	}

	cur := &streamCursor{consumer: consumer, next: afterID + 1}
	c.consumers[key] = cur
	return cur, nil
}

// StreamReadBlocking waits up to timeout for entries with id > afterID and
// returns them in stream order. An expired wait returns an empty batch, not
// an error, so pollers can check for cancellation between reads.
func (c *Client) StreamReadBlocking(
	ctx context.Context, key string, afterID uint64, timeout time.Duration,
) ([]Entry, error) {
	cur, err := c.consumerFor(ctx, key, afterID)
	if err != nil {
		return nil, err
	}
	defer c.opTimer("stream_read")()

	batch, err := cur.consumer.Fetch(maxReadBatch, jetstream.FetchMaxWait(timeout))
	if err != nil {
		c.invalidateCursor(key)
		c.recordFailure()
		return nil, errors.WrapTransient(err, "Client", "StreamReadBlocking",
			fmt.Sprintf("fetch from %s", key))
	}

	var entries []Entry
	for msg := range batch.Messages() {
		meta, err := msg.Metadata()
		if err != nil {
			c.invalidateCursor(key)
			return entries, errors.WrapTransient(err, "Client", "StreamReadBlocking", "read metadata")
		}

		fields, err := DecodeFields(msg.Data())
		if err != nil {
			// A malformed entry is skipped, not fatal; the cursor still
			// advances past it.
			c.logger.Warn("skipping malformed stream entry",
				"key", key, "seq", meta.Sequence.Stream)
			_ = msg.Ack()
			c.advanceCursor(key, meta.Sequence.Stream)
			continue
		}

		entries = append(entries, Entry{ID: meta.Sequence.Stream, Fields: fields})
		_ = msg.Ack()
		c.advanceCursor(key, meta.Sequence.Stream)
	}

	if err := batch.Error(); err != nil {
		c.invalidateCursor(key)
		c.recordFailure()
		return entries, errors.WrapTransient(err, "Client", "StreamReadBlocking",
			fmt.Sprintf("fetch from %s", key))
	}
	return entries, nil
}

func (c *Client) advanceCursor(key string, deliveredSeq uint64) {
	c.consumersMu.Lock()
	defer c.consumersMu.Unlock()
	if cur, ok := c.consumers[key]; ok && deliveredSeq >= cur.next {
		cur.next = deliveredSeq + 1
	}
}

func (c *Client) invalidateCursor(key string) {
	c.consumersMu.Lock()
	defer c.consumersMu.Unlock()
	delete(c.consumers, key)
}
