package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/wavescope/errors"
)

// KeyMeta describes a stored value without carrying its bytes.
type KeyMeta struct {
	Key      string
	Size     int
	Revision uint64
	Modified time.Time
}

func (c *Client) bucket() (jetstream.KeyValue, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.kv == nil {
		return nil, errors.WrapTransient(errors.ErrNoConnection, "Client", "bucket", "check bucket binding")
	}
	return c.kv, nil
}

func (c *Client) opTimer(op string) func() {
	if c.metrics == nil {
		return func() {}
	}
	start := time.Now()
	return func() { c.metrics.RecordStoreOpDuration(op, time.Since(start)) }
}

// GetValue returns the raw bytes stored under key.
func (c *Client) GetValue(ctx context.Context, key string) ([]byte, error) {
	kv, err := c.bucket()
	if err != nil {
		return nil, err
	}
	defer c.opTimer("get_value")()

	entry, err := kv.Get(ctx, key)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrKeyNotFound, key),
				"Client", "GetValue", "lookup")
		}
		c.recordFailure()
		return nil, errors.WrapTransient(err, "Client", "GetValue", fmt.Sprintf("get %s", key))
	}
	return entry.Value(), nil
}

// SetValue stores raw bytes under key, overwriting any prior value.
func (c *Client) SetValue(ctx context.Context, key string, value []byte) error {
	kv, err := c.bucket()
	if err != nil {
		return err
	}
	defer c.opTimer("set_value")()

	if _, err := kv.Put(ctx, key, value); err != nil {
		c.recordFailure()
		return errors.WrapTransient(err, "Client", "SetValue", fmt.Sprintf("put %s", key))
	}
	return nil
}

// DeleteValue removes key from the bucket. Deleting an absent key is an
// invalid-input error so callers can report it without retrying.
func (c *Client) DeleteValue(ctx context.Context, key string) error {
	kv, err := c.bucket()
	if err != nil {
		return err
	}
	defer c.opTimer("delete_value")()

	if _, err := kv.Get(ctx, key); err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrKeyNotFound, key),
				"Client", "DeleteValue", "lookup")
		}
		c.recordFailure()
		return errors.WrapTransient(err, "Client", "DeleteValue", fmt.Sprintf("check %s", key))
	}

	if err := kv.Delete(ctx, key); err != nil {
		c.recordFailure()
		return errors.WrapTransient(err, "Client", "DeleteValue", fmt.Sprintf("delete %s", key))
	}
	return nil
}

// RenameValue moves the bytes under oldKey to newKey. The copy lands before
// the delete, so a failure partway leaves both keys present rather than
// losing the value.
func (c *Client) RenameValue(ctx context.Context, oldKey, newKey string) error {
	if oldKey == newKey {
		return nil
	}

	value, err := c.GetValue(ctx, oldKey)
	if err != nil {
		return err
	}
	if err := c.SetValue(ctx, newKey, value); err != nil {
		return err
	}
	return c.DeleteValue(ctx, oldKey)
}

// ListKeys returns every key in the selected bucket.
func (c *Client) ListKeys(ctx context.Context) ([]string, error) {
	kv, err := c.bucket()
	if err != nil {
		return nil, err
	}
	defer c.opTimer("list_keys")()

	lister, err := kv.ListKeys(ctx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		c.recordFailure()
		return nil, errors.WrapTransient(err, "Client", "ListKeys", "list")
	}

	var keys []string
	for key := range lister.Keys() {
		keys = append(keys, key)
	}
	return keys, nil
}

// KeyInfo returns metadata for key without transferring its value to the
// caller's plot state.
func (c *Client) KeyInfo(ctx context.Context, key string) (*KeyMeta, error) {
	kv, err := c.bucket()
	if err != nil {
		return nil, err
	}
	defer c.opTimer("key_info")()

	entry, err := kv.Get(ctx, key)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrKeyNotFound, key),
				"Client", "KeyInfo", "lookup")
		}
		c.recordFailure()
		return nil, errors.WrapTransient(err, "Client", "KeyInfo", fmt.Sprintf("get %s", key))
	}

	return &KeyMeta{
		Key:      key,
		Size:     len(entry.Value()),
		Revision: entry.Revision(),
		Modified: entry.Created(),
	}, nil
}
