package cache

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// compressed stores zstd frames in the wrapped storage.
type compressed struct {
	Storage
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Compressed wraps storage so values are zstd-compressed at rest.
func Compressed(storage Storage) (Storage, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &compressed{Storage: storage, encoder: enc, decoder: dec}, nil
}

func (c *compressed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := c.Storage.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	out, err := c.decoder.DecodeAll(raw, nil)
	if err != nil {
		return nil, false, fmt.Errorf("decompressing %s: %w", key, err)
	}
	return out, true, nil
}

func (c *compressed) Set(ctx context.Context, key string, value []byte) error {
	return c.Storage.Set(ctx, key, c.encoder.EncodeAll(value, nil))
}

func (c *compressed) Close() error {
	c.decoder.Close()
	if err := c.encoder.Close(); err != nil {
		return err
	}
	return c.Storage.Close()
}
