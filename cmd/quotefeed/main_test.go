package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/rickgao/quotefeed/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenCache(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		if c := openCache(ctx, config.RedisConfig{}, discardLogger()); c != nil {
			t.Error("openCache() with no address returned a cache")
		}
	})

	t.Run("unreachable keeps running", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		c := openCache(ctx, config.RedisConfig{Addr: addr, TTL: time.Minute}, discardLogger())
		if c != nil {
			t.Error("openCache() against a closed server returned a cache")
		}
	})

	t.Run("reachable", func(t *testing.T) {
		mr := miniredis.RunT(t)

		c := openCache(ctx, config.RedisConfig{Addr: mr.Addr(), TTL: time.Minute}, discardLogger())
		if c == nil {
			t.Fatal("openCache() = nil, want connected cache")
		}
		defer c.Close()
	})
}
