package main

import (
	"testing"

	"github.com/devcard/github-activity/internal/cache"
	"github.com/devcard/github-activity/internal/config"
	"go.uber.org/zap/zapcore"
)

func TestLogLevel(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		want  zapcore.Level
	}{
		{name: "debug", input: "debug", want: zapcore.DebugLevel},
		{name: "warn", input: "warn", want: zapcore.WarnLevel},
		{name: "error", input: "error", want: zapcore.ErrorLevel},
		{name: "default_info", input: "other", want: zapcore.InfoLevel},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := logLevel(tc.input)
			if got != tc.want {
				t.Fatalf("logLevel(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestNewCacheStore(t *testing.T) {
	t.Parallel()

	t.Run("memory_backend", func(t *testing.T) {
		t.Parallel()

		cfg := &config.Config{}
		cfg.Cache.Backend = "memory"

		store, err := newCacheStore(cfg)
		if err != nil {
			t.Fatalf("newCacheStore() unexpected error: %v", err)
		}
		if _, ok := store.(*cache.MemoryStore); !ok {
			t.Fatalf("store type = %T, want *cache.MemoryStore", store)
		}
	})

	t.Run("redis_backend", func(t *testing.T) {
		t.Parallel()

		cfg := &config.Config{}
		cfg.Cache.Backend = "redis"
		cfg.Cache.RedisAddr = "localhost:6379"

		store, err := newCacheStore(cfg)
		if err != nil {
			t.Fatalf("newCacheStore() unexpected error: %v", err)
		}
		if _, ok := store.(*cache.RedisStore); !ok {
			t.Fatalf("store type = %T, want *cache.RedisStore", store)
		}
		_ = store.Close()
	})

	t.Run("unknown_backend", func(t *testing.T) {
		t.Parallel()

		cfg := &config.Config{}
		cfg.Cache.Backend = "disk"

		if _, err := newCacheStore(cfg); err == nil {
			t.Fatalf("newCacheStore() expected error for unknown backend")
		}
	})
}
