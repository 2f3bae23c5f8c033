package redis

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

func unreachableAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestNewFailsWhenServerUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := New(ctx, Config{Addr: unreachableAddr(t)})
	if !errors.Is(err, domain.ErrTransientRemote) {
		t.Fatalf("expected transient remote error, got %v", err)
	}
}

func TestGetClassifiesConnectionErrorAsTransient(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        unreachableAddr(t),
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	cache := NewWithClient(client, time.Minute, "")

	_, ok, err := cache.Get(context.Background(), "key")
	if ok {
		t.Fatalf("expected no hit")
	}
	if !errors.Is(err, domain.ErrTransientRemote) {
		t.Fatalf("expected transient remote error, got %v", err)
	}
	if err := cache.Put(context.Background(), "key", domain.EmbeddingVector{Values: []float32{1}}); !errors.Is(err, domain.ErrTransientRemote) {
		t.Fatalf("expected transient remote error on put, got %v", err)
	}
}

func TestNewWithClientDefaultsPrefix(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	cache := NewWithClient(client, 0, "")
	if cache.prefix != defaultPrefix {
		t.Fatalf("expected default prefix, got %q", cache.prefix)
	}
}
