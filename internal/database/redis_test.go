package database

import (
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/keyxmakerx/minutes/internal/config"
)

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(config.RedisConfig{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer client.Close()
}

func TestNewRedis_BadURL(t *testing.T) {
	if _, err := NewRedis(config.RedisConfig{URL: "not a url"}); err == nil {
		t.Error("expected error for malformed URL")
	}
}

func TestNewRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := NewRedis(config.RedisConfig{URL: "redis://" + addr}); err == nil {
		t.Error("expected ping error for closed server")
	}
}
