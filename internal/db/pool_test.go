package db

import (
	"testing"
	"time"
)

func TestPoolConfigDefaults(t *testing.T) {
	got := PoolConfig{}.withDefaults()
	if got.MaxConns != 16 || got.MinConns != 2 {
		t.Fatalf("default conns = %d/%d, want 16/2", got.MaxConns, got.MinConns)
	}
	if got.MaxConnLifetime != 30*time.Minute || got.MaxConnIdleTime != 10*time.Minute {
		t.Fatalf("default lifetimes = %v/%v", got.MaxConnLifetime, got.MaxConnIdleTime)
	}

	set := PoolConfig{MaxConns: 40, MinConns: 5, MaxConnLifetime: time.Hour, MaxConnIdleTime: time.Minute}
	if got := set.withDefaults(); got != set {
		t.Fatalf("explicit config rewritten: %+v", got)
	}
}
