package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestAllow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := New(rdb, 2, time.Minute, "notify")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "manager@example.com")
		if err != nil || !ok {
			t.Fatalf("event %d: ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := l.Allow(ctx, "manager@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("third event in window should be limited")
	}

	// Other keys are independent.
	ok, err = l.Allow(ctx, "director@example.com")
	if err != nil || !ok {
		t.Fatalf("other key: ok=%v err=%v", ok, err)
	}

	// After the window the count resets.
	mr.FastForward(time.Minute)
	ok, err = l.Allow(ctx, "manager@example.com")
	if err != nil || !ok {
		t.Fatalf("after window: ok=%v err=%v", ok, err)
	}
}

func TestAllowWithoutRedis(t *testing.T) {
	l := New(nil, 1, time.Minute, "")
	for i := 0; i < 3; i++ {
		ok, err := l.Allow(context.Background(), "anyone")
		if err != nil || !ok {
			t.Fatalf("nil client must always allow, got ok=%v err=%v", ok, err)
		}
	}
}
