package enrichment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-timezones-backend/internal/domain"
)

func TestSweeper_RunOncePrewarms(t *testing.T) {
	p := newFakeProvider()
	c := newTestCache(p, testZones("a", "b"), newFakeClock(), nil)
	s := NewSweeper(c, func(context.Context) ([]string, error) { return []string{"a", "b"}, nil }, time.Minute)

	evicted, warm := s.RunOnce(context.Background())
	if evicted != 0 || warm != 2 {
		t.Fatalf("RunOnce = (%d, %d); want (0, 2)", evicted, warm)
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("listed zone not warm")
	}
}

func TestSweeper_ListerErrorStillSweeps(t *testing.T) {
	p := newFakeProvider()
	clk := newFakeClock()
	c := newTestCache(p, testZones("a"), clk, nil)
	if !c.Refresh(context.Background(), "a") {
		t.Fatalf("refresh failed")
	}
	clk.Advance(time.Hour)

	s := NewSweeper(c, func(context.Context) ([]string, error) { return nil, errors.New("db down") }, time.Minute)
	evicted, warm := s.RunOnce(context.Background())
	if evicted != 1 || warm != 0 {
		t.Fatalf("RunOnce = (%d, %d); want (1, 0)", evicted, warm)
	}
}

func TestSweeper_StartStop(t *testing.T) {
	p := newFakeProvider()
	c := newTestCache(p, testZones("a"), newFakeClock(), nil)
	s := NewSweeper(c, func(context.Context) ([]string, error) { return []string{"a"}, nil }, 10*time.Millisecond)

	s.Start()
	s.Start()
	eventually(t, func() bool { return p.calls.Load() >= 1 }, "sweeper prewarmed")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestSweeper_ZeroIntervalNeverStarts(t *testing.T) {
	c := newTestCache(newFakeProvider(), testZones("a"), newFakeClock(), nil)
	s := NewSweeper(c, nil, 0)
	s.Start()
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestRedisStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	s := NewRedisStore(client, "")
	if k := s.key("UTC"); k != "tz:weather:UTC" {
		t.Fatalf("key = %q", k)
	}

	if _, ok, err := s.Get(context.Background(), "UTC"); err == nil || ok {
		t.Fatalf("Get on unreachable redis: ok=%v err=%v", ok, err)
	}
	if err := s.Set(context.Background(), domain.EnrichmentEntry{ZoneID: "UTC", TTLSeconds: 60}); err == nil {
		t.Fatalf("Set on unreachable redis succeeded")
	}
	// no ttl means nothing to share
	if err := s.Set(context.Background(), domain.EnrichmentEntry{ZoneID: "UTC"}); err != nil {
		t.Fatalf("Set without ttl: %v", err)
	}
}

func TestRedisStore_CacheFallsBack(t *testing.T) {
	client := NewRedisClient("127.0.0.1:1", "", 0)
	defer client.Close()
	p := newFakeProvider()
	c := newTestCache(p, testZones("UTC"), newFakeClock(), func(o *Options) {
		o.Shared = NewRedisStore(client, "test:")
	})
	if !c.Refresh(context.Background(), "UTC") {
		t.Fatalf("refresh failed with redis down")
	}
	wantCalls(t, p, 1)
}
