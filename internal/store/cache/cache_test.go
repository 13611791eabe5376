package cache

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store/memory"
)

// countingStore counts reads that reach the backing store.
type countingStore struct {
	*memory.Store
	gets int
}

func (c *countingStore) GetChannelConfig(ctx context.Context, instanceName string, channel model.ChannelType) (*model.ChannelRecord, error) {
	c.gets++
	return c.Store.GetChannelConfig(ctx, instanceName, channel)
}

func newTestCache(t *testing.T) (*Store, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backing := &countingStore{Store: memory.New()}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return New(backing, client, time.Minute, logger), backing, mr
}

func TestCache_ReadThrough(t *testing.T) {
	s, backing, _ := newTestCache(t)
	ctx := context.Background()

	rec := &model.ChannelRecord{InstanceName: "shop-42", Channel: model.ChannelNATS, ChannelConfig: model.ChannelConfig{Enabled: true}}
	if err := backing.Store.SetChannelConfig(ctx, rec); err != nil {
		t.Fatalf("seed: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := s.GetChannelConfig(ctx, "shop-42", model.ChannelNATS)
		if err != nil {
			t.Fatalf("get #%d: %v", i, err)
		}
		if !got.Enabled {
			t.Fatalf("get #%d: expected enabled record", i)
		}
	}
	if backing.gets != 1 {
		t.Fatalf("expected 1 backing read, got %d", backing.gets)
	}
}

func TestCache_WriteRefreshesEntry(t *testing.T) {
	s, backing, _ := newTestCache(t)
	ctx := context.Background()

	rec := &model.ChannelRecord{InstanceName: "shop-42", Channel: model.ChannelWebhook,
		ChannelConfig: model.ChannelConfig{Enabled: true, Webhook: &model.WebhookSettings{URL: "http://a"}}}
	if err := s.SetChannelConfig(ctx, rec); err != nil {
		t.Fatalf("set: %v", err)
	}
	rec2 := &model.ChannelRecord{InstanceName: "shop-42", Channel: model.ChannelWebhook,
		ChannelConfig: model.ChannelConfig{Enabled: true, Webhook: &model.WebhookSettings{URL: "http://b"}}}
	if err := s.SetChannelConfig(ctx, rec2); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := s.GetChannelConfig(ctx, "shop-42", model.ChannelWebhook)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Webhook == nil || got.Webhook.URL != "http://b" {
		t.Fatalf("expected refreshed entry, got %+v", got.Webhook)
	}
	if backing.gets != 0 {
		t.Fatalf("expected cache hit, got %d backing reads", backing.gets)
	}
}

func TestCache_NotFoundIsNotCached(t *testing.T) {
	s, backing, _ := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := s.GetChannelConfig(ctx, "ghost", model.ChannelSQS); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if backing.gets != 2 {
		t.Fatalf("expected 2 backing reads, got %d", backing.gets)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	s, backing, mr := newTestCache(t)
	ctx := context.Background()

	rec := &model.ChannelRecord{InstanceName: "a", Channel: model.ChannelSQS}
	if err := s.SetChannelConfig(ctx, rec); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := s.GetChannelConfig(ctx, "a", model.ChannelSQS); err != nil {
		t.Fatalf("get: %v", err)
	}
	if backing.gets != 1 {
		t.Fatalf("expected expired entry to fall through, got %d backing reads", backing.gets)
	}
}

func TestCache_RedisDownFallsBack(t *testing.T) {
	s, backing, mr := newTestCache(t)
	ctx := context.Background()

	rec := &model.ChannelRecord{InstanceName: "a", Channel: model.ChannelNATS, ChannelConfig: model.ChannelConfig{Enabled: true}}
	if err := backing.Store.SetChannelConfig(ctx, rec); err != nil {
		t.Fatalf("seed: %v", err)
	}
	mr.Close()

	got, err := s.GetChannelConfig(ctx, "a", model.ChannelNATS)
	if err != nil {
		t.Fatalf("expected fallback read to succeed, got %v", err)
	}
	if !got.Enabled {
		t.Fatal("expected record from backing store")
	}
}

func TestCache_CorruptEntryDropped(t *testing.T) {
	s, backing, mr := newTestCache(t)
	ctx := context.Background()

	rec := &model.ChannelRecord{InstanceName: "a", Channel: model.ChannelNATS}
	if err := backing.Store.SetChannelConfig(ctx, rec); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := mr.Set(cacheKey("a", model.ChannelNATS), "{garbage"); err != nil {
		t.Fatalf("miniredis set: %v", err)
	}

	if _, err := s.GetChannelConfig(ctx, "a", model.ChannelNATS); err != nil {
		t.Fatalf("get: %v", err)
	}
	if backing.gets != 1 {
		t.Fatalf("expected corrupt entry to fall through, got %d backing reads", backing.gets)
	}
}
