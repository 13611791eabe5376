package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store"
)

func TestStore_GetNotFound(t *testing.T) {
	s := New()
	if _, err := s.GetChannelConfig(context.Background(), "nope", model.ChannelWebhook); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_UpsertKeepsCreatedAt(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := &model.ChannelRecord{InstanceName: "shop-42", Channel: model.ChannelNATS, ChannelConfig: model.ChannelConfig{Enabled: true}}
	if err := s.SetChannelConfig(ctx, rec); err != nil {
		t.Fatalf("set: %v", err)
	}
	created := rec.CreatedAt

	rec2 := &model.ChannelRecord{InstanceName: "shop-42", Channel: model.ChannelNATS, ChannelConfig: model.ChannelConfig{Enabled: false}}
	if err := s.SetChannelConfig(ctx, rec2); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !rec2.CreatedAt.Equal(created) {
		t.Fatalf("created_at changed on upsert: %v -> %v", created, rec2.CreatedAt)
	}

	got, err := s.GetChannelConfig(ctx, "shop-42", model.ChannelNATS)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Enabled {
		t.Fatal("expected second write to win")
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	rec := &model.ChannelRecord{
		InstanceName:  "a",
		Channel:       model.ChannelWebhook,
		ChannelConfig: model.ChannelConfig{Events: []string{"call"}, Webhook: &model.WebhookSettings{URL: "http://x"}},
	}
	if err := s.SetChannelConfig(ctx, rec); err != nil {
		t.Fatalf("set: %v", err)
	}
	rec.Events[0] = "mutated"
	rec.Webhook.URL = "http://mutated"

	got, _ := s.GetChannelConfig(ctx, "a", model.ChannelWebhook)
	if got.Events[0] != "call" || got.Webhook.URL != "http://x" {
		t.Fatalf("stored record aliased caller memory: %+v", got)
	}
}

func TestStore_ListOrdered(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, r := range []*model.ChannelRecord{
		{InstanceName: "b", Channel: model.ChannelNATS},
		{InstanceName: "a", Channel: model.ChannelWebhook},
		{InstanceName: "a", Channel: model.ChannelNATS},
	} {
		if err := s.SetChannelConfig(ctx, r); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	list, err := s.ListChannelConfigs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 records, got %d", len(list))
	}
	if list[0].InstanceName != "a" || list[0].Channel != model.ChannelNATS || list[2].InstanceName != "b" {
		t.Fatalf("unexpected order: %v %v %v", list[0], list[1], list[2])
	}
}
