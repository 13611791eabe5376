// Package memory implements store.ConfigStore in process memory. Nothing
// survives a restart; serve falls back to it when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store"
)

type key struct {
	instance string
	channel  model.ChannelType
}

// Store is a mutex-guarded map of channel records.
type Store struct {
	mu      sync.RWMutex
	records map[key]*model.ChannelRecord
	now     func() time.Time
}

var _ store.ConfigStore = (*Store)(nil)

func New() *Store {
	return &Store{
		records: make(map[key]*model.ChannelRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) GetChannelConfig(_ context.Context, instanceName string, channel model.ChannelType) (*model.ChannelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key{instanceName, channel}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) SetChannelConfig(_ context.Context, rec *model.ChannelRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	k := key{rec.InstanceName, rec.Channel}
	if existing, ok := s.records[k]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	s.records[k] = rec.Clone()
	return nil
}

func (s *Store) ListChannelConfigs(_ context.Context) ([]*model.ChannelRecord, error) {
	s.mu.RLock()
	out := make([]*model.ChannelRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].InstanceName != out[j].InstanceName {
			return out[i].InstanceName < out[j].InstanceName
		}
		return out[i].Channel < out[j].Channel
	})
	return out, nil
}

func (s *Store) Close() error { return nil }
