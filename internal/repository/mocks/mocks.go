package mocks

import (
	"context"

	"github.com/rpggio/feedsync/internal/domain/contact"
	"github.com/rpggio/feedsync/internal/domain/timeline"
	"github.com/rpggio/feedsync/internal/domain/watermark"
	"github.com/rpggio/feedsync/internal/remote"
	"github.com/stretchr/testify/mock"
)

// TimelineStore is a mock for timeline.Store.
type TimelineStore struct {
	mock.Mock
}

func (m *TimelineStore) WriteTimelineBatch(ctx context.Context, records []timeline.Record) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *TimelineStore) ExistingActivityIDs(ctx context.Context, minTimestamp int64) (map[string]struct{}, error) {
	args := m.Called(ctx, minTimestamp)
	if ids, ok := args.Get(0).(map[string]struct{}); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TimelineStore) PruneTimeline(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *TimelineStore) List(ctx context.Context, opts timeline.ListOptions) ([]timeline.Record, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]timeline.Record); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TimelineStore) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// WatermarkStore is a mock for watermark.Store.
type WatermarkStore struct {
	mock.Mock
}

func (m *WatermarkStore) Get(ctx context.Context, kind watermark.Kind) (watermark.Watermark, error) {
	args := m.Called(ctx, kind)
	return args.Get(0).(watermark.Watermark), args.Error(1)
}

func (m *WatermarkStore) Set(ctx context.Context, kind watermark.Kind, oldest, newest *int64) error {
	args := m.Called(ctx, kind, oldest, newest)
	return args.Error(0)
}

// ContactResolver is a mock for contact.Resolver.
type ContactResolver struct {
	mock.Mock
}

func (m *ContactResolver) LookupByAddress(ctx context.Context, address string) (*contact.Match, error) {
	args := m.Called(ctx, address)
	if match, ok := args.Get(0).(*contact.Match); ok {
		return match, args.Error(1)
	}
	return nil, args.Error(1)
}

// Fetcher is a mock for remote.Fetcher.
type Fetcher struct {
	mock.Mock
}

func (m *Fetcher) FetchActivities(ctx context.Context, f remote.Filter) (*remote.Batch, error) {
	args := m.Called(ctx, f)
	if batch, ok := args.Get(0).(*remote.Batch); ok {
		return batch, args.Error(1)
	}
	return nil, args.Error(1)
}
