package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	appevents "conviaq_backend/internal/events"
	"conviaq_backend/internal/metrics/cache"
	"conviaq_backend/internal/metrics/repository"
	"conviaq_backend/platform/events"
	"conviaq_backend/platform/logger"
)

type fakeStore struct {
	stages   []repository.StageCount
	newLeads int64
	bookings int64
	messages int64

	buildCalls int
}

func (f *fakeStore) LeadsPerStage(context.Context, int64) ([]repository.StageCount, error) {
	f.buildCalls++
	return f.stages, nil
}

func (f *fakeStore) NewLeadsSince(context.Context, int64, time.Time) (int64, error) {
	return f.newLeads, nil
}

func (f *fakeStore) BookingsBetween(context.Context, int64, time.Time, time.Time) (int64, error) {
	return f.bookings, nil
}

func (f *fakeStore) MessagesSince(context.Context, int64, time.Time) (int64, error) {
	return f.messages, nil
}

func (f *fakeStore) TenantTimezone(context.Context, int64) (string, error) {
	return "America/Mexico_City", nil
}

type staticCacheConfig struct {
	url string
	ttl time.Duration
}

func (c staticCacheConfig) GetRedisURL() string               { return c.url }
func (c staticCacheConfig) GetMetricsCacheTTL() time.Duration { return c.ttl }

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.New(staticCacheConfig{url: "redis://" + mr.Addr(), ttl: time.Minute}, logger.New("development"))
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func seedStore() *fakeStore {
	return &fakeStore{
		stages: []repository.StageCount{
			{StageID: 10, StageName: "Nuevo", Position: 0, Count: 4},
			{StageID: 11, StageName: "Contactado", Position: 1, Count: 2},
		},
		newLeads: 6,
		bookings: 3,
		messages: 12,
	}
}

func TestDashboardAggregates(t *testing.T) {
	store := seedStore()
	svc := New(store, nil, logger.New("development"))

	got, err := svc.Dashboard(context.Background(), 7)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}

	if len(got.LeadsPerStage) != 2 || got.LeadsPerStage[0].Count != 4 {
		t.Errorf("leadsPerStage = %+v", got.LeadsPerStage)
	}
	if got.NewLeads7d != 6 {
		t.Errorf("newLeads7d = %d", got.NewLeads7d)
	}
	if got.BookingsToday != 3 {
		t.Errorf("bookingsToday = %d", got.BookingsToday)
	}
	if got.Messages24h != 12 {
		t.Errorf("messages24h = %d", got.Messages24h)
	}
	if got.GeneratedAt.IsZero() {
		t.Error("generatedAt is zero")
	}
}

func TestDashboardServedFromCache(t *testing.T) {
	store := seedStore()
	svc := New(store, newTestCache(t), logger.New("development"))

	first, err := svc.Dashboard(context.Background(), 7)
	if err != nil {
		t.Fatalf("first Dashboard: %v", err)
	}
	second, err := svc.Dashboard(context.Background(), 7)
	if err != nil {
		t.Fatalf("second Dashboard: %v", err)
	}

	if store.buildCalls != 1 {
		t.Fatalf("buildCalls = %d, want 1 (second call cached)", store.buildCalls)
	}
	if second.NewLeads7d != first.NewLeads7d {
		t.Errorf("cached copy differs: %d vs %d", second.NewLeads7d, first.NewLeads7d)
	}
}

func TestDashboardCacheIsPerTenant(t *testing.T) {
	store := seedStore()
	svc := New(store, newTestCache(t), logger.New("development"))

	if _, err := svc.Dashboard(context.Background(), 7); err != nil {
		t.Fatalf("tenant 7: %v", err)
	}
	if _, err := svc.Dashboard(context.Background(), 8); err != nil {
		t.Fatalf("tenant 8: %v", err)
	}

	if store.buildCalls != 2 {
		t.Fatalf("buildCalls = %d, want 2 (one per tenant)", store.buildCalls)
	}
}

func TestStageChangeInvalidatesCache(t *testing.T) {
	store := seedStore()
	svc := New(store, newTestCache(t), logger.New("development"))

	bus := events.NewInMemoryBus(logger.New("development"))
	svc.RegisterInvalidation(bus)

	if _, err := svc.Dashboard(context.Background(), 7); err != nil {
		t.Fatalf("Dashboard: %v", err)
	}

	if err := bus.PublishSync(context.Background(), appevents.LeadStageChanged{
		BaseEvent: appevents.NewBaseEvent(),
		LeadID:    100, TenantID: 7, FromStageID: 10, ToStageID: 11,
	}); err != nil {
		t.Fatalf("PublishSync: %v", err)
	}

	if _, err := svc.Dashboard(context.Background(), 7); err != nil {
		t.Fatalf("Dashboard after invalidation: %v", err)
	}
	if store.buildCalls != 2 {
		t.Fatalf("buildCalls = %d, want 2 (cache invalidated)", store.buildCalls)
	}
}

func TestForeignTenantEventKeepsCache(t *testing.T) {
	store := seedStore()
	svc := New(store, newTestCache(t), logger.New("development"))

	bus := events.NewInMemoryBus(logger.New("development"))
	svc.RegisterInvalidation(bus)

	if _, err := svc.Dashboard(context.Background(), 7); err != nil {
		t.Fatalf("Dashboard: %v", err)
	}

	if err := bus.PublishSync(context.Background(), appevents.BookingCreated{
		BaseEvent: appevents.NewBaseEvent(),
		BookingID: 1, TenantID: 99,
	}); err != nil {
		t.Fatalf("PublishSync: %v", err)
	}

	if _, err := svc.Dashboard(context.Background(), 7); err != nil {
		t.Fatalf("Dashboard after foreign event: %v", err)
	}
	if store.buildCalls != 1 {
		t.Fatalf("buildCalls = %d, want 1 (cache untouched)", store.buildCalls)
	}
}
