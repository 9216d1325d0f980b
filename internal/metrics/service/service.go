// Package service assembles the dashboard aggregates.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	appevents "conviaq_backend/internal/events"
	"conviaq_backend/internal/metrics/repository"
	"conviaq_backend/platform/apperr"
	"conviaq_backend/platform/logger"
)

// Store is the aggregate query surface the dashboard needs.
type Store interface {
	LeadsPerStage(ctx context.Context, tenantID int64) ([]repository.StageCount, error)
	NewLeadsSince(ctx context.Context, tenantID int64, since time.Time) (int64, error)
	BookingsBetween(ctx context.Context, tenantID int64, from, to time.Time) (int64, error)
	MessagesSince(ctx context.Context, tenantID int64, since time.Time) (int64, error)
	TenantTimezone(ctx context.Context, tenantID int64) (string, error)
}

// Cache holds serialized dashboards between requests. Nil disables caching.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte)
	Delete(ctx context.Context, key string)
}

// Dashboard is the aggregate snapshot served to the UI.
type Dashboard struct {
	LeadsPerStage []repository.StageCount `json:"leadsPerStage"`
	NewLeads7d    int64                   `json:"newLeads7d"`
	BookingsToday int64                   `json:"bookingsToday"`
	Messages24h   int64                   `json:"messages24h"`
	GeneratedAt   time.Time               `json:"generatedAt"`
}

type Service struct {
	store Store
	cache Cache
	log   *logger.Logger
	now   func() time.Time
}

func New(store Store, cache Cache, log *logger.Logger) *Service {
	return &Service{store: store, cache: cache, log: log, now: time.Now}
}

func cacheKey(tenantID int64) string {
	return fmt.Sprintf("metrics:dashboard:%d", tenantID)
}

// Dashboard returns the tenant's aggregate snapshot, served from cache when
// a fresh copy exists. The four aggregates are queried concurrently.
func (s *Service) Dashboard(ctx context.Context, tenantID int64) (Dashboard, error) {
	key := cacheKey(tenantID)
	if s.cache != nil {
		if payload, ok := s.cache.Get(ctx, key); ok {
			var cached Dashboard
			if err := json.Unmarshal(payload, &cached); err == nil {
				return cached, nil
			}
			// A corrupt entry falls through to a rebuild.
			s.cache.Delete(ctx, key)
		}
	}

	dashboard, err := s.build(ctx, tenantID)
	if err != nil {
		return Dashboard{}, apperr.Wrap(apperr.KindInternal, "could not build dashboard", err)
	}

	if s.cache != nil {
		if payload, err := json.Marshal(dashboard); err == nil {
			s.cache.Set(ctx, key, payload)
		}
	}
	return dashboard, nil
}

func (s *Service) build(ctx context.Context, tenantID int64) (Dashboard, error) {
	now := s.now()

	timezone, err := s.store.TenantTimezone(ctx, tenantID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("tenant timezone: %w", err)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	var dashboard Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stages, err := s.store.LeadsPerStage(gctx, tenantID)
		if err != nil {
			return err
		}
		dashboard.LeadsPerStage = stages
		return nil
	})
	g.Go(func() error {
		count, err := s.store.NewLeadsSince(gctx, tenantID, now.AddDate(0, 0, -7))
		if err != nil {
			return err
		}
		dashboard.NewLeads7d = count
		return nil
	})
	g.Go(func() error {
		count, err := s.store.BookingsBetween(gctx, tenantID, dayStart, dayStart.AddDate(0, 0, 1))
		if err != nil {
			return err
		}
		dashboard.BookingsToday = count
		return nil
	})
	g.Go(func() error {
		count, err := s.store.MessagesSince(gctx, tenantID, now.Add(-24*time.Hour))
		if err != nil {
			return err
		}
		dashboard.Messages24h = count
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	if dashboard.LeadsPerStage == nil {
		dashboard.LeadsPerStage = []repository.StageCount{}
	}
	dashboard.GeneratedAt = now
	return dashboard, nil
}

// RegisterInvalidation drops a tenant's cached dashboard whenever one of the
// events feeding its numbers fires.
func (s *Service) RegisterInvalidation(bus appevents.Bus) {
	if s.cache == nil {
		return
	}

	invalidate := appevents.HandlerFunc(func(ctx context.Context, event appevents.Event) error {
		tenantID, ok := tenantOf(event)
		if !ok {
			return nil
		}
		s.cache.Delete(ctx, cacheKey(tenantID))
		return nil
	})

	bus.Subscribe(appevents.LeadCreated{}.EventName(), invalidate)
	bus.Subscribe(appevents.LeadStageChanged{}.EventName(), invalidate)
	bus.Subscribe(appevents.BookingCreated{}.EventName(), invalidate)
}

func tenantOf(event appevents.Event) (int64, bool) {
	switch e := event.(type) {
	case appevents.LeadCreated:
		return e.TenantID, true
	case appevents.LeadStageChanged:
		return e.TenantID, true
	case appevents.BookingCreated:
		return e.TenantID, true
	}
	return 0, false
}
