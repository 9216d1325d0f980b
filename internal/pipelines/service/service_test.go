package service

import (
	"context"
	"testing"

	"conviaq_backend/internal/pipelines/repository"
	"conviaq_backend/internal/pipelines/transport"
	"conviaq_backend/platform/apperr"
	"conviaq_backend/platform/logger"
)

type fakeStore struct {
	pipelines map[int64]repository.Pipeline
	stages    map[int64]repository.Stage
	leadCount map[int64]int64

	nextID  int64
	deleted []int64
	orders  map[int64][]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pipelines: make(map[int64]repository.Pipeline),
		stages:    make(map[int64]repository.Stage),
		leadCount: make(map[int64]int64),
		nextID:    100,
		orders:    make(map[int64][]int64),
	}
}

func (f *fakeStore) Create(ctx context.Context, tenantID *int64, name string) (repository.Pipeline, error) {
	f.nextID++
	p := repository.Pipeline{ID: f.nextID, TenantID: tenantID, Name: name}
	f.pipelines[p.ID] = p
	return p, nil
}

func (f *fakeStore) GetByID(ctx context.Context, pipelineID int64) (repository.Pipeline, error) {
	p, ok := f.pipelines[pipelineID]
	if !ok {
		return repository.Pipeline{}, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) ListForTenant(ctx context.Context, tenantID int64) ([]repository.Pipeline, error) {
	var items []repository.Pipeline
	for _, p := range f.pipelines {
		if p.TenantID == nil || *p.TenantID == tenantID {
			items = append(items, p)
		}
	}
	return items, nil
}

func (f *fakeStore) Rename(ctx context.Context, pipelineID int64, name string) (repository.Pipeline, error) {
	p, ok := f.pipelines[pipelineID]
	if !ok {
		return repository.Pipeline{}, repository.ErrNotFound
	}
	p.Name = name
	f.pipelines[pipelineID] = p
	return p, nil
}

func (f *fakeStore) Delete(ctx context.Context, pipelineID int64) error {
	if _, ok := f.pipelines[pipelineID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.pipelines, pipelineID)
	f.deleted = append(f.deleted, pipelineID)
	return nil
}

func (f *fakeStore) CountLeads(ctx context.Context, pipelineID int64) (int64, error) {
	return f.leadCount[pipelineID], nil
}

func (f *fakeStore) ListStages(ctx context.Context, pipelineID int64) ([]repository.Stage, error) {
	var items []repository.Stage
	for _, s := range f.stages {
		if s.PipelineID == pipelineID {
			items = append(items, s)
		}
	}
	return items, nil
}

func (f *fakeStore) CreateStage(ctx context.Context, params repository.CreateStageParams) (repository.Stage, error) {
	f.nextID++
	s := repository.Stage{
		ID:         f.nextID,
		PipelineID: params.PipelineID,
		Name:       params.Name,
		StageKey:   params.StageKey,
		Color:      params.Color,
		IsFinal:    params.IsFinal,
	}
	f.stages[s.ID] = s
	return s, nil
}

func (f *fakeStore) UpdateStage(ctx context.Context, stageID int64, params repository.UpdateStageParams) (repository.Stage, error) {
	s, ok := f.stages[stageID]
	if !ok {
		return repository.Stage{}, repository.ErrStageNotFound
	}
	if params.Name != nil {
		s.Name = *params.Name
	}
	if params.Color != nil {
		s.Color = *params.Color
	}
	if params.IsFinal != nil {
		s.IsFinal = *params.IsFinal
	}
	f.stages[stageID] = s
	return s, nil
}

func (f *fakeStore) DeleteStage(ctx context.Context, stageID int64) error {
	if _, ok := f.stages[stageID]; !ok {
		return repository.ErrStageNotFound
	}
	delete(f.stages, stageID)
	return nil
}

func (f *fakeStore) CountStageLeads(ctx context.Context, stageID int64) (int64, error) {
	return f.leadCount[stageID], nil
}

func (f *fakeStore) ReorderStages(ctx context.Context, pipelineID int64, orderedIDs []int64) error {
	f.orders[pipelineID] = orderedIDs
	return nil
}

func int64Ptr(v int64) *int64 { return &v }

func seed() *fakeStore {
	store := newFakeStore()
	store.pipelines[1] = repository.Pipeline{ID: 1, TenantID: int64Ptr(1), Name: "Ventas"}
	store.pipelines[2] = repository.Pipeline{ID: 2, TenantID: int64Ptr(2), Name: "Ajeno"}
	store.pipelines[3] = repository.Pipeline{ID: 3, TenantID: nil, Name: "Plantilla"}
	return store
}

func newTestService(store *fakeStore) *Service {
	return New(store, logger.New("test"))
}

func TestGetHidesForeignPipeline(t *testing.T) {
	svc := newTestService(seed())

	_, err := svc.Get(context.Background(), Caller{TenantID: 1}, 2)
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("kind = %v, want not found, err = %v", apperr.GetKind(err), err)
	}
}

func TestGetUniversalReadableByAnyTenant(t *testing.T) {
	svc := newTestService(seed())

	detail, err := svc.Get(context.Background(), Caller{TenantID: 1}, 3)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !detail.Universal {
		t.Fatalf("pipeline 3 should be universal")
	}
}

func TestRenameUniversalRequiresSuperadmin(t *testing.T) {
	svc := newTestService(seed())

	_, err := svc.Rename(context.Background(), Caller{TenantID: 1}, 3, "Nueva")
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("kind = %v, want forbidden, err = %v", apperr.GetKind(err), err)
	}

	renamed, err := svc.Rename(context.Background(), Caller{TenantID: 1, Superadmin: true}, 3, "Nueva")
	if err != nil {
		t.Fatalf("Rename as superadmin: %v", err)
	}
	if renamed.Name != "Nueva" {
		t.Fatalf("name = %q, want %q", renamed.Name, "Nueva")
	}
}

func TestCreateUniversalRequiresSuperadmin(t *testing.T) {
	store := seed()
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), Caller{TenantID: 1}, transport.CreatePipelineRequest{
		Name: "Global", Universal: true,
	})
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("kind = %v, want forbidden, err = %v", apperr.GetKind(err), err)
	}

	created, err := svc.Create(context.Background(), Caller{TenantID: 1, Superadmin: true}, transport.CreatePipelineRequest{
		Name: "Global", Universal: true,
	})
	if err != nil {
		t.Fatalf("Create universal: %v", err)
	}
	if created.TenantID != nil {
		t.Fatalf("universal pipeline must have no tenant, got %v", *created.TenantID)
	}
}

func TestCreateScopesToCallerTenant(t *testing.T) {
	store := seed()
	svc := newTestService(store)

	created, err := svc.Create(context.Background(), Caller{TenantID: 7}, transport.CreatePipelineRequest{Name: "Postventa"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.TenantID == nil || *created.TenantID != 7 {
		t.Fatalf("tenant id = %v, want 7", created.TenantID)
	}
}

func TestDeleteRejectsPipelineWithLeads(t *testing.T) {
	store := seed()
	store.leadCount[1] = 4
	svc := newTestService(store)

	err := svc.Delete(context.Background(), Caller{TenantID: 1}, 1)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("kind = %v, want conflict, err = %v", apperr.GetKind(err), err)
	}
	if len(store.deleted) != 0 {
		t.Fatalf("pipeline must not be deleted, got %v", store.deleted)
	}
}

func TestReorderStagesValidatesOrder(t *testing.T) {
	store := seed()
	svc := newTestService(store)
	ctx := context.Background()
	who := Caller{TenantID: 1}

	if err := svc.ReorderStages(ctx, who, 1, nil); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("empty order: kind = %v, want validation", apperr.GetKind(err))
	}
	if err := svc.ReorderStages(ctx, who, 1, []int64{5, 5}); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("duplicate ids: kind = %v, want validation", apperr.GetKind(err))
	}
	if err := svc.ReorderStages(ctx, who, 1, []int64{5, 6, 7}); err != nil {
		t.Fatalf("ReorderStages: %v", err)
	}
	want := []int64{5, 6, 7}
	got := store.orders[1]
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
