package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"conviaq_backend/internal/leads/domain"
	"conviaq_backend/internal/leads/repository"
	"conviaq_backend/platform/apperr"
	"conviaq_backend/platform/events"
	"conviaq_backend/platform/logger"
)

// fakeStore is an in-memory Store for exercising the stage resolution logic
// without a database.
type fakeStore struct {
	leads     map[int64]repository.Lead
	pipelines map[int64]repository.Pipeline
	stages    map[int64]repository.Stage

	nextStageID int64
	moves       []repository.ApplyStageMoveParams
	cloned      []repository.CloneStageParams
	moveErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leads:       make(map[int64]repository.Lead),
		pipelines:   make(map[int64]repository.Pipeline),
		stages:      make(map[int64]repository.Stage),
		nextStageID: 1000,
	}
}

func (f *fakeStore) Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	return repository.Lead{}, errors.New("not implemented")
}

func (f *fakeStore) GetByID(ctx context.Context, leadID, tenantID int64) (repository.Lead, error) {
	lead, ok := f.leads[leadID]
	if !ok || lead.TenantID != tenantID {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeStore) List(ctx context.Context, params repository.ListLeadsParams) ([]repository.Lead, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) Update(ctx context.Context, leadID, tenantID int64, params repository.UpdateLeadParams) (repository.Lead, error) {
	return repository.Lead{}, errors.New("not implemented")
}

func (f *fakeStore) Delete(ctx context.Context, leadID, tenantID int64) error {
	return errors.New("not implemented")
}

func (f *fakeStore) ListStageHistory(ctx context.Context, leadID, tenantID int64) ([]repository.StageHistoryEntry, error) {
	return nil, nil
}

func (f *fakeStore) ListActivity(ctx context.Context, leadID, tenantID int64) ([]repository.ActivityEntry, error) {
	return nil, nil
}

func (f *fakeStore) FindDefaultPipeline(ctx context.Context, tenantID int64) (repository.Pipeline, error) {
	for _, p := range f.pipelines {
		if p.TenantID != nil && *p.TenantID == tenantID {
			return p, nil
		}
	}
	return repository.Pipeline{}, repository.ErrStageNotFound
}

func (f *fakeStore) GetStage(ctx context.Context, stageID int64) (repository.Stage, error) {
	stage, ok := f.stages[stageID]
	if !ok {
		return repository.Stage{}, repository.ErrStageNotFound
	}
	return stage, nil
}

func (f *fakeStore) GetPipeline(ctx context.Context, pipelineID int64) (repository.Pipeline, error) {
	pipeline, ok := f.pipelines[pipelineID]
	if !ok {
		return repository.Pipeline{}, repository.ErrStageNotFound
	}
	return pipeline, nil
}

func (f *fakeStore) FindStageByKey(ctx context.Context, pipelineID int64, stageKey string) (repository.Stage, error) {
	for _, stage := range f.stages {
		if stage.PipelineID == pipelineID && stage.StageKey != nil && *stage.StageKey == stageKey {
			return stage, nil
		}
	}
	return repository.Stage{}, repository.ErrStageNotFound
}

func (f *fakeStore) FindStageByName(ctx context.Context, pipelineID int64, name string) (repository.Stage, error) {
	for _, stage := range f.stages {
		if stage.PipelineID == pipelineID && strings.EqualFold(stage.Name, name) {
			return stage, nil
		}
	}
	return repository.Stage{}, repository.ErrStageNotFound
}

func (f *fakeStore) FindFirstStage(ctx context.Context, pipelineID int64) (repository.Stage, error) {
	var first *repository.Stage
	for _, stage := range f.stages {
		if stage.PipelineID != pipelineID {
			continue
		}
		s := stage
		if first == nil || s.Position < first.Position {
			first = &s
		}
	}
	if first == nil {
		return repository.Stage{}, repository.ErrStageNotFound
	}
	return *first, nil
}

func (f *fakeStore) CloneStage(ctx context.Context, params repository.CloneStageParams) (repository.Stage, error) {
	f.cloned = append(f.cloned, params)

	position := 0
	for _, stage := range f.stages {
		if stage.PipelineID == params.PipelineID && stage.Position >= position {
			position = stage.Position + 1
		}
	}

	f.nextStageID++
	stage := repository.Stage{
		ID:         f.nextStageID,
		PipelineID: params.PipelineID,
		Name:       params.Name,
		StageKey:   params.StageKey,
		Position:   position,
		Color:      params.Color,
	}
	f.stages[stage.ID] = stage
	return stage, nil
}

func (f *fakeStore) ApplyStageMove(ctx context.Context, params repository.ApplyStageMoveParams) error {
	if f.moveErr != nil {
		return f.moveErr
	}
	f.moves = append(f.moves, params)
	if lead, ok := f.leads[params.LeadID]; ok {
		lead.StageID = params.StageID
		f.leads[params.LeadID] = lead
	}
	return nil
}

func strPtr(s string) *string { return &s }

func newTestService(store *fakeStore) *Service {
	log := logger.New("test")
	return New(store, events.NewInMemoryBus(log), log)
}

// Fixture layout shared by the move tests:
//
//	pipeline 1 (tenant 1):  stage 10 "Nuevo" key=new pos=0, stage 11 "Contactado" key=contacted pos=1
//	pipeline 2 (tenant 2):  stage 20 "Nuevo contacto" key=new, stage 21 "Cierre" (no key)
//	pipeline 3 (universal): stage 30 "Plantilla" key=template
func seedStore() *fakeStore {
	store := newFakeStore()

	tenant1 := int64(1)
	tenant2 := int64(2)
	store.pipelines[1] = repository.Pipeline{ID: 1, TenantID: &tenant1, Name: "Ventas"}
	store.pipelines[2] = repository.Pipeline{ID: 2, TenantID: &tenant2, Name: "Ventas B"}
	store.pipelines[3] = repository.Pipeline{ID: 3, TenantID: nil, Name: "Plantilla general"}

	store.stages[10] = repository.Stage{ID: 10, PipelineID: 1, Name: "Nuevo", StageKey: strPtr("new"), Position: 0}
	store.stages[11] = repository.Stage{ID: 11, PipelineID: 1, Name: "Contactado", StageKey: strPtr("contacted"), Position: 1}
	store.stages[20] = repository.Stage{ID: 20, PipelineID: 2, Name: "Nuevo contacto", StageKey: strPtr("new"), Position: 0}
	store.stages[21] = repository.Stage{ID: 21, PipelineID: 2, Name: "Cierre", StageKey: nil, Position: 1}
	store.stages[30] = repository.Stage{ID: 30, PipelineID: 3, Name: "Plantilla", StageKey: strPtr("template"), Position: 0}

	store.leads[100] = repository.Lead{ID: 100, TenantID: 1, PipelineID: 1, StageID: 10, Name: "Cliente Uno"}

	return store
}

func TestMoveStageDirectSamePipeline(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)

	res, err := svc.MoveStage(context.Background(), MoveStageInput{
		LeadID: 100, TenantID: 1, ActorID: 5, StageID: 11,
	})
	if err != nil {
		t.Fatalf("MoveStage: %v", err)
	}
	if res.Kind != domain.ResolutionDirect {
		t.Fatalf("kind = %q, want %q", res.Kind, domain.ResolutionDirect)
	}
	if res.StageID != 11 {
		t.Fatalf("stage id = %d, want 11", res.StageID)
	}
	if res.PreviousStageID != 10 {
		t.Fatalf("previous stage id = %d, want 10", res.PreviousStageID)
	}
	if len(store.cloned) != 0 {
		t.Fatalf("unexpected clone: %+v", store.cloned)
	}
	if len(store.moves) != 1 {
		t.Fatalf("moves = %d, want 1", len(store.moves))
	}
	if store.leads[100].StageID != 11 {
		t.Fatalf("lead stage = %d, want 11", store.leads[100].StageID)
	}
}

func TestMoveStageUniversalPipelineDirect(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)

	res, err := svc.MoveStage(context.Background(), MoveStageInput{
		LeadID: 100, TenantID: 1, ActorID: 5, StageID: 30,
	})
	if err != nil {
		t.Fatalf("MoveStage: %v", err)
	}
	if res.Kind != domain.ResolutionDirect {
		t.Fatalf("kind = %q, want %q", res.Kind, domain.ResolutionDirect)
	}
	if res.StageID != 30 {
		t.Fatalf("stage id = %d, want 30 (universal stage used as-is)", res.StageID)
	}
	if len(store.cloned) != 0 {
		t.Fatalf("universal stage must not be cloned, got %+v", store.cloned)
	}
}

func TestMoveStageMapsByStageKey(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)

	// Stage 20 lives in another tenant's pipeline but shares key "new"
	// with stage 10 in the lead's pipeline.
	res, err := svc.MoveStage(context.Background(), MoveStageInput{
		LeadID: 100, TenantID: 1, ActorID: 5, StageID: 20,
	})
	if err != nil {
		t.Fatalf("MoveStage: %v", err)
	}
	if res.Kind != domain.ResolutionMapped {
		t.Fatalf("kind = %q, want %q", res.Kind, domain.ResolutionMapped)
	}
	if res.StageID != 10 {
		t.Fatalf("stage id = %d, want 10 (key match)", res.StageID)
	}
	if len(store.cloned) != 0 {
		t.Fatalf("unexpected clone: %+v", store.cloned)
	}
}

func TestMoveStageMapsByNameCaseInsensitive(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)

	// Key-less foreign stage whose name matches a local stage ignoring case.
	store.stages[22] = repository.Stage{ID: 22, PipelineID: 2, Name: "CONTACTADO", StageKey: nil, Position: 2}

	res, err := svc.MoveStage(context.Background(), MoveStageInput{
		LeadID: 100, TenantID: 1, ActorID: 5, StageID: 22,
	})
	if err != nil {
		t.Fatalf("MoveStage: %v", err)
	}
	if res.Kind != domain.ResolutionMapped {
		t.Fatalf("kind = %q, want %q", res.Kind, domain.ResolutionMapped)
	}
	if res.StageID != 11 {
		t.Fatalf("stage id = %d, want 11 (name match)", res.StageID)
	}
}

func TestMoveStageClonesWhenNoEquivalent(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)

	// Stage 21 has no key and no name match in pipeline 1.
	res, err := svc.MoveStage(context.Background(), MoveStageInput{
		LeadID: 100, TenantID: 1, ActorID: 5, StageID: 21,
	})
	if err != nil {
		t.Fatalf("MoveStage: %v", err)
	}
	if res.Kind != domain.ResolutionCloned {
		t.Fatalf("kind = %q, want %q", res.Kind, domain.ResolutionCloned)
	}
	if len(store.cloned) != 1 {
		t.Fatalf("clones = %d, want 1", len(store.cloned))
	}
	if store.cloned[0].PipelineID != 1 {
		t.Fatalf("clone pipeline = %d, want 1", store.cloned[0].PipelineID)
	}
	if store.cloned[0].Name != "Cierre" {
		t.Fatalf("clone name = %q, want %q", store.cloned[0].Name, "Cierre")
	}

	clone := store.stages[res.StageID]
	if clone.PipelineID != 1 {
		t.Fatalf("resolved stage pipeline = %d, want 1", clone.PipelineID)
	}
	if clone.Position != 2 {
		t.Fatalf("clone position = %d, want 2 (appended after existing stages)", clone.Position)
	}
	if store.leads[100].StageID != res.StageID {
		t.Fatalf("lead stage = %d, want %d", store.leads[100].StageID, res.StageID)
	}
}

func TestMoveStageClonesIntoEmptyPipelineAtPositionZero(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)

	// Pipeline 4 belongs to tenant 1 but has no stages yet; the source stage
	// carries a key and only whitespace for a name.
	tenant1 := int64(1)
	store.pipelines[4] = repository.Pipeline{ID: 4, TenantID: &tenant1, Name: "Posventa"}
	store.stages[22] = repository.Stage{ID: 22, PipelineID: 2, Name: "   ", StageKey: strPtr("followup"), Position: 2}
	store.leads[101] = repository.Lead{ID: 101, TenantID: 1, PipelineID: 4, StageID: 0, Name: "Cliente Dos"}

	res, err := svc.MoveStage(context.Background(), MoveStageInput{
		LeadID: 101, TenantID: 1, ActorID: 5, StageID: 22,
	})
	if err != nil {
		t.Fatalf("MoveStage: %v", err)
	}
	if res.Kind != domain.ResolutionCloned {
		t.Fatalf("kind = %q, want %q", res.Kind, domain.ResolutionCloned)
	}
	if len(store.cloned) != 1 {
		t.Fatalf("clones = %d, want 1", len(store.cloned))
	}
	if store.cloned[0].Name != repository.CloneStageFallbackName {
		t.Fatalf("clone name = %q, want %q", store.cloned[0].Name, repository.CloneStageFallbackName)
	}

	clone := store.stages[res.StageID]
	if clone.Position != 0 {
		t.Fatalf("clone position = %d, want 0 in an empty pipeline", clone.Position)
	}
	if clone.Name != repository.CloneStageFallbackName {
		t.Fatalf("clone row name = %q, want %q", clone.Name, repository.CloneStageFallbackName)
	}
	if store.leads[101].StageID != res.StageID {
		t.Fatalf("lead stage = %d, want %d", store.leads[101].StageID, res.StageID)
	}
}

func TestMoveStageSelfMoveStillRecorded(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)

	res, err := svc.MoveStage(context.Background(), MoveStageInput{
		LeadID: 100, TenantID: 1, ActorID: 5, StageID: 10,
	})
	if err != nil {
		t.Fatalf("MoveStage: %v", err)
	}
	if res.StageID != 10 || res.PreviousStageID != 10 {
		t.Fatalf("resolution = %+v, want self move 10 -> 10", res)
	}
	if len(store.moves) != 1 {
		t.Fatalf("moves = %d, want 1 (self move is still written)", len(store.moves))
	}
}

func TestMoveStageLeadNotFound(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)

	_, err := svc.MoveStage(context.Background(), MoveStageInput{
		LeadID: 999, TenantID: 1, ActorID: 5, StageID: 11,
	})
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("kind = %v, want not found, err = %v", apperr.GetKind(err), err)
	}
}

func TestMoveStageForeignTenantLeadNotFound(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)

	// Lead 100 belongs to tenant 1; tenant 2 must not see it.
	_, err := svc.MoveStage(context.Background(), MoveStageInput{
		LeadID: 100, TenantID: 2, ActorID: 5, StageID: 11,
	})
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("kind = %v, want not found, err = %v", apperr.GetKind(err), err)
	}
}

func TestMoveStageStageNotFound(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)

	_, err := svc.MoveStage(context.Background(), MoveStageInput{
		LeadID: 100, TenantID: 1, ActorID: 5, StageID: 777,
	})
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("kind = %v, want not found, err = %v", apperr.GetKind(err), err)
	}
}

func TestMoveStageInvalidIDs(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)

	for _, tc := range []struct {
		name    string
		leadID  int64
		stageID int64
	}{
		{"zero lead id", 0, 11},
		{"negative lead id", -3, 11},
		{"zero stage id", 100, 0},
		{"negative stage id", 100, -1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.MoveStage(context.Background(), MoveStageInput{
				LeadID: tc.leadID, TenantID: 1, ActorID: 5, StageID: tc.stageID,
			})
			if apperr.GetKind(err) != apperr.KindBadRequest {
				t.Fatalf("kind = %v, want bad request, err = %v", apperr.GetKind(err), err)
			}
		})
	}
	if len(store.moves) != 0 {
		t.Fatalf("moves = %d, want 0", len(store.moves))
	}
}

func TestMoveStageDefaultsSource(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)

	if _, err := svc.MoveStage(context.Background(), MoveStageInput{
		LeadID: 100, TenantID: 1, ActorID: 5, StageID: 11,
	}); err != nil {
		t.Fatalf("MoveStage: %v", err)
	}
	if got := store.moves[0].Source; got != DefaultMoveSource {
		t.Fatalf("source = %q, want %q", got, DefaultMoveSource)
	}

	if _, err := svc.MoveStage(context.Background(), MoveStageInput{
		LeadID: 100, TenantID: 1, ActorID: 5, StageID: 10, Source: "automation",
	}); err != nil {
		t.Fatalf("MoveStage: %v", err)
	}
	if got := store.moves[1].Source; got != "automation" {
		t.Fatalf("source = %q, want %q", got, "automation")
	}
}

func TestMoveStageMoveFailureSurfacesInternal(t *testing.T) {
	store := seedStore()
	store.moveErr = errors.New("connection reset")
	svc := newTestService(store)

	_, err := svc.MoveStage(context.Background(), MoveStageInput{
		LeadID: 100, TenantID: 1, ActorID: 5, StageID: 11,
	})
	if apperr.GetKind(err) != apperr.KindInternal {
		t.Fatalf("kind = %v, want internal, err = %v", apperr.GetKind(err), err)
	}
	if err.Error() == "connection reset" {
		t.Fatalf("raw database error must not surface: %v", err)
	}
}
