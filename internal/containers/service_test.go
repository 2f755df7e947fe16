package containers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freshroute/freshroute-backend/internal/crowd"
	"github.com/freshroute/freshroute-backend/internal/shelves"
	"github.com/freshroute/freshroute-backend/pkg/db/models"
	"github.com/freshroute/freshroute-backend/pkg/enums"
	pkgerrors "github.com/freshroute/freshroute-backend/pkg/errors"
	"github.com/freshroute/freshroute-backend/pkg/outbox"
	"github.com/freshroute/freshroute-backend/pkg/types"
)

type stubDB struct{}

func (stubDB) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubContainerRepo struct {
	rows map[uuid.UUID]*models.ContainerOps
}

func newStubContainerRepo() *stubContainerRepo {
	return &stubContainerRepo{rows: make(map[uuid.UUID]*models.ContainerOps)}
}

func (s *stubContainerRepo) CreateTx(_ *gorm.DB, container *models.ContainerOps) error {
	if container.ID == uuid.Nil {
		container.ID = uuid.New()
	}
	copied := *container
	s.rows[container.ID] = &copied
	return nil
}

func (s *stubContainerRepo) FindByID(_ context.Context, id uuid.UUID) (*models.ContainerOps, error) {
	row, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (s *stubContainerRepo) FindByLabel(_ context.Context, label string) (*models.ContainerOps, error) {
	for _, row := range s.rows {
		if row.Label == label {
			copied := *row
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *stubContainerRepo) FindByIDForUpdate(_ *gorm.DB, id uuid.UUID) (*models.ContainerOps, error) {
	row, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (s *stubContainerRepo) SaveTx(_ *gorm.DB, container *models.ContainerOps) error {
	copied := *container
	s.rows[container.ID] = &copied
	return nil
}

func (s *stubContainerRepo) List(_ context.Context, opts listQuery) ([]models.ContainerOps, error) {
	out := []models.ContainerOps{}
	for _, row := range s.rows {
		if opts.state != nil && row.State != *opts.state {
			continue
		}
		out = append(out, *row)
	}
	if opts.limit > 0 && len(out) > opts.limit {
		out = out[:opts.limit]
	}
	return out, nil
}

type stubEmitter struct {
	events []outbox.DomainEvent
}

func (s *stubEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type recordedBump struct {
	shelfID  uuid.UUID
	activity enums.CrowdActivity
	delta    int
}

type stubBumper struct {
	bumps []recordedBump
}

func (s *stubBumper) Bump(_ context.Context, shelfID uuid.UUID, activity enums.CrowdActivity, delta int) (*crowd.Status, error) {
	s.bumps = append(s.bumps, recordedBump{shelfID: shelfID, activity: activity, delta: delta})
	return &crowd.Status{ShelfID: shelfID}, nil
}

type stubLocator struct {
	suggestion *shelves.Suggestion
	err        error
}

func (s *stubLocator) FindSlot(_ context.Context) (*shelves.Suggestion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.suggestion, nil
}

type stubShelfFinder struct {
	shelves map[uuid.UUID]*models.Shelf
}

func (s *stubShelfFinder) FindByID(_ context.Context, shelfID uuid.UUID) (*models.Shelf, error) {
	return s.shelves[shelfID], nil
}

type containerFixture struct {
	svc     Service
	repo    *stubContainerRepo
	emitter *stubEmitter
	bumper  *stubBumper
	locator *stubLocator
	finder  *stubShelfFinder
}

func newContainerFixture(t *testing.T) *containerFixture {
	t.Helper()
	shelfID := uuid.New()
	fixture := &containerFixture{
		repo:    newStubContainerRepo(),
		emitter: &stubEmitter{},
		bumper:  &stubBumper{},
		locator: &stubLocator{suggestion: &shelves.Suggestion{ShelfID: shelfID, SlotID: 1, CrowdScore: 0.5}},
		finder: &stubShelfFinder{shelves: map[uuid.UUID]*models.Shelf{
			shelfID: {ID: shelfID, Code: "A-01", Zone: "Z1", Aisle: "A1", SlotCapacity: 6, Active: true},
		}},
	}
	svc, err := NewService(ServiceParams{
		DB:      stubDB{},
		Repo:    fixture.repo,
		Outbox:  fixture.emitter,
		Crowd:   fixture.bumper,
		Locator: fixture.locator,
		Shelves: fixture.finder,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	fixture.svc = svc
	return fixture
}

func (f *containerFixture) shelfID() uuid.UUID {
	for id := range f.finder.shelves {
		return id
	}
	return uuid.Nil
}

func (f *containerFixture) seed(t *testing.T, state enums.ContainerState) *models.ContainerOps {
	t.Helper()
	container := &models.ContainerOps{
		ID:    uuid.New(),
		Label: "FR-" + uuid.NewString()[:8],
		State: state,
		Area:  areaForState(state),
	}
	if state == enums.ContainerStateShelved {
		shelfID := f.shelfID()
		slot := 1
		container.ShelfID = &shelfID
		container.SlotID = &slot
	}
	copied := *container
	f.repo.rows[container.ID] = &copied
	return container
}

func TestIntakeCreatesArrivedContainer(t *testing.T) {
	f := newContainerFixture(t)

	container, err := f.svc.Intake(context.Background(), IntakeInput{Label: "FR-1001", Actor: "gate-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if container.State != enums.ContainerStateArrived {
		t.Fatalf("expected arrived, got %s", container.State)
	}
	if container.Area != enums.LocationAreaIntake {
		t.Fatalf("expected intake area, got %s", container.Area)
	}
	if len(container.AuditTrail) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(container.AuditTrail))
	}
	if container.AuditTrail[0].Actor != "gate-1" {
		t.Fatalf("audit entry missing actor")
	}
}

func TestIntakeValidation(t *testing.T) {
	f := newContainerFixture(t)

	if _, err := f.svc.Intake(context.Background(), IntakeInput{Label: "  "}); err == nil {
		t.Fatalf("expected validation error for empty label")
	}

	if _, err := f.svc.Intake(context.Background(), IntakeInput{Label: "FR-1002"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := f.svc.Intake(context.Background(), IntakeInput{Label: "FR-1002"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for duplicate label, got %v", err)
	}
}

func TestAdvanceRejectsInvalidEdge(t *testing.T) {
	f := newContainerFixture(t)
	container := f.seed(t, enums.ContainerStateArrived)

	_, err := f.svc.Advance(context.Background(), AdvanceInput{
		ContainerID: container.ID,
		ToState:     enums.ContainerStateWeighed,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestAdvanceTerminalStatesAreFinal(t *testing.T) {
	f := newContainerFixture(t)
	for _, terminal := range []enums.ContainerState{enums.ContainerStateDispatched, enums.ContainerStateRejected} {
		container := f.seed(t, terminal)
		_, err := f.svc.Advance(context.Background(), AdvanceInput{
			ContainerID: container.ID,
			ToState:     enums.ContainerStateCleaning,
		})
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
			t.Fatalf("expected %s to be terminal, got %v", terminal, err)
		}
	}
}

func TestAdvanceUnknownContainer(t *testing.T) {
	f := newContainerFixture(t)
	_, err := f.svc.Advance(context.Background(), AdvanceInput{
		ContainerID: uuid.New(),
		ToState:     enums.ContainerStateCleaning,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAdvanceRejectionEmitsEvent(t *testing.T) {
	f := newContainerFixture(t)
	container := f.seed(t, enums.ContainerStateArrived)

	updated, err := f.svc.Advance(context.Background(), AdvanceInput{
		ContainerID: container.ID,
		ToState:     enums.ContainerStateRejected,
		Actor:       "inspector-2",
		Reason:      "mold",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Area != enums.LocationAreaOut {
		t.Fatalf("rejected container should leave the building, got %s", updated.Area)
	}
	if len(f.emitter.events) != 1 || f.emitter.events[0].EventType != enums.OutboxEventContainerRejected {
		t.Fatalf("expected container.rejected event, got %+v", f.emitter.events)
	}
}

func TestAdvanceWeighedRequiresWeight(t *testing.T) {
	f := newContainerFixture(t)
	container := f.seed(t, enums.ContainerStateWeighing)

	_, err := f.svc.Advance(context.Background(), AdvanceInput{
		ContainerID: container.ID,
		ToState:     enums.ContainerStateWeighed,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	weight := decimal.NewFromFloat(12.750)
	updated, err := f.svc.Advance(context.Background(), AdvanceInput{
		ContainerID: container.ID,
		ToState:     enums.ContainerStateWeighed,
		Actor:       "scale-1",
		WeightKg:    &weight,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updated.WeightHistory) != 1 {
		t.Fatalf("expected one weight entry, got %d", len(updated.WeightHistory))
	}
	if !updated.WeightHistory[0].ValueKg.Equal(weight) {
		t.Fatalf("unexpected weight %s", updated.WeightHistory[0].ValueKg)
	}
}

func TestAdvanceSortedRequiresGrade(t *testing.T) {
	f := newContainerFixture(t)
	container := f.seed(t, enums.ContainerStateSorting)

	_, err := f.svc.Advance(context.Background(), AdvanceInput{
		ContainerID: container.ID,
		ToState:     enums.ContainerStateSorted,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	updated, err := f.svc.Advance(context.Background(), AdvanceInput{
		ContainerID: container.ID,
		ToState:     enums.ContainerStateSorted,
		Grade:       "A",
		Category:    "tomato",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Sorting == nil || updated.Sorting.Grade != "A" {
		t.Fatalf("expected sorting record, got %+v", updated.Sorting)
	}
}

func TestAdvanceShelvedWithExplicitSlot(t *testing.T) {
	f := newContainerFixture(t)
	container := f.seed(t, enums.ContainerStateSorted)
	shelfID := f.shelfID()
	slot := 3

	updated, err := f.svc.Advance(context.Background(), AdvanceInput{
		ContainerID: container.ID,
		ToState:     enums.ContainerStateShelved,
		ShelfID:     &shelfID,
		SlotID:      &slot,
		Actor:       "stager-7",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Area != enums.LocationAreaShelf {
		t.Fatalf("expected shelf area, got %s", updated.Area)
	}
	if updated.ShelfID == nil || *updated.ShelfID != shelfID || updated.SlotID == nil || *updated.SlotID != slot {
		t.Fatalf("location not updated in lockstep: %+v", updated.Location())
	}
	if updated.Zone == nil || *updated.Zone != "Z1" {
		t.Fatalf("expected zone from shelf registry")
	}
	if len(f.emitter.events) != 1 || f.emitter.events[0].EventType != enums.OutboxEventContainerShelved {
		t.Fatalf("expected container.shelved event")
	}
	if len(f.bumper.bumps) != 1 || f.bumper.bumps[0].activity != enums.CrowdActivitySort || f.bumper.bumps[0].delta != 1 {
		t.Fatalf("expected sort bump on shelving, got %+v", f.bumper.bumps)
	}
}

func TestAdvanceShelvedRequiresSlotWithShelf(t *testing.T) {
	f := newContainerFixture(t)
	container := f.seed(t, enums.ContainerStateSorted)
	shelfID := f.shelfID()

	_, err := f.svc.Advance(context.Background(), AdvanceInput{
		ContainerID: container.ID,
		ToState:     enums.ContainerStateShelved,
		ShelfID:     &shelfID,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdvanceShelvedFallsBackToLocator(t *testing.T) {
	f := newContainerFixture(t)
	container := f.seed(t, enums.ContainerStateSorted)

	updated, err := f.svc.Advance(context.Background(), AdvanceInput{
		ContainerID: container.ID,
		ToState:     enums.ContainerStateShelved,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ShelfID == nil || *updated.ShelfID != f.locator.suggestion.ShelfID {
		t.Fatalf("expected locator shelf, got %+v", updated.ShelfID)
	}
	if updated.SlotID == nil || *updated.SlotID != f.locator.suggestion.SlotID {
		t.Fatalf("expected locator slot")
	}
}

func TestAdvancePickedBumpsAndClearsLocation(t *testing.T) {
	f := newContainerFixture(t)
	container := f.seed(t, enums.ContainerStateShelved)
	fromShelf := *container.ShelfID

	updated, err := f.svc.Advance(context.Background(), AdvanceInput{
		ContainerID: container.ID,
		ToState:     enums.ContainerStatePicked,
		Actor:       "picker-4",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Area != enums.LocationAreaOut || updated.ShelfID != nil || updated.SlotID != nil {
		t.Fatalf("picked container should clear shelf location, got %+v", updated.Location())
	}
	if len(f.bumper.bumps) != 1 {
		t.Fatalf("expected one bump, got %d", len(f.bumper.bumps))
	}
	bump := f.bumper.bumps[0]
	if bump.shelfID != fromShelf || bump.activity != enums.CrowdActivityPick || bump.delta != 1 {
		t.Fatalf("expected pick bump on source shelf, got %+v", bump)
	}
}

func TestAdvanceDispatchedEmitsFinalWeight(t *testing.T) {
	f := newContainerFixture(t)
	container := f.seed(t, enums.ContainerStatePackaged)
	weight := decimal.NewFromFloat(11.2)
	stored := f.repo.rows[container.ID]
	stored.WeightHistory = append(stored.WeightHistory, types.WeightEntry{
		ValueKg:    weight,
		Actor:      "scale-1",
		RecordedAt: time.Now().UTC(),
	})

	updated, err := f.svc.Advance(context.Background(), AdvanceInput{
		ContainerID: container.ID,
		ToState:     enums.ContainerStateDispatched,
		Actor:       "loader-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.DispatchedAt == nil {
		t.Fatalf("expected dispatched timestamp")
	}
	if len(f.emitter.events) != 1 || f.emitter.events[0].EventType != enums.OutboxEventContainerDispatched {
		t.Fatalf("expected container.dispatched event")
	}
}

func TestAdvanceAppendsAuditTrailEveryTransition(t *testing.T) {
	f := newContainerFixture(t)
	container := f.seed(t, enums.ContainerStateArrived)

	steps := []enums.ContainerState{
		enums.ContainerStateCleaning,
		enums.ContainerStateCleaned,
		enums.ContainerStateWeighing,
	}
	for _, step := range steps {
		if _, err := f.svc.Advance(context.Background(), AdvanceInput{
			ContainerID: container.ID,
			ToState:     step,
			Actor:       "ops",
		}); err != nil {
			t.Fatalf("advance to %s failed: %v", step, err)
		}
	}

	final, err := f.svc.Get(context.Background(), container.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(final.AuditTrail) != len(steps) {
		t.Fatalf("expected %d audit entries, got %d", len(steps), len(final.AuditTrail))
	}
	if final.AuditTrail[0].FromState != enums.ContainerStateArrived {
		t.Fatalf("first audit entry should start from arrived")
	}
	if final.AuditTrail[len(final.AuditTrail)-1].ToState != enums.ContainerStateWeighing {
		t.Fatalf("last audit entry should land on weighing")
	}
}

func TestGetUnknownContainer(t *testing.T) {
	f := newContainerFixture(t)
	_, err := f.svc.Get(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
