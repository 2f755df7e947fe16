package picktasks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freshroute/freshroute-backend/internal/crowd"
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

type stubTaskRepo struct {
	rows map[uuid.UUID]*models.PickTask
}

func newStubTaskRepo() *stubTaskRepo {
	return &stubTaskRepo{rows: make(map[uuid.UUID]*models.PickTask)}
}

func (s *stubTaskRepo) CreateTx(_ *gorm.DB, task *models.PickTask) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	copied := *task
	s.rows[task.ID] = &copied
	return nil
}

func (s *stubTaskRepo) FindByID(_ context.Context, id uuid.UUID) (*models.PickTask, error) {
	row, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (s *stubTaskRepo) FindByIDForUpdate(_ *gorm.DB, id uuid.UUID) (*models.PickTask, error) {
	row, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (s *stubTaskRepo) SaveTx(_ *gorm.DB, task *models.PickTask) error {
	copied := *task
	s.rows[task.ID] = &copied
	return nil
}

func (s *stubTaskRepo) List(_ context.Context, opts listQuery) ([]models.PickTask, error) {
	out := []models.PickTask{}
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

type stubContainerReader struct {
	containers map[uuid.UUID]*models.ContainerOps
}

func (s *stubContainerReader) FindByID(_ context.Context, id uuid.UUID) (*models.ContainerOps, error) {
	return s.containers[id], nil
}

type recordedBump struct {
	shelfID  uuid.UUID
	activity enums.CrowdActivity
	delta    int
}

type stubCrowd struct {
	scores map[uuid.UUID]float64
	bumps  []recordedBump
}

func (s *stubCrowd) Bump(_ context.Context, shelfID uuid.UUID, activity enums.CrowdActivity, delta int) (*crowd.Status, error) {
	s.bumps = append(s.bumps, recordedBump{shelfID: shelfID, activity: activity, delta: delta})
	return &crowd.Status{ShelfID: shelfID}, nil
}

func (s *stubCrowd) ComputeShelfCrowd(_ context.Context, shelfID uuid.UUID, _ *float64) (*crowd.Status, error) {
	return &crowd.Status{ShelfID: shelfID, Score: s.scores[shelfID]}, nil
}

type taskFixture struct {
	svc        Service
	repo       *stubTaskRepo
	emitter    *stubEmitter
	containers *stubContainerReader
	crowd      *stubCrowd
	shelfA     uuid.UUID
	shelfB     uuid.UUID
	containerA uuid.UUID
	containerB uuid.UUID
}

func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()
	f := &taskFixture{
		repo:    newStubTaskRepo(),
		emitter: &stubEmitter{},
		shelfA:  uuid.New(),
		shelfB:  uuid.New(),
	}
	f.containerA = uuid.New()
	f.containerB = uuid.New()
	slotA, slotB := 2, 5
	f.containers = &stubContainerReader{containers: map[uuid.UUID]*models.ContainerOps{
		f.containerA: {ID: f.containerA, State: enums.ContainerStateShelved, ShelfID: &f.shelfA, SlotID: &slotA},
		f.containerB: {ID: f.containerB, State: enums.ContainerStateShelved, ShelfID: &f.shelfB, SlotID: &slotB},
	}}
	f.crowd = &stubCrowd{scores: map[uuid.UUID]float64{
		f.shelfA: 0.7,
		f.shelfB: 1.2,
	}}

	svc, err := NewService(ServiceParams{
		DB:         stubDB{},
		Repo:       f.repo,
		Outbox:     f.emitter,
		Containers: f.containers,
		Crowd:      f.crowd,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	f.svc = svc
	return f
}

func (f *taskFixture) planTwoItems(t *testing.T) *models.PickTask {
	t.Helper()
	task, err := f.svc.Plan(context.Background(), PlanInput{
		OrderID: uuid.New(),
		Actor:   "planner-1",
		Items: []ItemPlan{
			{ItemID: uuid.New(), QuantityKg: decimal.NewFromFloat(3.5), QuantityUnits: 2, ContainerID: f.containerA},
			{ItemID: uuid.New(), QuantityKg: decimal.NewFromInt(1), QuantityUnits: 1, ContainerID: f.containerB},
		},
	})
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	return task
}

func TestPlanBuildsAssignmentsAndAggregateScore(t *testing.T) {
	f := newTaskFixture(t)
	task := f.planTwoItems(t)

	if task.State != enums.PickTaskStatePending {
		t.Fatalf("expected pending, got %s", task.State)
	}
	if len(task.Items) != 2 || len(task.ShelfAssignments) != 2 {
		t.Fatalf("expected 2 items and 2 assignments, got %d/%d", len(task.Items), len(task.ShelfAssignments))
	}
	if task.ShelfAssignments[0].ShelfID != f.shelfA || task.ShelfAssignments[0].SlotID != 2 {
		t.Fatalf("first assignment has wrong location: %+v", task.ShelfAssignments[0])
	}
	if task.ShelfAssignments[0].CrowdScore != 0.7 {
		t.Fatalf("expected planning-time score snapshot, got %v", task.ShelfAssignments[0].CrowdScore)
	}
	if task.AggregateCrowdScore == nil || *task.AggregateCrowdScore != 1.9 {
		t.Fatalf("expected aggregate 1.9, got %v", task.AggregateCrowdScore)
	}
	if len(f.crowd.bumps) != 2 {
		t.Fatalf("expected one pick reservation per shelf, got %+v", f.crowd.bumps)
	}
	for _, bump := range f.crowd.bumps {
		if bump.activity != enums.CrowdActivityPick || bump.delta != 1 {
			t.Fatalf("unexpected bump %+v", bump)
		}
	}
}

func TestPlanValidation(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Plan(ctx, PlanInput{OrderID: uuid.Nil}); err == nil {
		t.Fatalf("expected error for missing order id")
	}
	if _, err := f.svc.Plan(ctx, PlanInput{OrderID: uuid.New()}); err == nil {
		t.Fatalf("expected error for empty items")
	}
	_, err := f.svc.Plan(ctx, PlanInput{
		OrderID: uuid.New(),
		Items: []ItemPlan{
			{ItemID: uuid.New(), QuantityKg: decimal.Zero, ContainerID: f.containerA},
		},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for zero quantity, got %v", err)
	}
}

func TestPlanRejectsUnshelvedContainer(t *testing.T) {
	f := newTaskFixture(t)
	f.containers.containers[f.containerA].State = enums.ContainerStateSorting

	_, err := f.svc.Plan(context.Background(), PlanInput{
		OrderID: uuid.New(),
		Items: []ItemPlan{
			{ItemID: uuid.New(), QuantityKg: decimal.NewFromInt(2), ContainerID: f.containerA},
		},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestPlanUnknownContainer(t *testing.T) {
	f := newTaskFixture(t)
	_, err := f.svc.Plan(context.Background(), PlanInput{
		OrderID: uuid.New(),
		Items: []ItemPlan{
			{ItemID: uuid.New(), QuantityKg: decimal.NewFromInt(2), ContainerID: uuid.New()},
		},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClaimMovesPendingToInProgress(t *testing.T) {
	f := newTaskFixture(t)
	task := f.planTwoItems(t)
	picker := uuid.New()

	claimed, err := f.svc.Claim(context.Background(), task.ID, picker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed.State != enums.PickTaskStateInProgress {
		t.Fatalf("expected in_progress, got %s", claimed.State)
	}
	if claimed.AssignedTo == nil || *claimed.AssignedTo != picker {
		t.Fatalf("expected assignee to be set")
	}
	if claimed.StartedAt == nil {
		t.Fatalf("expected started timestamp")
	}
}

func TestClaimRequiresPicker(t *testing.T) {
	f := newTaskFixture(t)
	task := f.planTwoItems(t)

	_, err := f.svc.Claim(context.Background(), task.ID, uuid.Nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClaimRejectsDoubleClaim(t *testing.T) {
	f := newTaskFixture(t)
	task := f.planTwoItems(t)

	if _, err := f.svc.Claim(context.Background(), task.ID, uuid.New()); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	_, err := f.svc.Claim(context.Background(), task.ID, uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on second claim, got %v", err)
	}
}

func TestCompleteEmitsEventAndReleasesShelves(t *testing.T) {
	f := newTaskFixture(t)
	task := f.planTwoItems(t)
	picker := uuid.New()
	if _, err := f.svc.Claim(context.Background(), task.ID, picker); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	f.crowd.bumps = nil

	completed, err := f.svc.Complete(context.Background(), task.ID, "picker-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completed.State != enums.PickTaskStateCompleted || completed.CompletedAt == nil {
		t.Fatalf("expected completed task, got %+v", completed)
	}
	if len(f.emitter.events) != 1 || f.emitter.events[0].EventType != enums.OutboxEventPickTaskCompleted {
		t.Fatalf("expected pick_task.completed event, got %+v", f.emitter.events)
	}
	if len(f.crowd.bumps) != 2 {
		t.Fatalf("expected one release per shelf, got %+v", f.crowd.bumps)
	}
	for _, bump := range f.crowd.bumps {
		if bump.activity != enums.CrowdActivityPick || bump.delta != -1 {
			t.Fatalf("expected pick -1 release, got %+v", bump)
		}
	}
}

func TestCompleteRejectsUncoveredItems(t *testing.T) {
	f := newTaskFixture(t)
	task := f.planTwoItems(t)
	if _, err := f.svc.Claim(context.Background(), task.ID, uuid.New()); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	// Shrink the first assignment below the requested quantity.
	stored := f.repo.rows[task.ID]
	stored.ShelfAssignments[0].QuantityKg = decimal.NewFromFloat(1.0)

	_, err := f.svc.Complete(context.Background(), task.ID, "picker-9")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCompleteRequiresInProgress(t *testing.T) {
	f := newTaskFixture(t)
	task := f.planTwoItems(t)

	_, err := f.svc.Complete(context.Background(), task.ID, "picker-9")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict from pending, got %v", err)
	}
}

func TestCancelFromPendingAndInProgress(t *testing.T) {
	f := newTaskFixture(t)

	pending := f.planTwoItems(t)
	canceled, err := f.svc.Cancel(context.Background(), pending.ID, "order withdrawn", "support-1")
	if err != nil {
		t.Fatalf("cancel pending failed: %v", err)
	}
	if canceled.State != enums.PickTaskStateCanceled || canceled.CanceledAt == nil {
		t.Fatalf("expected canceled task, got %+v", canceled)
	}
	if canceled.CancelReason == nil || *canceled.CancelReason != "order withdrawn" {
		t.Fatalf("expected cancel reason to be stored")
	}

	claimed := f.planTwoItems(t)
	if _, err := f.svc.Claim(context.Background(), claimed.ID, uuid.New()); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), claimed.ID, "", "support-1"); err != nil {
		t.Fatalf("cancel in_progress failed: %v", err)
	}

	if len(f.emitter.events) != 2 {
		t.Fatalf("expected two canceled events, got %d", len(f.emitter.events))
	}
	for _, event := range f.emitter.events {
		if event.EventType != enums.OutboxEventPickTaskCanceled {
			t.Fatalf("unexpected event %s", event.EventType)
		}
	}
}

func TestCancelRejectsTerminalStates(t *testing.T) {
	f := newTaskFixture(t)
	task := f.planTwoItems(t)
	if _, err := f.svc.Claim(context.Background(), task.ID, uuid.New()); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := f.svc.Complete(context.Background(), task.ID, "picker-9"); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	_, err := f.svc.Cancel(context.Background(), task.ID, "too late", "support-1")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestGetUnknownTask(t *testing.T) {
	f := newTaskFixture(t)
	_, err := f.svc.Get(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUncoveredItemsAcrossSplitAssignments(t *testing.T) {
	itemID := uuid.New()
	items := types.PickItems{{ItemID: itemID, QuantityKg: decimal.NewFromInt(5)}}
	assignments := types.ShelfAssignments{
		{ItemID: itemID, QuantityKg: decimal.NewFromInt(2)},
		{ItemID: itemID, QuantityKg: decimal.NewFromInt(3)},
	}
	if uncovered := uncoveredItems(items, assignments); len(uncovered) != 0 {
		t.Fatalf("split assignments should cover the item, got %v", uncovered)
	}

	assignments[1].QuantityKg = decimal.NewFromFloat(2.5)
	if uncovered := uncoveredItems(items, assignments); len(uncovered) != 1 {
		t.Fatalf("expected one uncovered item, got %v", uncovered)
	}
}
