package picktasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freshroute/freshroute-backend/internal/crowd"
	"github.com/freshroute/freshroute-backend/pkg/db/models"
	"github.com/freshroute/freshroute-backend/pkg/enums"
	pkgerrors "github.com/freshroute/freshroute-backend/pkg/errors"
	"github.com/freshroute/freshroute-backend/pkg/logger"
	"github.com/freshroute/freshroute-backend/pkg/metrics"
	"github.com/freshroute/freshroute-backend/pkg/outbox"
	"github.com/freshroute/freshroute-backend/pkg/outbox/payloads"
	pkgpagination "github.com/freshroute/freshroute-backend/pkg/pagination"
	"github.com/freshroute/freshroute-backend/pkg/types"
)

type dbClient interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type taskRepository interface {
	CreateTx(tx *gorm.DB, task *models.PickTask) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PickTask, error)
	FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*models.PickTask, error)
	SaveTx(tx *gorm.DB, task *models.PickTask) error
	List(ctx context.Context, opts listQuery) ([]models.PickTask, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type containerReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.ContainerOps, error)
}

type crowdClient interface {
	Bump(ctx context.Context, shelfID uuid.UUID, activity enums.CrowdActivity, delta int) (*crowd.Status, error)
	ComputeShelfCrowd(ctx context.Context, shelfID uuid.UUID, threshold *float64) (*crowd.Status, error)
}

// ItemPlan is one requested line plus the shelved container it should be
// picked from.
type ItemPlan struct {
	ItemID        uuid.UUID
	QuantityKg    decimal.Decimal
	QuantityUnits int
	ContainerID   uuid.UUID
}

// PlanInput creates a pick task for an order.
type PlanInput struct {
	OrderID uuid.UUID
	Actor   string
	Items   []ItemPlan
}

// ListParams filters the task listing.
type ListParams struct {
	State  *enums.PickTaskState
	Limit  int
	Cursor string
}

// ListResult is one page of tasks plus the next cursor.
type ListResult struct {
	Items  []models.PickTask `json:"items"`
	Cursor string            `json:"cursor,omitempty"`
}

// Service exposes the pick task lifecycle.
type Service interface {
	Plan(ctx context.Context, input PlanInput) (*models.PickTask, error)
	Claim(ctx context.Context, taskID, pickerID uuid.UUID) (*models.PickTask, error)
	Complete(ctx context.Context, taskID uuid.UUID, actor string) (*models.PickTask, error)
	Cancel(ctx context.Context, taskID uuid.UUID, reason, actor string) (*models.PickTask, error)
	Get(ctx context.Context, id uuid.UUID) (*models.PickTask, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	db         dbClient
	repo       taskRepository
	outbox     outboxEmitter
	containers containerReader
	crowd      crowdClient
	metrics    *metrics.WarehouseMetrics
	logg       *logger.Logger
}

// ServiceParams collects the pick task service dependencies.
type ServiceParams struct {
	DB         dbClient
	Repo       taskRepository
	Outbox     outboxEmitter
	Containers containerReader
	Crowd      crowdClient
	Metrics    *metrics.WarehouseMetrics
	Logger     *logger.Logger
}

// NewService builds the pick task service. Metrics and logger are optional.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("pick task repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Containers == nil {
		return nil, fmt.Errorf("container reader required")
	}
	if params.Crowd == nil {
		return nil, fmt.Errorf("crowd client required")
	}
	return &service{
		db:         params.DB,
		repo:       params.Repo,
		outbox:     params.Outbox,
		containers: params.Containers,
		crowd:      params.Crowd,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

func (s *service) Plan(ctx context.Context, input PlanInput) (*models.PickTask, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}

	items := make(types.PickItems, 0, len(input.Items))
	assignments := make(types.ShelfAssignments, 0, len(input.Items))
	scoreByShelf := map[uuid.UUID]float64{}

	for i, item := range input.Items {
		if item.ItemID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("items[%d]: item id is required", i))
		}
		if !item.QuantityKg.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("items[%d]: quantity_kg must be positive", i))
		}
		if item.ContainerID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("items[%d]: container id is required", i))
		}

		container, err := s.containers.FindByID(ctx, item.ContainerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load container")
		}
		if container == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("items[%d]: container not found", i))
		}
		if container.State != enums.ContainerStateShelved || container.ShelfID == nil || container.SlotID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("items[%d]: container is not on a shelf", i)).
				WithDetails(map[string]any{"state": container.State.String()})
		}

		shelfID := *container.ShelfID
		score, ok := scoreByShelf[shelfID]
		if !ok {
			status, err := s.crowd.ComputeShelfCrowd(ctx, shelfID, nil)
			if err != nil {
				return nil, err
			}
			score = status.Score
			scoreByShelf[shelfID] = score
		}

		items = append(items, types.PickItem{
			ItemID:        item.ItemID,
			QuantityKg:    item.QuantityKg,
			QuantityUnits: item.QuantityUnits,
		})
		assignments = append(assignments, types.ShelfAssignment{
			ItemID:      item.ItemID,
			ContainerID: container.ID,
			ShelfID:     shelfID,
			SlotID:      *container.SlotID,
			QuantityKg:  item.QuantityKg,
			CrowdScore:  score,
		})
	}

	aggregate := 0.0
	for _, score := range scoreByShelf {
		aggregate += score
	}

	task := &models.PickTask{
		OrderID:             input.OrderID,
		State:               enums.PickTaskStatePending,
		Items:               items,
		ShelfAssignments:    assignments,
		AggregateCrowdScore: &aggregate,
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.CreateTx(tx, task)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pick task")
	}

	// The task reserves picker attention on its shelves until it resolves.
	for shelfID := range scoreByShelf {
		s.bumpQuietly(ctx, shelfID, 1)
	}

	s.metrics.IncPickTaskTransition(enums.PickTaskStatePending.String())
	if s.logg != nil {
		logCtx := s.logg.WithTaskID(ctx, task.ID.String())
		logCtx = s.logg.WithField(logCtx, "order_id", task.OrderID.String())
		s.logg.Info(logCtx, "pick task planned")
	}
	return task, nil
}

func (s *service) Claim(ctx context.Context, taskID, pickerID uuid.UUID) (*models.PickTask, error) {
	if taskID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task id is required")
	}
	if pickerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "picker id is required")
	}

	var updated *models.PickTask
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		task, err := s.lockTask(tx, taskID)
		if err != nil {
			return err
		}
		if task.State != enums.PickTaskStatePending {
			return stateConflict(task.State, enums.PickTaskStateInProgress)
		}

		now := time.Now().UTC()
		task.State = enums.PickTaskStateInProgress
		task.AssignedTo = &pickerID
		task.StartedAt = &now

		if err := s.repo.SaveTx(tx, task); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save pick task")
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncPickTaskTransition(enums.PickTaskStateInProgress.String())
	if s.logg != nil {
		logCtx := s.logg.WithTaskID(ctx, updated.ID.String())
		s.logg.Info(logCtx, "pick task claimed")
	}
	return updated, nil
}

func (s *service) Complete(ctx context.Context, taskID uuid.UUID, actor string) (*models.PickTask, error) {
	if taskID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task id is required")
	}

	var updated *models.PickTask
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		task, err := s.lockTask(tx, taskID)
		if err != nil {
			return err
		}
		if task.State != enums.PickTaskStateInProgress {
			return stateConflict(task.State, enums.PickTaskStateCompleted)
		}
		if uncovered := uncoveredItems(task.Items, task.ShelfAssignments); len(uncovered) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation,
				"not every item quantity is covered by shelf assignments").
				WithDetails(map[string]any{"uncoveredItemIds": uncovered})
		}

		now := time.Now().UTC()
		task.State = enums.PickTaskStateCompleted
		task.CompletedAt = &now

		if err := s.repo.SaveTx(tx, task); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save pick task")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventPickTaskCompleted,
			AggregateType: enums.OutboxAggregatePickTask,
			AggregateID:   task.ID,
			Actor:         actorRef(actor),
			Version:       1,
			Data: payloads.PickTaskCompletedEvent{
				TaskID:      task.ID,
				OrderID:     task.OrderID,
				AssignedTo:  task.AssignedTo,
				ItemCount:   len(task.Items),
				CompletedAt: now,
			},
		}); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.releaseShelves(ctx, updated.ShelfAssignments)
	s.metrics.IncPickTaskTransition(enums.PickTaskStateCompleted.String())
	if s.logg != nil {
		logCtx := s.logg.WithTaskID(ctx, updated.ID.String())
		s.logg.Info(logCtx, "pick task completed")
	}
	return updated, nil
}

func (s *service) Cancel(ctx context.Context, taskID uuid.UUID, reason, actor string) (*models.PickTask, error) {
	if taskID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task id is required")
	}

	var (
		updated   *models.PickTask
		fromState enums.PickTaskState
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		task, err := s.lockTask(tx, taskID)
		if err != nil {
			return err
		}
		if task.State.IsTerminal() {
			return stateConflict(task.State, enums.PickTaskStateCanceled)
		}
		fromState = task.State

		now := time.Now().UTC()
		task.State = enums.PickTaskStateCanceled
		task.CanceledAt = &now
		if trimmed := strings.TrimSpace(reason); trimmed != "" {
			task.CancelReason = &trimmed
		}

		if err := s.repo.SaveTx(tx, task); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save pick task")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventPickTaskCanceled,
			AggregateType: enums.OutboxAggregatePickTask,
			AggregateID:   task.ID,
			Actor:         actorRef(actor),
			Version:       1,
			Data: payloads.PickTaskCanceledEvent{
				TaskID:     task.ID,
				OrderID:    task.OrderID,
				FromState:  fromState,
				Reason:     reason,
				CanceledAt: now,
			},
		}); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.releaseShelves(ctx, updated.ShelfAssignments)
	s.metrics.IncPickTaskTransition(enums.PickTaskStateCanceled.String())
	if s.logg != nil {
		logCtx := s.logg.WithTaskID(ctx, updated.ID.String())
		logCtx = s.logg.WithField(logCtx, "from_state", fromState.String())
		s.logg.Info(logCtx, "pick task canceled")
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.PickTask, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task id is required")
	}
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pick task")
	}
	if task == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pick task not found")
	}
	return task, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.State != nil && !params.State.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid pick task state filter")
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{
		state: params.State,
		limit: pkgpagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pick tasks")
	}

	nextCursor := ""
	if len(rows) > limit {
		nextCursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{
			CreatedAt: rows[limit].CreatedAt,
			ID:        rows[limit].ID,
		})
		rows = rows[:limit]
	}

	return &ListResult{Items: rows, Cursor: nextCursor}, nil
}

func (s *service) lockTask(tx *gorm.DB, taskID uuid.UUID) (*models.PickTask, error) {
	task, err := s.repo.FindByIDForUpdate(tx, taskID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pick task")
	}
	if task == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pick task not found")
	}
	return task, nil
}

// releaseShelves drops the pick reservation taken at planning time, once per
// distinct shelf. Bumps are advisory; a failure never rolls back the task.
func (s *service) releaseShelves(ctx context.Context, assignments types.ShelfAssignments) {
	seen := map[uuid.UUID]bool{}
	for _, assignment := range assignments {
		if seen[assignment.ShelfID] {
			continue
		}
		seen[assignment.ShelfID] = true
		s.bumpQuietly(ctx, assignment.ShelfID, -1)
	}
}

func (s *service) bumpQuietly(ctx context.Context, shelfID uuid.UUID, delta int) {
	if _, err := s.crowd.Bump(ctx, shelfID, enums.CrowdActivityPick, delta); err != nil && s.logg != nil {
		logCtx := s.logg.WithShelfID(ctx, shelfID.String())
		s.logg.Warn(logCtx, "crowd bump failed after pick task transition")
	}
}

// uncoveredItems returns item ids whose requested quantity is not fully
// covered by the sum of their shelf assignments.
func uncoveredItems(items types.PickItems, assignments types.ShelfAssignments) []string {
	covered := map[uuid.UUID]decimal.Decimal{}
	for _, assignment := range assignments {
		covered[assignment.ItemID] = covered[assignment.ItemID].Add(assignment.QuantityKg)
	}

	var uncovered []string
	for _, item := range items {
		if covered[item.ItemID].LessThan(item.QuantityKg) {
			uncovered = append(uncovered, item.ItemID.String())
		}
	}
	return uncovered
}

func stateConflict(from, to enums.PickTaskState) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("no transition from %s to %s", from, to)).
		WithDetails(map[string]any{
			"from": from.String(),
			"to":   to.String(),
		})
}

func actorRef(actor string) *outbox.ActorRef {
	if strings.TrimSpace(actor) == "" {
		return nil
	}
	return &outbox.ActorRef{Actor: actor}
}
