package containers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freshroute/freshroute-backend/internal/crowd"
	"github.com/freshroute/freshroute-backend/internal/shelves"
	dbpkg "github.com/freshroute/freshroute-backend/pkg/db"
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

type containerRepository interface {
	CreateTx(tx *gorm.DB, container *models.ContainerOps) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ContainerOps, error)
	FindByLabel(ctx context.Context, label string) (*models.ContainerOps, error)
	FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*models.ContainerOps, error)
	SaveTx(tx *gorm.DB, container *models.ContainerOps) error
	List(ctx context.Context, opts listQuery) ([]models.ContainerOps, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type crowdBumper interface {
	Bump(ctx context.Context, shelfID uuid.UUID, activity enums.CrowdActivity, delta int) (*crowd.Status, error)
}

type slotLocator interface {
	FindSlot(ctx context.Context) (*shelves.Suggestion, error)
}

type shelfFinder interface {
	FindByID(ctx context.Context, shelfID uuid.UUID) (*models.Shelf, error)
}

// IntakeInput registers a container at the intake gate.
type IntakeInput struct {
	Label string
	Actor string
	Meta  types.Meta
}

// AdvanceInput carries one scan or operator event against a container.
type AdvanceInput struct {
	ContainerID uuid.UUID
	ToState     enums.ContainerState
	Actor       string
	Meta        types.Meta

	// Transition-specific fields; validated per target state.
	Reason         string
	CleaningMethod string
	WeightKg       *decimal.Decimal
	Grade          string
	Category       string
	Zone           *string
	Aisle          *string
	ShelfID        *uuid.UUID
	SlotID         *int
}

// ListParams filters the container listing.
type ListParams struct {
	State  *enums.ContainerState
	Limit  int
	Cursor string
}

// ListResult is one page of containers plus the next cursor.
type ListResult struct {
	Items  []models.ContainerOps `json:"items"`
	Cursor string                `json:"cursor,omitempty"`
}

// Service exposes the container operations lifecycle.
type Service interface {
	Intake(ctx context.Context, input IntakeInput) (*models.ContainerOps, error)
	Advance(ctx context.Context, input AdvanceInput) (*models.ContainerOps, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ContainerOps, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	db      dbClient
	repo    containerRepository
	outbox  outboxEmitter
	crowd   crowdBumper
	locator slotLocator
	shelves shelfFinder
	metrics *metrics.WarehouseMetrics
	logg    *logger.Logger
}

// ServiceParams collects the container service dependencies.
type ServiceParams struct {
	DB      dbClient
	Repo    containerRepository
	Outbox  outboxEmitter
	Crowd   crowdBumper
	Locator slotLocator
	Shelves shelfFinder
	Metrics *metrics.WarehouseMetrics
	Logger  *logger.Logger
}

// NewService builds the container service. Metrics and logger are optional.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("container repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Crowd == nil {
		return nil, fmt.Errorf("crowd bumper required")
	}
	if params.Locator == nil {
		return nil, fmt.Errorf("slot locator required")
	}
	if params.Shelves == nil {
		return nil, fmt.Errorf("shelf registry required")
	}
	return &service{
		db:      params.DB,
		repo:    params.Repo,
		outbox:  params.Outbox,
		crowd:   params.Crowd,
		locator: params.Locator,
		shelves: params.Shelves,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

func (s *service) Intake(ctx context.Context, input IntakeInput) (*models.ContainerOps, error) {
	label := strings.TrimSpace(input.Label)
	if label == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label is required")
	}

	existing, err := s.repo.FindByLabel(ctx, label)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup container label")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "container label already registered")
	}

	container := &models.ContainerOps{
		Label: label,
		State: enums.ContainerStateArrived,
		Area:  enums.LocationAreaIntake,
		AuditTrail: types.AuditTrail{{
			Event:     string(enums.ContainerStateArrived),
			FromState: "",
			ToState:   enums.ContainerStateArrived,
			Actor:     input.Actor,
			At:        time.Now().UTC(),
			Meta:      input.Meta,
		}},
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.CreateTx(tx, container)
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "container label already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create container")
	}

	if s.logg != nil {
		logCtx := s.logg.WithContainerID(ctx, container.ID.String())
		s.logg.Info(logCtx, "container registered at intake")
	}
	return container, nil
}

func (s *service) Advance(ctx context.Context, input AdvanceInput) (*models.ContainerOps, error) {
	if input.ContainerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "container id is required")
	}
	if !input.ToState.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid container state")
	}

	var (
		updated   *models.ContainerOps
		pickShelf *uuid.UUID
		sortShelf *uuid.UUID
	)

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		container, err := s.repo.FindByIDForUpdate(tx, input.ContainerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load container")
		}
		if container == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "container not found")
		}

		from := container.State
		if !CanTransition(from, input.ToState) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("no transition from %s to %s", from, input.ToState)).
				WithDetails(map[string]any{
					"from": from.String(),
					"to":   input.ToState.String(),
				})
		}

		if container.State == enums.ContainerStateShelved && container.ShelfID != nil {
			// Capture the shelf the container is leaving before the
			// location fields are rewritten.
			shelfID := *container.ShelfID
			pickShelf = &shelfID
		}

		if err := s.applyTransition(ctx, tx, container, input, &sortShelf); err != nil {
			return err
		}

		now := time.Now().UTC()
		container.State = input.ToState
		container.AuditTrail = append(container.AuditTrail, types.AuditEntry{
			Event:     string(input.ToState),
			FromState: from,
			ToState:   input.ToState,
			Actor:     input.Actor,
			At:        now,
			Meta:      input.Meta,
		})

		if err := s.repo.SaveTx(tx, container); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save container")
		}
		updated = container
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Crowd bumps are advisory and happen outside the transition
	// transaction; a failed bump never rolls back the scan.
	switch input.ToState {
	case enums.ContainerStateShelved:
		if sortShelf != nil {
			s.bumpQuietly(ctx, *sortShelf, enums.CrowdActivitySort, 1)
		}
	case enums.ContainerStatePicked:
		if pickShelf != nil {
			s.bumpQuietly(ctx, *pickShelf, enums.CrowdActivityPick, 1)
		}
	}

	s.metrics.IncContainerTransition(input.ToState.String())
	if s.logg != nil {
		logCtx := s.logg.WithContainerID(ctx, updated.ID.String())
		logCtx = s.logg.WithField(logCtx, "state", updated.State.String())
		s.logg.Info(logCtx, "container advanced")
	}
	return updated, nil
}

// applyTransition performs the per-state side effects: location lockstep,
// weight/cleaning/sorting records, and outbox emits.
func (s *service) applyTransition(ctx context.Context, tx *gorm.DB, container *models.ContainerOps, input AdvanceInput, sortShelf **uuid.UUID) error {
	now := time.Now().UTC()
	container.Area = areaForState(input.ToState)

	switch input.ToState {
	case enums.ContainerStateRejected:
		container.ShelfID = nil
		container.SlotID = nil
		container.Zone = nil
		container.Aisle = nil
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventContainerRejected,
			AggregateType: enums.OutboxAggregateContainer,
			AggregateID:   container.ID,
			Actor:         actorRef(input.Actor),
			Version:       1,
			Data: payloads.ContainerRejectedEvent{
				ContainerID: container.ID,
				Label:       container.Label,
				Reason:      input.Reason,
				RejectedAt:  now,
			},
		})

	case enums.ContainerStateCleaning:
		container.Cleaning = &types.CleaningRecord{
			Method:    input.CleaningMethod,
			Actor:     input.Actor,
			StartedAt: now,
			Meta:      input.Meta,
		}

	case enums.ContainerStateCleaned:
		if container.Cleaning != nil && container.Cleaning.FinishedAt == nil {
			finished := now
			container.Cleaning.FinishedAt = &finished
		}

	case enums.ContainerStateWeighed:
		if input.WeightKg == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "weight_kg is required to record a weighing")
		}
		if input.WeightKg.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "weight_kg must not be negative")
		}
		container.WeightHistory = append(container.WeightHistory, types.WeightEntry{
			ValueKg:    *input.WeightKg,
			Actor:      input.Actor,
			RecordedAt: now,
		})

	case enums.ContainerStateSorted:
		if strings.TrimSpace(input.Grade) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "grade is required to finish sorting")
		}
		container.Sorting = &types.SortingRecord{
			Grade:    input.Grade,
			Category: input.Category,
			Actor:    input.Actor,
			Meta:     input.Meta,
		}

	case enums.ContainerStateStored:
		container.ShelfID = nil
		container.SlotID = nil
		container.Zone = input.Zone
		container.Aisle = input.Aisle

	case enums.ContainerStateShelved:
		shelfID, slotID, score, err := s.resolveSlot(ctx, input)
		if err != nil {
			return err
		}
		shelf, err := s.shelves.FindByID(ctx, shelfID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup shelf")
		}
		if shelf == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "shelf not found")
		}
		container.ShelfID = &shelf.ID
		container.SlotID = &slotID
		container.Zone = &shelf.Zone
		container.Aisle = &shelf.Aisle
		target := shelf.ID
		*sortShelf = &target

		meta := types.Meta{}
		if score != nil {
			meta["crowdScore"] = *score
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventContainerShelved,
			AggregateType: enums.OutboxAggregateContainer,
			AggregateID:   container.ID,
			Actor:         actorRef(input.Actor),
			Version:       1,
			Data: payloads.ContainerShelvedEvent{
				ContainerID: container.ID,
				Label:       container.Label,
				ShelfID:     shelf.ID.String(),
				SlotID:      slotID,
				ShelvedAt:   now,
			},
		})

	case enums.ContainerStatePicked, enums.ContainerStatePackaged:
		container.ShelfID = nil
		container.SlotID = nil
		container.Zone = nil
		container.Aisle = nil

	case enums.ContainerStateDispatched:
		container.ShelfID = nil
		container.SlotID = nil
		container.Zone = nil
		container.Aisle = nil
		dispatched := now
		container.DispatchedAt = &dispatched
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventContainerDispatched,
			AggregateType: enums.OutboxAggregateContainer,
			AggregateID:   container.ID,
			Actor:         actorRef(input.Actor),
			Version:       1,
			Data: payloads.ContainerDispatchedEvent{
				ContainerID:   container.ID,
				Label:         container.Label,
				FinalWeightKg: finalWeight(container.WeightHistory),
				DispatchedAt:  now,
			},
		})
	}

	return nil
}

// resolveSlot returns the shelf/slot for a shelving event, either from the
// request or from the locator when the scanner did not name one.
func (s *service) resolveSlot(ctx context.Context, input AdvanceInput) (uuid.UUID, int, *float64, error) {
	if input.ShelfID != nil {
		if input.SlotID == nil {
			return uuid.Nil, 0, nil, pkgerrors.New(pkgerrors.CodeValidation, "slot_id is required when shelf_id is set")
		}
		if *input.SlotID <= 0 {
			return uuid.Nil, 0, nil, pkgerrors.New(pkgerrors.CodeValidation, "slot_id must be positive")
		}
		return *input.ShelfID, *input.SlotID, nil, nil
	}

	suggestion, err := s.locator.FindSlot(ctx)
	if err != nil {
		return uuid.Nil, 0, nil, err
	}
	score := suggestion.CrowdScore
	return suggestion.ShelfID, suggestion.SlotID, &score, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.ContainerOps, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "container id is required")
	}
	container, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load container")
	}
	if container == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "container not found")
	}
	return container, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.State != nil && !params.State.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid container state filter")
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list containers")
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

func (s *service) bumpQuietly(ctx context.Context, shelfID uuid.UUID, activity enums.CrowdActivity, delta int) {
	if _, err := s.crowd.Bump(ctx, shelfID, activity, delta); err != nil && s.logg != nil {
		logCtx := s.logg.WithShelfID(ctx, shelfID.String())
		s.logg.Warn(logCtx, "crowd bump failed after container transition")
	}
}

func actorRef(actor string) *outbox.ActorRef {
	if strings.TrimSpace(actor) == "" {
		return nil
	}
	return &outbox.ActorRef{Actor: actor}
}

func finalWeight(history types.WeightHistory) *decimal.Decimal {
	if len(history) == 0 {
		return nil
	}
	value := history[len(history)-1].ValueKg
	return &value
}
