package crowd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/freshroute/freshroute-backend/pkg/db/models"
	"github.com/freshroute/freshroute-backend/pkg/enums"
	pkgerrors "github.com/freshroute/freshroute-backend/pkg/errors"
	"github.com/freshroute/freshroute-backend/pkg/logger"
	"github.com/freshroute/freshroute-backend/pkg/metrics"
)

// Weight of each activity in the busy score. Picks dominate because a
// picker blocks the aisle; audits barely register.
const (
	weightPick  = 1.0
	weightSort  = 0.7
	weightAudit = 0.3
	weightLive  = 0.5
)

type crowdRepository interface {
	FindByShelfID(ctx context.Context, shelfID uuid.UUID) (*models.ShelfCrowdState, error)
	Create(ctx context.Context, state *models.ShelfCrowdState) error
	UpdateCAS(ctx context.Context, state *models.ShelfCrowdState, expectedVersion int64) (bool, error)
}

type shelfRegistry interface {
	FindByID(ctx context.Context, shelfID uuid.UUID) (*models.Shelf, error)
	ListActive(ctx context.Context) ([]models.Shelf, error)
}

type liveCounter interface {
	LiveContainerCount(ctx context.Context, shelfID uuid.UUID) (int, error)
}

type scoreCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CrowdScoreKey(shelfID string) string
}

// Breakdown itemizes the inputs behind a busy score.
type Breakdown struct {
	PickCount      int `json:"pickCount"`
	SortCount      int `json:"sortCount"`
	AuditCount     int `json:"auditCount"`
	LiveContainers int `json:"liveContainers"`
}

// Status is the crowd verdict for one shelf.
type Status struct {
	ShelfID   uuid.UUID `json:"shelfId"`
	Crowded   bool      `json:"crowded"`
	Score     float64   `json:"score"`
	Threshold float64   `json:"threshold"`
	Breakdown Breakdown `json:"breakdown"`
}

// Service exposes shelf crowd scoring.
type Service interface {
	Bump(ctx context.Context, shelfID uuid.UUID, activity enums.CrowdActivity, delta int) (*Status, error)
	ComputeShelfCrowd(ctx context.Context, shelfID uuid.UUID, threshold *float64) (*Status, error)
	GetNonCrowded(ctx context.Context, limit int, threshold *float64) ([]Status, error)
}

type service struct {
	repo             crowdRepository
	shelves          shelfRegistry
	live             liveCounter
	cache            scoreCache
	metrics          *metrics.WarehouseMetrics
	logg             *logger.Logger
	defaultThreshold float64
	nonCrowdedLimit  int
	cacheTTL         time.Duration
}

// ServiceParams collects the crowd service dependencies.
type ServiceParams struct {
	Repo             crowdRepository
	Shelves          shelfRegistry
	Live             liveCounter
	Cache            scoreCache
	Metrics          *metrics.WarehouseMetrics
	Logger           *logger.Logger
	DefaultThreshold float64
	NonCrowdedLimit  int
	CacheTTL         time.Duration
}

// NewService builds the crowd service. Cache, metrics, and logger are optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("crowd repository required")
	}
	if params.Shelves == nil {
		return nil, fmt.Errorf("shelf registry required")
	}
	if params.Live == nil {
		return nil, fmt.Errorf("live container counter required")
	}
	threshold := params.DefaultThreshold
	if threshold <= 0 {
		threshold = 2.0
	}
	limit := params.NonCrowdedLimit
	if limit <= 0 {
		limit = 10
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &service{
		repo:             params.Repo,
		shelves:          params.Shelves,
		live:             params.Live,
		cache:            params.Cache,
		metrics:          params.Metrics,
		logg:             params.Logger,
		defaultThreshold: threshold,
		nonCrowdedLimit:  limit,
		cacheTTL:         ttl,
	}, nil
}

// Score folds the weighted counters and live container count into one number.
func Score(pickCount, sortCount, auditCount, liveContainers int) float64 {
	return float64(pickCount)*weightPick +
		float64(sortCount)*weightSort +
		float64(auditCount)*weightAudit +
		float64(liveContainers)*weightLive
}

func (s *service) Bump(ctx context.Context, shelfID uuid.UUID, activity enums.CrowdActivity, delta int) (*Status, error) {
	if shelfID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shelf id is required")
	}
	if !activity.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid crowd activity")
	}
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}

	if _, err := s.requireShelf(ctx, shelfID); err != nil {
		return nil, err
	}

	status, err := s.bumpOnce(ctx, shelfID, activity, delta)
	if err != nil {
		// One retry on a lost CAS race; concurrent bumps on the same shelf
		// are common when two stations scan at once.
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
			status, err = s.bumpOnce(ctx, shelfID, activity, delta)
		}
		if err != nil {
			return nil, err
		}
	}

	s.invalidate(ctx, shelfID)
	s.metrics.IncCrowdBump(activity.String())
	if s.logg != nil {
		logCtx := s.logg.WithShelfID(ctx, shelfID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"activity": activity.String(),
			"delta":    delta,
			"score":    status.Score,
		})
		s.logg.Info(logCtx, "crowd counter bumped")
	}
	return status, nil
}

func (s *service) bumpOnce(ctx context.Context, shelfID uuid.UUID, activity enums.CrowdActivity, delta int) (*Status, error) {
	state, err := s.loadOrCreateState(ctx, shelfID)
	if err != nil {
		return nil, err
	}

	switch activity {
	case enums.CrowdActivityPick:
		state.PickCount = clampCounter(state.PickCount + delta)
	case enums.CrowdActivitySort:
		state.SortCount = clampCounter(state.SortCount + delta)
	case enums.CrowdActivityAudit:
		state.AuditCount = clampCounter(state.AuditCount + delta)
	}

	live, err := s.live.LiveContainerCount(ctx, shelfID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count live containers")
	}

	state.BusyScore = Score(state.PickCount, state.SortCount, state.AuditCount, live)

	ok, err := s.repo.UpdateCAS(ctx, state, state.Version)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist crowd state")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "crowd state changed concurrently")
	}

	return s.statusFromState(state, live, s.defaultThreshold), nil
}

func (s *service) ComputeShelfCrowd(ctx context.Context, shelfID uuid.UUID, threshold *float64) (*Status, error) {
	if shelfID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shelf id is required")
	}
	limit, err := s.resolveThreshold(threshold)
	if err != nil {
		return nil, err
	}

	if _, err := s.requireShelf(ctx, shelfID); err != nil {
		return nil, err
	}

	if cached := s.cachedStatus(ctx, shelfID); cached != nil {
		cached.Threshold = limit
		cached.Crowded = cached.Score >= limit
		return cached, nil
	}

	status, err := s.computeFresh(ctx, shelfID, limit)
	if err != nil {
		return nil, err
	}
	s.storeCache(ctx, status)
	return status, nil
}

func (s *service) computeFresh(ctx context.Context, shelfID uuid.UUID, threshold float64) (*Status, error) {
	state, err := s.loadOrCreateState(ctx, shelfID)
	if err != nil {
		return nil, err
	}

	live, err := s.live.LiveContainerCount(ctx, shelfID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count live containers")
	}

	// Self-heal: the stored score may be stale relative to the live
	// container count, so it is always re-derived on read.
	score := Score(state.PickCount, state.SortCount, state.AuditCount, live)
	if score != state.BusyScore {
		state.BusyScore = score
		if ok, err := s.repo.UpdateCAS(ctx, state, state.Version); err == nil && ok {
			state.Version++
		}
	}

	return s.statusFromState(state, live, threshold), nil
}

func (s *service) GetNonCrowded(ctx context.Context, limit int, threshold *float64) ([]Status, error) {
	cutoff, err := s.resolveThreshold(threshold)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.nonCrowdedLimit
	}

	shelves, err := s.shelves.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shelves")
	}

	statuses := make([]Status, 0, len(shelves))
	for _, shelf := range shelves {
		status, err := s.computeFresh(ctx, shelf.ID, cutoff)
		if err != nil {
			return nil, err
		}
		if status.Crowded {
			continue
		}
		statuses = append(statuses, *status)
	}

	sort.SliceStable(statuses, func(i, j int) bool {
		return statuses[i].Score < statuses[j].Score
	})

	if len(statuses) > limit {
		statuses = statuses[:limit]
	}
	return statuses, nil
}

func (s *service) loadOrCreateState(ctx context.Context, shelfID uuid.UUID) (*models.ShelfCrowdState, error) {
	state, err := s.repo.FindByShelfID(ctx, shelfID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load crowd state")
	}
	if state != nil {
		return state, nil
	}

	fresh := &models.ShelfCrowdState{ShelfID: shelfID}
	if err := s.repo.Create(ctx, fresh); err != nil {
		// Lost the insert race: another writer created the row first.
		state, findErr := s.repo.FindByShelfID(ctx, shelfID)
		if findErr == nil && state != nil {
			return state, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create crowd state")
	}
	return fresh, nil
}

func (s *service) requireShelf(ctx context.Context, shelfID uuid.UUID) (*models.Shelf, error) {
	shelf, err := s.shelves.FindByID(ctx, shelfID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup shelf")
	}
	if shelf == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shelf not found")
	}
	return shelf, nil
}

func (s *service) resolveThreshold(threshold *float64) (float64, error) {
	if threshold == nil {
		return s.defaultThreshold, nil
	}
	if *threshold <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "threshold must be positive")
	}
	return *threshold, nil
}

func (s *service) statusFromState(state *models.ShelfCrowdState, live int, threshold float64) *Status {
	return &Status{
		ShelfID:   state.ShelfID,
		Crowded:   state.BusyScore >= threshold,
		Score:     state.BusyScore,
		Threshold: threshold,
		Breakdown: Breakdown{
			PickCount:      state.PickCount,
			SortCount:      state.SortCount,
			AuditCount:     state.AuditCount,
			LiveContainers: live,
		},
	}
}

func (s *service) cachedStatus(ctx context.Context, shelfID uuid.UUID) *Status {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, s.cache.CrowdScoreKey(shelfID.String()))
	if err != nil || raw == "" {
		return nil
	}
	var status Status
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil
	}
	if status.ShelfID != shelfID {
		return nil
	}
	return &status
}

func (s *service) storeCache(ctx context.Context, status *Status) {
	if s.cache == nil || status == nil {
		return
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, s.cache.CrowdScoreKey(status.ShelfID.String()), string(raw), s.cacheTTL)
}

func (s *service) invalidate(ctx context.Context, shelfID uuid.UUID) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, s.cache.CrowdScoreKey(shelfID.String()))
}

func clampCounter(value int) int {
	if value < 0 {
		return 0
	}
	return value
}
