package shelves

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/freshroute/freshroute-backend/internal/crowd"
	"github.com/freshroute/freshroute-backend/pkg/db/models"
	pkgerrors "github.com/freshroute/freshroute-backend/pkg/errors"
)

type crowdRanker interface {
	GetNonCrowded(ctx context.Context, limit int, threshold *float64) ([]crowd.Status, error)
}

type shelfReader interface {
	FindByID(ctx context.Context, shelfID uuid.UUID) (*models.Shelf, error)
	OccupiedSlots(ctx context.Context, shelfID uuid.UUID) ([]int, error)
}

// Suggestion names a free slot on a non-crowded shelf.
type Suggestion struct {
	ShelfID    uuid.UUID `json:"shelfId"`
	SlotID     int       `json:"slotId"`
	CrowdScore float64   `json:"crowdScore"`
}

// Locator proposes where to stage the next container.
type Locator interface {
	FindSlot(ctx context.Context) (*Suggestion, error)
}

type locator struct {
	ranker crowdRanker
	repo   shelfReader
}

// NewLocator builds a slot locator over the crowd ranking.
func NewLocator(ranker crowdRanker, repo shelfReader) (Locator, error) {
	if ranker == nil {
		return nil, fmt.Errorf("crowd ranker required")
	}
	if repo == nil {
		return nil, fmt.Errorf("shelf repository required")
	}
	return &locator{ranker: ranker, repo: repo}, nil
}

// FindSlot walks the non-crowded shelves in ascending score order and
// returns the first free slot. Shelves at slot capacity are skipped.
func (l *locator) FindSlot(ctx context.Context) (*Suggestion, error) {
	candidates, err := l.ranker.GetNonCrowded(ctx, 0, nil)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		shelf, err := l.repo.FindByID(ctx, candidate.ShelfID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup shelf")
		}
		if shelf == nil || !shelf.Active {
			continue
		}

		occupied, err := l.repo.OccupiedSlots(ctx, shelf.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read shelf occupancy")
		}
		if len(occupied) >= shelf.SlotCapacity {
			continue
		}

		return &Suggestion{
			ShelfID:    shelf.ID,
			SlotID:     firstFreeSlot(occupied, shelf.SlotCapacity),
			CrowdScore: candidate.Score,
		}, nil
	}

	return nil, pkgerrors.New(pkgerrors.CodeConflict, "no free slot on a non-crowded shelf")
}

// Slots are numbered 1..capacity.
func firstFreeSlot(occupied []int, capacity int) int {
	taken := make(map[int]bool, len(occupied))
	for _, slot := range occupied {
		taken[slot] = true
	}
	for slot := 1; slot <= capacity; slot++ {
		if !taken[slot] {
			return slot
		}
	}
	return capacity
}
