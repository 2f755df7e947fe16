package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshroute/freshroute-backend/api/responses"
	"github.com/freshroute/freshroute-backend/api/validators"
	"github.com/freshroute/freshroute-backend/internal/crowd"
	"github.com/freshroute/freshroute-backend/pkg/db/models"
	"github.com/freshroute/freshroute-backend/pkg/enums"
	pkgerrors "github.com/freshroute/freshroute-backend/pkg/errors"
	"github.com/freshroute/freshroute-backend/pkg/logger"
)

// ShelfRegistry is the shelf persistence surface the controllers need.
type ShelfRegistry interface {
	Create(ctx context.Context, shelf *models.Shelf) (*models.Shelf, error)
	FindByCode(ctx context.Context, code string) (*models.Shelf, error)
	ListActive(ctx context.Context) ([]models.Shelf, error)
}

type shelfCreateRequest struct {
	Code          string  `json:"code" validate:"required"`
	Zone          string  `json:"zone" validate:"required"`
	Aisle         string  `json:"aisle" validate:"required"`
	SlotCapacity  int     `json:"slot_capacity" validate:"required,min=1"`
	WeightLimitKg float64 `json:"weight_limit_kg" validate:"required,gt=0"`
}

// ShelfCreate registers a new shelf in the warehouse.
func ShelfCreate(registry ShelfRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload shelfCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		code := strings.TrimSpace(payload.Code)
		existing, err := registry.FindByCode(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup shelf code"))
			return
		}
		if existing != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, "shelf code already registered"))
			return
		}

		shelf, err := registry.Create(r.Context(), &models.Shelf{
			Code:          code,
			Zone:          strings.TrimSpace(payload.Zone),
			Aisle:         strings.TrimSpace(payload.Aisle),
			SlotCapacity:  payload.SlotCapacity,
			WeightLimitKg: decimal.NewFromFloat(payload.WeightLimitKg),
			Active:        true,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shelf"))
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, shelfResponseFromModel(shelf))
	}
}

// ShelfList returns every active shelf.
func ShelfList(registry ShelfRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shelves, err := registry.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shelves"))
			return
		}
		out := make([]shelfResponse, 0, len(shelves))
		for i := range shelves {
			out = append(out, shelfResponseFromModel(&shelves[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

type crowdBumpRequest struct {
	Kind  string `json:"kind" validate:"required"`
	Delta int    `json:"delta" validate:"required"`
}

// ShelfCrowdBump adjusts one activity counter on a shelf's crowd state.
func ShelfCrowdBump(svc crowd.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shelfID, err := shelfIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload crowdBumpRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		activity, err := enums.ParseCrowdActivity(strings.TrimSpace(payload.Kind))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid crowd activity kind"))
			return
		}

		status, err := svc.Bump(r.Context(), shelfID, activity, payload.Delta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// ShelfCrowd returns the current crowd status for one shelf.
func ShelfCrowd(svc crowd.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shelfID, err := shelfIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		threshold, err := parseThreshold(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.ComputeShelfCrowd(r.Context(), shelfID, threshold)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// ShelfNonCrowded lists calm shelves ordered by ascending score.
func ShelfNonCrowded(svc crowd.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		threshold, err := parseThreshold(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		statuses, err := svc.GetNonCrowded(r.Context(), limit, threshold)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, statuses)
	}
}

func shelfIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "shelfId")
	shelfID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shelf id")
	}
	return shelfID, nil
}

func parseThreshold(r *http.Request) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("threshold"))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "threshold must be numeric")
	}
	return &value, nil
}

type shelfResponse struct {
	ID            uuid.UUID       `json:"id"`
	Code          string          `json:"code"`
	Zone          string          `json:"zone"`
	Aisle         string          `json:"aisle"`
	SlotCapacity  int             `json:"slot_capacity"`
	WeightLimitKg decimal.Decimal `json:"weight_limit_kg"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func shelfResponseFromModel(m *models.Shelf) shelfResponse {
	return shelfResponse{
		ID:            m.ID,
		Code:          m.Code,
		Zone:          m.Zone,
		Aisle:         m.Aisle,
		SlotCapacity:  m.SlotCapacity,
		WeightLimitKg: m.WeightLimitKg,
		Active:        m.Active,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
