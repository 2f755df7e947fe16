package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshroute/freshroute-backend/api/responses"
	"github.com/freshroute/freshroute-backend/api/validators"
	"github.com/freshroute/freshroute-backend/internal/containers"
	"github.com/freshroute/freshroute-backend/pkg/enums"
	pkgerrors "github.com/freshroute/freshroute-backend/pkg/errors"
	"github.com/freshroute/freshroute-backend/pkg/logger"
	"github.com/freshroute/freshroute-backend/pkg/types"
)

type containerIntakeRequest struct {
	Label string     `json:"label" validate:"required"`
	Actor string     `json:"actor"`
	Meta  types.Meta `json:"meta"`
}

// ContainerIntake registers a container arriving at the intake gate.
func ContainerIntake(svc containers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload containerIntakeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		container, err := svc.Intake(r.Context(), containers.IntakeInput{
			Label: payload.Label,
			Actor: payload.Actor,
			Meta:  payload.Meta,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, container)
	}
}

type containerAdvanceRequest struct {
	ToState        string     `json:"to_state" validate:"required"`
	Actor          string     `json:"actor"`
	Meta           types.Meta `json:"meta"`
	Reason         string     `json:"reason"`
	CleaningMethod string     `json:"cleaning_method"`
	WeightKg       *string    `json:"weight_kg"`
	Grade          string     `json:"grade"`
	Category       string     `json:"category"`
	Zone           *string    `json:"zone"`
	Aisle          *string    `json:"aisle"`
	ShelfID        *string    `json:"shelf_id"`
	SlotID         *int       `json:"slot_id"`
}

func (req containerAdvanceRequest) toInput(containerID uuid.UUID) (containers.AdvanceInput, error) {
	toState, err := enums.ParseContainerState(strings.TrimSpace(req.ToState))
	if err != nil {
		return containers.AdvanceInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid container state")
	}

	input := containers.AdvanceInput{
		ContainerID:    containerID,
		ToState:        toState,
		Actor:          req.Actor,
		Meta:           req.Meta,
		Reason:         req.Reason,
		CleaningMethod: req.CleaningMethod,
		Grade:          req.Grade,
		Category:       req.Category,
		Zone:           req.Zone,
		Aisle:          req.Aisle,
		SlotID:         req.SlotID,
	}

	if req.WeightKg != nil {
		weight, err := decimal.NewFromString(strings.TrimSpace(*req.WeightKg))
		if err != nil {
			return containers.AdvanceInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid weight_kg")
		}
		input.WeightKg = &weight
	}
	if req.ShelfID != nil {
		shelfID, err := uuid.Parse(strings.TrimSpace(*req.ShelfID))
		if err != nil {
			return containers.AdvanceInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shelf_id")
		}
		input.ShelfID = &shelfID
	}
	return input, nil
}

// ContainerAdvance applies one scan event to a container.
func ContainerAdvance(svc containers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		containerID, err := containerIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload containerAdvanceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(containerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		container, err := svc.Advance(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, container)
	}
}

// ContainerGet returns the full ops record including the audit trail.
func ContainerGet(svc containers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		containerID, err := containerIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		container, err := svc.Get(r.Context(), containerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, container)
	}
}

// ContainerList returns a cursor page of containers, optionally filtered by state.
func ContainerList(svc containers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := containers.ListParams{
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit

		if raw := strings.TrimSpace(r.URL.Query().Get("state")); raw != "" {
			state, err := enums.ParseContainerState(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid container state filter"))
				return
			}
			params.State = &state
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func containerIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "containerId")
	containerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid container id")
	}
	return containerID, nil
}
