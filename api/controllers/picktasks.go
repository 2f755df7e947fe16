package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshroute/freshroute-backend/api/responses"
	"github.com/freshroute/freshroute-backend/api/validators"
	"github.com/freshroute/freshroute-backend/internal/picktasks"
	"github.com/freshroute/freshroute-backend/pkg/enums"
	pkgerrors "github.com/freshroute/freshroute-backend/pkg/errors"
	"github.com/freshroute/freshroute-backend/pkg/logger"
)

type pickTaskItemRequest struct {
	ItemID        string `json:"item_id" validate:"required"`
	QuantityKg    string `json:"quantity_kg" validate:"required"`
	QuantityUnits int    `json:"quantity_units"`
	ContainerID   string `json:"container_id" validate:"required"`
}

type pickTaskCreateRequest struct {
	OrderID string                `json:"order_id" validate:"required"`
	Actor   string                `json:"actor"`
	Items   []pickTaskItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (req pickTaskCreateRequest) toInput() (picktasks.PlanInput, error) {
	orderID, err := uuid.Parse(strings.TrimSpace(req.OrderID))
	if err != nil {
		return picktasks.PlanInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order_id")
	}

	items := make([]picktasks.ItemPlan, 0, len(req.Items))
	for _, item := range req.Items {
		itemID, err := uuid.Parse(strings.TrimSpace(item.ItemID))
		if err != nil {
			return picktasks.PlanInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item_id")
		}
		containerID, err := uuid.Parse(strings.TrimSpace(item.ContainerID))
		if err != nil {
			return picktasks.PlanInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid container_id")
		}
		quantity, err := decimal.NewFromString(strings.TrimSpace(item.QuantityKg))
		if err != nil {
			return picktasks.PlanInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid quantity_kg")
		}
		items = append(items, picktasks.ItemPlan{
			ItemID:        itemID,
			QuantityKg:    quantity,
			QuantityUnits: item.QuantityUnits,
			ContainerID:   containerID,
		})
	}

	return picktasks.PlanInput{
		OrderID: orderID,
		Actor:   req.Actor,
		Items:   items,
	}, nil
}

// PickTaskCreate plans a pick task for an order.
func PickTaskCreate(svc picktasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload pickTaskCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.Plan(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, task)
	}
}

type pickTaskClaimRequest struct {
	PickerID string `json:"picker_id" validate:"required"`
}

// PickTaskClaim assigns a pending task to a picker.
func PickTaskClaim(svc picktasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := taskIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload pickTaskClaimRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pickerID, err := uuid.Parse(strings.TrimSpace(payload.PickerID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid picker_id"))
			return
		}

		task, err := svc.Claim(r.Context(), taskID, pickerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, task)
	}
}

type pickTaskCompleteRequest struct {
	Actor string `json:"actor"`
}

// PickTaskComplete closes an in-progress task once every item is covered.
func PickTaskComplete(svc picktasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := taskIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload pickTaskCompleteRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		task, err := svc.Complete(r.Context(), taskID, payload.Actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, task)
	}
}

type pickTaskCancelRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

// PickTaskCancel cancels a pending or in-progress task.
func PickTaskCancel(svc picktasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := taskIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload pickTaskCancelRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		task, err := svc.Cancel(r.Context(), taskID, payload.Reason, payload.Actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, task)
	}
}

// PickTaskGet returns one task with its shelf assignments.
func PickTaskGet(svc picktasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := taskIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.Get(r.Context(), taskID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, task)
	}
}

// PickTaskList returns a cursor page of tasks, optionally filtered by state.
func PickTaskList(svc picktasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := picktasks.ListParams{
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit

		if raw := strings.TrimSpace(r.URL.Query().Get("state")); raw != "" {
			state, err := enums.ParsePickTaskState(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid pick task state filter"))
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

func taskIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "taskId")
	taskID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid task id")
	}
	return taskID, nil
}
