package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/freshroute/freshroute-backend/internal/containers"
	"github.com/freshroute/freshroute-backend/internal/crowd"
	"github.com/freshroute/freshroute-backend/internal/picktasks"
	"github.com/freshroute/freshroute-backend/pkg/config"
	"github.com/freshroute/freshroute-backend/pkg/db/models"
	"github.com/freshroute/freshroute-backend/pkg/enums"
	pkgerrors "github.com/freshroute/freshroute-backend/pkg/errors"
	"github.com/freshroute/freshroute-backend/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubShelfRegistry struct {
	shelves []models.Shelf
}

func (s *stubShelfRegistry) Create(_ context.Context, shelf *models.Shelf) (*models.Shelf, error) {
	shelf.ID = uuid.New()
	s.shelves = append(s.shelves, *shelf)
	return shelf, nil
}

func (s *stubShelfRegistry) FindByCode(_ context.Context, code string) (*models.Shelf, error) {
	for i := range s.shelves {
		if s.shelves[i].Code == code {
			return &s.shelves[i], nil
		}
	}
	return nil, nil
}

func (s *stubShelfRegistry) ListActive(context.Context) ([]models.Shelf, error) {
	return s.shelves, nil
}

type stubCrowdService struct {
	status *crowd.Status
}

func (s *stubCrowdService) Bump(_ context.Context, shelfID uuid.UUID, _ enums.CrowdActivity, _ int) (*crowd.Status, error) {
	return &crowd.Status{ShelfID: shelfID}, nil
}

func (s *stubCrowdService) ComputeShelfCrowd(_ context.Context, shelfID uuid.UUID, _ *float64) (*crowd.Status, error) {
	if s.status != nil {
		return s.status, nil
	}
	return &crowd.Status{ShelfID: shelfID}, nil
}

func (s *stubCrowdService) GetNonCrowded(context.Context, int, *float64) ([]crowd.Status, error) {
	return []crowd.Status{}, nil
}

type stubContainerService struct{}

func (stubContainerService) Intake(_ context.Context, input containers.IntakeInput) (*models.ContainerOps, error) {
	if strings.TrimSpace(input.Label) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label is required")
	}
	return &models.ContainerOps{ID: uuid.New(), Label: input.Label, State: enums.ContainerStateArrived}, nil
}

func (stubContainerService) Advance(_ context.Context, input containers.AdvanceInput) (*models.ContainerOps, error) {
	return &models.ContainerOps{ID: input.ContainerID, State: input.ToState}, nil
}

func (stubContainerService) Get(_ context.Context, id uuid.UUID) (*models.ContainerOps, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "container not found")
}

func (stubContainerService) List(context.Context, containers.ListParams) (*containers.ListResult, error) {
	return &containers.ListResult{}, nil
}

type stubPickTaskService struct{}

func (stubPickTaskService) Plan(_ context.Context, input picktasks.PlanInput) (*models.PickTask, error) {
	return &models.PickTask{ID: uuid.New(), OrderID: input.OrderID, State: enums.PickTaskStatePending}, nil
}

func (stubPickTaskService) Claim(_ context.Context, taskID, pickerID uuid.UUID) (*models.PickTask, error) {
	return &models.PickTask{ID: taskID, AssignedTo: &pickerID, State: enums.PickTaskStateInProgress}, nil
}

func (stubPickTaskService) Complete(_ context.Context, taskID uuid.UUID, _ string) (*models.PickTask, error) {
	return &models.PickTask{ID: taskID, State: enums.PickTaskStateCompleted}, nil
}

func (stubPickTaskService) Cancel(_ context.Context, taskID uuid.UUID, _, _ string) (*models.PickTask, error) {
	return &models.PickTask{ID: taskID, State: enums.PickTaskStateCanceled}, nil
}

func (stubPickTaskService) Get(context.Context, uuid.UUID) (*models.PickTask, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pick task not found")
}

func (stubPickTaskService) List(context.Context, picktasks.ListParams) (*picktasks.ListResult, error) {
	return &picktasks.ListResult{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
	}
}

func newTestRouter(dbErr error) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(RouterParams{
		Config:     testConfig(),
		Logger:     logg,
		DB:         stubPinger{err: dbErr},
		Redis:      stubPinger{},
		Shelves:    &stubShelfRegistry{},
		Crowd:      &stubCrowdService{},
		Containers: stubContainerService{},
		PickTasks:  stubPickTaskService{},
	})
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(nil)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-FreshRoute-Env") != "test" {
		t.Fatalf("expected env header")
	}
}

func TestHealthReadyReportsDependencyFailure(t *testing.T) {
	router := newTestRouter(context.DeadlineExceeded)
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestShelfCrowdRejectsBadShelfID(t *testing.T) {
	router := newTestRouter(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/shelves/not-a-uuid/crowd", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestShelfCrowdBumpRoundTrip(t *testing.T) {
	router := newTestRouter(nil)
	body := `{"kind":"pick","delta":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shelves/"+uuid.NewString()+"/crowd/bump", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body %s", resp.Code, resp.Body.String())
	}
}

func TestShelfCrowdBumpRejectsUnknownKind(t *testing.T) {
	router := newTestRouter(nil)
	body := `{"kind":"polish","delta":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shelves/"+uuid.NewString()+"/crowd/bump", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestContainerIntakeCreates(t *testing.T) {
	router := newTestRouter(nil)
	body := `{"label":"FR-1001","actor":"gate-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/containers", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data models.ContainerOps `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.State != enums.ContainerStateArrived {
		t.Fatalf("expected arrived state, got %s", envelope.Data.State)
	}
}

func TestContainerIntakeRejectsMissingLabel(t *testing.T) {
	router := newTestRouter(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/containers", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestContainerAdvanceRejectsUnknownState(t *testing.T) {
	router := newTestRouter(nil)
	body := `{"to_state":"levitating"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/containers/"+uuid.NewString()+"/advance", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestContainerGetMissingIs404(t *testing.T) {
	router := newTestRouter(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/containers/"+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestPickTaskCreateRoundTrip(t *testing.T) {
	router := newTestRouter(nil)
	body := `{"order_id":"` + uuid.NewString() + `","items":[{"item_id":"` + uuid.NewString() + `","quantity_kg":"2.5","container_id":"` + uuid.NewString() + `"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pick-tasks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body %s", resp.Code, resp.Body.String())
	}
}

func TestPickTaskClaimRejectsBadPicker(t *testing.T) {
	router := newTestRouter(nil)
	body := `{"picker_id":"nope"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pick-tasks/"+uuid.NewString()+"/claim", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestShelfNonCrowdedRoute(t *testing.T) {
	router := newTestRouter(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/shelves/non-crowded?limit=5", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
