package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	commonmw "execoj/internal/common/http/middleware"
	"execoj/internal/execution/controller"
	"execoj/internal/execution/model"
	"execoj/internal/execution/scheduler"
	"execoj/internal/execution/validator"
	appErr "execoj/pkg/errors"

	"github.com/gin-gonic/gin"
)

type fakeService struct {
	payload   validator.Payload
	submitErr error
	view      *scheduler.StatusView
	statusErr error
	cancelErr error
}

func (f *fakeService) Submit(_ context.Context, p validator.Payload) (string, error) {
	f.payload = p
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "exec-42", nil
}

func (f *fakeService) Status(context.Context, string) (*scheduler.StatusView, error) {
	return f.view, f.statusErr
}

func (f *fakeService) Cancel(context.Context, string) error { return f.cancelErr }

func (f *fakeService) Stats() scheduler.Stats {
	return scheduler.Stats{QueueLength: 3, MaxConcurrentExecutions: 10}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
	TraceID string          `json:"trace_id"`
}

func newRouter(svc *fakeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(commonmw.TraceContextMiddleware())
	controller.NewExecutionController(svc).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func do(t *testing.T, router *gin.Engine, method, path string, body []byte, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response failed: %v (%s)", err, w.Body.String())
	}
	return w, env
}

func TestSubmitAccepted(t *testing.T) {
	svc := &fakeService{}
	router := newRouter(svc)
	body := []byte(`{"code":"print(1)","language":"python","category":"algorithm","options":{"timeout":2000},"testCases":[{"input":"","expectedOutput":"1"}]}`)

	w, env := do(t, router, http.MethodPost, "/api/v1/execute", body, map[string]string{"X-User-Id": "u-7"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var data controller.SubmitResponse
	_ = json.Unmarshal(env.Data, &data)
	if data.RequestID != "exec-42" {
		t.Fatalf("unexpected request id: %q", data.RequestID)
	}
	if env.TraceID == "" {
		t.Fatal("expected trace id in envelope")
	}
	if svc.payload.SubmitterID != "u-7" {
		t.Fatalf("submitter not propagated: %q", svc.payload.SubmitterID)
	}
	if svc.payload.Options == nil || svc.payload.Options.Timeout == nil || *svc.payload.Options.Timeout != 2000 {
		t.Fatalf("options not decoded: %+v", svc.payload.Options)
	}
}

func TestSubmitErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "malformed json", body: `{"code":`, status: http.StatusBadRequest},
		{name: "violations", body: `{}`, err: appErr.Violations([]string{"code is required"}), status: http.StatusBadRequest},
		{name: "queue full", body: `{}`, err: appErr.New(appErr.ExecutionQueueFull), status: http.StatusServiceUnavailable},
		{name: "no tests", body: `{}`, err: appErr.New(appErr.NoTestCases), status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newRouter(&fakeService{submitErr: tc.err})
			w, _ := do(t, router, http.MethodPost, "/api/v1/execute", []byte(tc.body), nil)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestSubmitViolationsAreListed(t *testing.T) {
	router := newRouter(&fakeService{submitErr: appErr.Violations([]string{"code is required", "language is required"})})
	_, env := do(t, router, http.MethodPost, "/api/v1/execute", []byte(`{}`), nil)

	var details struct {
		Violations []string `json:"violations"`
	}
	if err := json.Unmarshal(env.Details, &details); err != nil {
		t.Fatalf("decode details failed: %v", err)
	}
	if len(details.Violations) != 2 {
		t.Fatalf("expected two violations, got %v", details.Violations)
	}
}

func TestGetStatus(t *testing.T) {
	wait := int64(5000)
	router := newRouter(&fakeService{view: &scheduler.StatusView{
		ID: "exec-42", Status: model.StatusQueued, Position: 2, TotalInQueue: 3, EstimatedWaitMs: &wait,
	}})
	w, env := do(t, router, http.MethodGet, "/api/v1/execute/exec-42", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var data map[string]any
	_ = json.Unmarshal(env.Data, &data)
	if data["status"] != "queued" || data["position"] != float64(2) || data["estimatedWaitTime"] != float64(5000) {
		t.Fatalf("unexpected status body: %v", data)
	}

	router = newRouter(&fakeService{statusErr: appErr.New(appErr.ExecutionNotFound)})
	if w, _ := do(t, router, http.MethodGet, "/api/v1/execute/missing", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCancel(t *testing.T) {
	router := newRouter(&fakeService{})
	w, env := do(t, router, http.MethodDelete, "/api/v1/execute/exec-42", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var data controller.CancelResponse
	_ = json.Unmarshal(env.Data, &data)
	if !data.Cancelled {
		t.Fatal("expected cancelled=true")
	}

	router = newRouter(&fakeService{cancelErr: appErr.New(appErr.NotCancellable)})
	if w, _ := do(t, router, http.MethodDelete, "/api/v1/execute/exec-42", nil, nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestStats(t *testing.T) {
	router := newRouter(&fakeService{})
	w, env := do(t, router, http.MethodGet, "/api/v1/execute/stats", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var data scheduler.Stats
	_ = json.Unmarshal(env.Data, &data)
	if data.QueueLength != 3 || data.MaxConcurrentExecutions != 10 {
		t.Fatalf("unexpected stats: %+v", data)
	}
}
