package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
)

type stubPipeline struct {
	calls   int
	verdict model.Verdict
}

func (s *stubPipeline) Check(ctx context.Context, input string) model.Verdict {
	s.calls++
	v := s.verdict
	v.Input = input
	return v
}

type stubRPC struct {
	routingKey string
	reply      json.RawMessage
	err        error
}

func (s *stubRPC) Call(ctx context.Context, routingKey string, payload any) (json.RawMessage, error) {
	s.routingKey = routingKey
	return s.reply, s.err
}

type stubJobs struct {
	nextID  int64
	created int
	job     *model.Job
}

func (s *stubJobs) CreateJob(ctx context.Context, totalRecords int) (int64, error) {
	s.created = totalRecords
	return s.nextID, nil
}

func (s *stubJobs) FindJobByID(ctx context.Context, id int64) (*model.Job, error) {
	if s.job == nil {
		return nil, pgx.ErrNoRows
	}
	return s.job, nil
}

type stubResults struct {
	count int
	rows  []model.TaskResult
}

func (s *stubResults) ListByJob(ctx context.Context, jobID int64, limit, offset int) ([]model.TaskResult, error) {
	if offset >= len(s.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], nil
}

func (s *stubResults) CountByJob(ctx context.Context, jobID int64) (int, error) {
	return s.count, nil
}

type stubPublisher struct {
	published []model.Task
	keys      []string
	err       error
}

func (s *stubPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	if s.err != nil {
		return s.err
	}
	s.keys = append(s.keys, routingKey)
	s.published = append(s.published, payload.(model.Task))
	return nil
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestCheckInline(t *testing.T) {
	pipeline := &stubPipeline{verdict: model.Verdict{IsReachable: model.ReachableSafe}}
	h := NewCheckHandler(pipeline, nil, zap.NewNop())

	r := newEngine()
	r.POST("/v0/check_email", h.CheckInline)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v0/check_email",
		strings.NewReader(`{"to_email":"alice@acme.com"}`))
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var verdict model.Verdict
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if verdict.Input != "alice@acme.com" || verdict.IsReachable != model.ReachableSafe {
		t.Errorf("verdict = %+v", verdict)
	}
}

func TestCheckInlineRejectsMissingEmail(t *testing.T) {
	pipeline := &stubPipeline{}
	h := NewCheckHandler(pipeline, nil, zap.NewNop())

	r := newEngine()
	r.POST("/v0/check_email", h.CheckInline)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v0/check_email", strings.NewReader(`{}`))
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if pipeline.calls != 0 {
		t.Errorf("pipeline ran %d times on a bad request", pipeline.calls)
	}
}

func TestCheckQueuedRoutesByProvider(t *testing.T) {
	rpc := &stubRPC{reply: json.RawMessage(`{"is_reachable":"safe"}`)}
	h := NewCheckHandler(&stubPipeline{}, rpc, zap.NewNop())

	r := newEngine()
	r.POST("/v1/check_email", h.CheckQueued)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/check_email",
		strings.NewReader(`{"to_email":"alice@gmail.com"}`))
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rpc.routingKey != model.QueueGmail {
		t.Errorf("routing key = %q, want %q", rpc.routingKey, model.QueueGmail)
	}
	if !strings.Contains(rec.Body.String(), `"safe"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCheckQueuedTimesOut(t *testing.T) {
	rpc := &stubRPC{err: context.DeadlineExceeded}
	h := NewCheckHandler(&stubPipeline{}, rpc, zap.NewNop())

	r := newEngine()
	r.POST("/v1/check_email", h.CheckQueued)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/check_email",
		strings.NewReader(`{"to_email":"bob@acme.com"}`))
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
}

func TestCreateBulkFansOutToQueues(t *testing.T) {
	jobs := &stubJobs{nextID: 42}
	pub := &stubPublisher{}
	h := NewBulkHandler(jobs, &stubResults{}, pub, zap.NewNop())

	r := newEngine()
	r.POST("/v1/bulk", h.CreateBulk)

	body := `{"input":["a@gmail.com","b@yahoo.com","c@acme.com"],"webhook":{"url":"https://hooks.test/done"}}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/bulk", strings.NewReader(body))
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if jobs.created != 3 {
		t.Errorf("job size = %d, want 3", jobs.created)
	}
	wantKeys := []string{model.QueueGmail, model.QueueYahoo, model.QueueEverythingElse}
	if len(pub.keys) != 3 {
		t.Fatalf("published = %d, want 3", len(pub.keys))
	}
	for i, want := range wantKeys {
		if pub.keys[i] != want {
			t.Errorf("task %d routed to %q, want %q", i, pub.keys[i], want)
		}
	}
	for _, task := range pub.published {
		if task.JobID != 42 {
			t.Errorf("task job id = %d, want 42", task.JobID)
		}
		if task.Webhook == nil || task.Webhook.URL != "https://hooks.test/done" {
			t.Errorf("task webhook = %+v", task.Webhook)
		}
	}
}

func TestCreateBulkRejectsEmptyInput(t *testing.T) {
	h := NewBulkHandler(&stubJobs{}, &stubResults{}, &stubPublisher{}, zap.NewNop())

	r := newEngine()
	r.POST("/v1/bulk", h.CreateBulk)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/bulk", strings.NewReader(`{"input":[]}`))
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetBulkStatus(t *testing.T) {
	jobs := &stubJobs{job: &model.Job{ID: 7, TotalRecords: 10}}
	results := &stubResults{count: 10}
	h := NewBulkHandler(jobs, results, &stubPublisher{}, zap.NewNop())

	r := newEngine()
	r.GET("/v1/bulk/:job_id", h.GetBulkStatus)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/bulk/7", nil)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		JobID          int64 `json:"job_id"`
		TotalRecords   int   `json:"total_records"`
		TotalProcessed int   `json:"total_processed"`
		Finished       bool  `json:"finished"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Finished || resp.TotalProcessed != 10 {
		t.Errorf("response = %+v", resp)
	}
}

func TestGetBulkStatusNotFound(t *testing.T) {
	h := NewBulkHandler(&stubJobs{}, &stubResults{}, &stubPublisher{}, zap.NewNop())

	r := newEngine()
	r.GET("/v1/bulk/:job_id", h.GetBulkStatus)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/bulk/999", nil)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetBulkResultsPaging(t *testing.T) {
	rows := make([]model.TaskResult, 5)
	for i := range rows {
		rows[i] = model.TaskResult{ID: int64(i + 1), JobID: 7, Email: "x@acme.com"}
	}
	h := NewBulkHandler(&stubJobs{job: &model.Job{ID: 7}}, &stubResults{rows: rows}, &stubPublisher{}, zap.NewNop())

	r := newEngine()
	r.GET("/v1/bulk/:job_id/results", h.GetBulkResults)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/bulk/7/results?limit=2&offset=3", nil)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Results []model.TaskResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(resp.Results))
	}
	if resp.Results[0].ID != 4 {
		t.Errorf("first id = %d, want 4", resp.Results[0].ID)
	}
}

type stubReplayer struct {
	limit    int
	replayed int
	err      error
}

func (s *stubReplayer) ReplayFailed(ctx context.Context, limit int) (int, error) {
	s.limit = limit
	return s.replayed, s.err
}

func TestReplayOutbox(t *testing.T) {
	rep := &stubReplayer{replayed: 3}
	h := NewAdminHandler(rep, zap.NewNop())

	r := newEngine()
	r.POST("/v1/outbox/replay", h.ReplayOutbox)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/outbox/replay?limit=10", nil)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rep.limit != 10 {
		t.Errorf("limit = %d, want 10", rep.limit)
	}
	if !strings.Contains(rec.Body.String(), `"replayed":3`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestReplayOutboxUnconfigured(t *testing.T) {
	h := NewAdminHandler(nil, zap.NewNop())

	r := newEngine()
	r.POST("/v1/outbox/replay", h.ReplayOutbox)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/outbox/replay", nil)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestCreateBulkPublishFailureReported(t *testing.T) {
	jobs := &stubJobs{nextID: 8}
	pub := &stubPublisher{err: errors.New("broker gone")}
	h := NewBulkHandler(jobs, &stubResults{}, pub, zap.NewNop())

	r := newEngine()
	r.POST("/v1/bulk", h.CreateBulk)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/bulk", strings.NewReader(`{"input":["a@acme.com"]}`))
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var resp struct {
		Published int `json:"published"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Published != 0 {
		t.Errorf("published = %d, want 0", resp.Published)
	}
}
