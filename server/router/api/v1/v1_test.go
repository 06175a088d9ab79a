package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/gitrag-ai/gitrag/internal/profile"
	aip "github.com/gitrag-ai/gitrag/plugin/ai"
	"github.com/gitrag-ai/gitrag/plugin/ai/router"
	"github.com/gitrag-ai/gitrag/plugin/mail"
	"github.com/gitrag-ai/gitrag/server/dispatch"
	"github.com/gitrag-ai/gitrag/server/queue"
	"github.com/gitrag-ai/gitrag/server/service/ingest"
	"github.com/gitrag-ai/gitrag/server/service/rag"
	"github.com/gitrag-ai/gitrag/server/service/report"
	"github.com/gitrag-ai/gitrag/server/service/schedule"
	"github.com/gitrag-ai/gitrag/store"
	"github.com/gitrag-ai/gitrag/store/db"
)

type fakeGenerator struct {
	gen *router.Generation
	err error
}

func (f *fakeGenerator) GenerateWithTools(context.Context, string, []router.Message, []router.ToolSpec) (*router.Generation, error) {
	return f.gen, f.err
}

type fakeRAGProvider struct{}

func (fakeRAGProvider) Chat(context.Context, []aip.Message) (string, error) {
	return "hello from chat", nil
}

func (fakeRAGProvider) ChatStream(_ context.Context, _ []aip.Message, onChunk func(string) error) error {
	for _, chunk := range []string{"str", "eam"} {
		if err := onChunk(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (fakeRAGProvider) ChatJSON(context.Context, []aip.Message) (string, error) {
	return `{"analysis_markdown": "# Report", "chart_json": ""}`, nil
}

func (fakeRAGProvider) ClassifyJSON(context.Context, string, string) (string, error) {
	return `{"category": "semantic"}`, nil
}

func (fakeRAGProvider) Embedding(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type fakeIngestor struct{}

func (fakeIngestor) Run(_ context.Context, _, repoRef string) (*ingest.Result, error) {
	return &ingest.Result{Repo: repoRef, Documents: 1}, nil
}

type nopNotifier struct{}

func (nopNotifier) Send(context.Context, mail.Email) error { return nil }

type fixture struct {
	api   *APIV1Service
	e     *echo.Echo
	gen   *fakeGenerator
	st    *store.Store
	dir   string
	queue *queue.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p := &profile.Profile{
		Mode: "dev", Driver: "sqlite", DSN: "file:" + t.TempDir() + "/api.db",
		Version: "test", InstanceURL: "http://localhost:8081",
	}
	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)
	st := store.New(driver, p)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	queues := queue.NewManager(
		queue.Config{Name: dispatch.QueueIngest, Workers: 1, MaxAttempts: 1},
		queue.Config{Name: dispatch.QueueReports, Workers: 1, MaxAttempts: 1},
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = queues.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	gen := &fakeGenerator{}
	rt := router.New(gen, router.NewCatalog())

	dir := t.TempDir()
	ragService := rag.NewService(st, fakeRAGProvider{})
	reportService := report.NewService(st, fakeRAGProvider{}, nopNotifier{}, dir)
	scheduleService := schedule.NewService(st, nopNotifier{}, p.InstanceURL)
	dispatcher := dispatch.New(queues, ragService, fakeIngestor{}, reportService, scheduleService)

	api := NewAPIV1Service(p, rt, dispatcher, queues, ragService, reportService, scheduleService)
	e := echo.New()
	api.RegisterRoutes(e)

	return &fixture{api: api, e: e, gen: gen, st: st, dir: dir, queue: queues}
}

func (f *fixture) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeChat(t *testing.T, rec *httptest.ResponseRecorder) ChatResponse {
	t.Helper()
	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}

func TestChatValidation(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusBadRequest, f.post(t, "/api/v1/chat", `{"message": "hi"}`).Code)
	require.Equal(t, http.StatusBadRequest, f.post(t, "/api/v1/chat", `{"user_email": "a@b.c"}`).Code)
}

func TestChatAnswer(t *testing.T) {
	f := newFixture(t)
	f.gen.gen = &router.Generation{Text: "Hi! How can I help?"}

	rec := f.post(t, "/api/v1/chat", `{"user_email": "a@b.c", "message": "oi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeChat(t, rec)
	require.Equal(t, "answer", resp.Kind)
	require.Equal(t, "Hi! How can I help?", resp.Text)
}

func TestChatClarificationOnGeneratorFailure(t *testing.T) {
	f := newFixture(t)
	f.gen.err = context.DeadlineExceeded

	resp := decodeChat(t, f.post(t, "/api/v1/chat", `{"user_email": "a@b.c", "message": "index acme/widgets"}`))
	require.Equal(t, "clarification", resp.Kind)
	require.NotEmpty(t, resp.Text)
}

func TestChatSideEffectingPlanNeedsConfirmation(t *testing.T) {
	f := newFixture(t)
	f.gen.gen = &router.Generation{Calls: []router.ToolCall{
		{Name: "ingest", Arguments: `{"repository": "acme/widgets"}`},
	}}

	resp := decodeChat(t, f.post(t, "/api/v1/chat", `{"user_email": "a@b.c", "message": "index acme/widgets"}`))
	require.Equal(t, "confirmation", resp.Kind)
	require.Contains(t, resp.Text, "acme/widgets")
	require.Len(t, resp.Steps, 1)
}

func TestChatConfirmedPlanDispatches(t *testing.T) {
	f := newFixture(t)
	f.gen.gen = &router.Generation{Calls: []router.ToolCall{
		{Name: "ingest", Arguments: `{"repository": "acme/widgets"}`},
	}}

	resp := decodeChat(t, f.post(t, "/api/v1/chat",
		`{"user_email": "a@b.c", "message": "index acme/widgets", "confirmed": true}`))
	require.Equal(t, "plan", resp.Kind)
	require.Len(t, resp.Outcomes, 1)
	require.NotEmpty(t, resp.Outcomes[0].JobID)

	// The job is visible through the jobs endpoint.
	deadline := time.After(5 * time.Second)
	for {
		rec := f.get(t, "/api/v1/jobs/"+resp.Outcomes[0].JobID)
		require.Equal(t, http.StatusOK, rec.Code)
		var job queue.Job
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
		if job.Status == queue.StatusSucceeded {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never finished")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestChatStreamSingleQuery(t *testing.T) {
	f := newFixture(t)
	_, err := f.st.UpsertDocument(context.Background(), &store.Document{
		UserEmail: "a@b.c", Repo: "acme/widgets", Kind: "issue", SourceID: "1",
		Content: "issue text", CreatedTs: time.Now().Unix(), Embedding: []float32{1, 0},
	})
	require.NoError(t, err)

	f.gen.gen = &router.Generation{Calls: []router.ToolCall{
		{Name: "query", Arguments: `{"repository": "acme/widgets", "user_question": "what changed?"}`},
	}}

	rec := f.post(t, "/api/v1/chat/stream", `{"user_email": "a@b.c", "message": "what changed?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/event-stream")
	require.Contains(t, rec.Body.String(), "data: str")
	require.Contains(t, rec.Body.String(), "data: [done]")
}

func TestGetJobNotFound(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusNotFound, f.get(t, "/api/v1/jobs/nope").Code)
}

func TestDownloadReport(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "report-abc.html"), []byte("<html>x</html>"), 0o644))

	rec := f.get(t, "/api/v1/reports/report-abc.html")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "<html>")

	require.Equal(t, http.StatusNotFound, f.get(t, "/api/v1/reports/missing.html").Code)
	require.Equal(t, http.StatusNotFound, f.get(t, "/api/v1/reports/..%2Fsecret").Code)
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/email/verify").Code)
	require.Equal(t, http.StatusNotFound, f.get(t, "/api/v1/email/verify?token=nope").Code)

	_, err := f.st.UpsertVerifiedEmail(context.Background(), &store.VerifiedEmail{
		Email: "dest@example.com", Token: "tok-1", CreatedTs: 1,
	})
	require.NoError(t, err)

	rec := f.get(t, "/api/v1/email/verify?token=tok-1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"verified":true`)
}
