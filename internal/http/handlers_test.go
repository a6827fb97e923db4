package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"vodworks/internal/config"
	"vodworks/internal/hls"
	"vodworks/internal/jobs"
	"vodworks/internal/model"
	"vodworks/internal/pipeline"
	"vodworks/internal/session"
	"vodworks/internal/workspace"
)

type fakeDownloader struct {
	fetchErr error
	infoErr  error
}

func (f *fakeDownloader) Fetch(ctx context.Context, url, dir, format string, audioOnly bool) (model.FetchResult, error) {
	if f.fetchErr != nil {
		return model.FetchResult{}, f.fetchErr
	}
	path := filepath.Join(dir, "raw.mp4")
	content := []byte("fake video bytes")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return model.FetchResult{}, err
	}
	return model.FetchResult{Path: path, Filename: "clip.mp4", Size: int64(len(content)), Extension: "mp4"}, nil
}

func (f *fakeDownloader) Info(ctx context.Context, url string) (model.SourceInfo, error) {
	if f.infoErr != nil {
		return model.SourceInfo{}, f.infoErr
	}
	return model.SourceInfo{Title: "Test Clip", DurationSeconds: 12.5, Uploader: "tester"}, nil
}

type fakeTranscoder struct{}

func (fakeTranscoder) Probe(ctx context.Context, inputPath string) (model.ProbeResult, error) {
	return model.ProbeResult{}, nil
}

func (fakeTranscoder) Transcode(ctx context.Context, inputPath string, opts model.TranscodeOptions) (string, error) {
	out := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "_transcoded.mp4"
	return out, os.WriteFile(out, []byte("transcoded"), 0o644)
}

func (fakeTranscoder) ExtractAudio(ctx context.Context, inputPath, format string, opts model.AudioOptions) (string, error) {
	out := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".mp3"
	return out, os.WriteFile(out, []byte("audio"), 0o644)
}

func (fakeTranscoder) GenerateThumbnails(ctx context.Context, inputPath, dir string, count int) ([]string, error) {
	var names []string
	for i := 1; i <= count; i++ {
		name := fmt.Sprintf("thumb_%03d.jpg", i)
		if err := os.WriteFile(filepath.Join(dir, name), []byte("jpeg"), 0o644); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func (fakeTranscoder) PackageSegments(ctx context.Context, inputPath, dir string, variant hls.Variant, segmentSeconds int) error {
	return os.WriteFile(filepath.Join(dir, "playlist.m3u8"), []byte("#EXTM3U\n"), 0o644)
}

type testEnv struct {
	app   *fiber.App
	store *session.Store
	ws    *workspace.Manager
}

func newTestEnv(t *testing.T, dl *fakeDownloader) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := config.Default()
	cfg.Workspace.Root = t.TempDir()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := session.NewStore(rdb, 2*time.Hour, logger)
	q := jobs.NewQueue(rdb, cfg.Sessions.QueueKey)

	ws, err := workspace.NewManager(cfg.Workspace.Root, logger)
	if err != nil {
		t.Fatal(err)
	}

	runner := pipeline.NewRunner(ws, dl, fakeTranscoder{}, cfg, logger)
	disp := jobs.NewDispatcher(st, q, runner, logger)

	srv := NewServer(cfg, st, ws, disp, dl, rdb, logger)
	return &testEnv{app: srv.App(), store: st, ws: ws}
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func get(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return out
}

func TestSubmitAsync(t *testing.T) {
	env := newTestEnv(t, &fakeDownloader{})

	resp := postJSON(t, env.app, "/v1/media/download", SubmitRequest{URL: "https://example.com/v"})
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	sub := decode[SubmitResponse](t, resp)
	if !sub.Success || sub.ID == "" || sub.Status != "pending" {
		t.Fatalf("unexpected submit response %+v", sub)
	}

	statusResp := get(t, env.app, "/v1/media/status/"+sub.ID)
	if statusResp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", statusResp.StatusCode)
	}
	st := decode[StatusResponse](t, statusResp)
	if st.Session.Status != session.StatusPending || st.Session.Kind != model.KindDownload {
		t.Fatalf("unexpected session %+v", st.Session)
	}
}

func TestSubmitRequiresURL(t *testing.T) {
	env := newTestEnv(t, &fakeDownloader{})

	for _, path := range []string{"/v1/media/download", "/v1/media/audio", "/v1/media/hls", "/v1/media/thumbnails", "/v1/media/info"} {
		resp := postJSON(t, env.app, path, SubmitRequest{})
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("%s: expected 400 for missing url, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestSubmitSync(t *testing.T) {
	env := newTestEnv(t, &fakeDownloader{})

	resp := postJSON(t, env.app, "/v1/media/download", SubmitRequest{URL: "u", Sync: true})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	out := decode[SyncResponse](t, resp)
	if out.Result == nil || out.Result.Filename != "clip.mp4" {
		t.Fatalf("unexpected sync result %+v", out)
	}

	// Synchronous jobs leave no status record.
	listResp := get(t, env.app, "/v1/media/sessions")
	list := decode[SessionsResponse](t, listResp)
	if list.Count != 0 {
		t.Fatalf("expected no sessions after sync run, got %d", list.Count)
	}
}

func TestSubmitSyncFailure(t *testing.T) {
	env := newTestEnv(t, &fakeDownloader{fetchErr: fmt.Errorf("source gone")})

	resp := postJSON(t, env.app, "/v1/media/download", SubmitRequest{URL: "u", Sync: true})
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	out := decode[ErrorResponse](t, resp)
	if out.Code != "JOB_FAILED" || !strings.Contains(out.Error, "source gone") {
		t.Fatalf("unexpected error envelope %+v", out)
	}
}

func TestStatusNotFound(t *testing.T) {
	env := newTestEnv(t, &fakeDownloader{})

	resp := get(t, env.app, "/v1/media/status/unknown")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	out := decode[ErrorResponse](t, resp)
	if out.Code != "NOT_FOUND" {
		t.Fatalf("unexpected code %q", out.Code)
	}
}

func TestCancelPendingThenConflict(t *testing.T) {
	env := newTestEnv(t, &fakeDownloader{})

	sub := decode[SubmitResponse](t, postJSON(t, env.app, "/v1/media/download", SubmitRequest{URL: "u"}))

	resp := postJSON(t, env.app, "/v1/media/cancel/"+sub.ID, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	out := decode[StatusResponse](t, resp)
	if out.Session.Status != session.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", out.Session.Status)
	}

	again := postJSON(t, env.app, "/v1/media/cancel/"+sub.ID, nil)
	if again.StatusCode != fiber.StatusConflict {
		t.Fatalf("expected 409 on second cancel, got %d", again.StatusCode)
	}
	again.Body.Close()
}

func TestCancelUnknown(t *testing.T) {
	env := newTestEnv(t, &fakeDownloader{})
	resp := postJSON(t, env.app, "/v1/media/cancel/unknown", nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestFileRetrievalIsOneShot(t *testing.T) {
	env := newTestEnv(t, &fakeDownloader{})

	// Produce an artifact via a synchronous run.
	out := decode[SyncResponse](t, postJSON(t, env.app, "/v1/media/download", SubmitRequest{URL: "u", Sync: true}))

	resp := get(t, env.app, "/v1/media/files/"+out.ID+"/clip.mp4")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "fake video bytes" {
		t.Fatalf("unexpected body %q", body)
	}
	if cd := resp.Header.Get(fiber.HeaderContentDisposition); !strings.Contains(cd, "clip.mp4") {
		t.Fatalf("unexpected content disposition %q", cd)
	}

	// The workspace is gone; a second retrieval fails.
	second := get(t, env.app, "/v1/media/files/"+out.ID+"/clip.mp4")
	if second.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 on second retrieval, got %d", second.StatusCode)
	}
	second.Body.Close()
}

func TestFileRetrievalRejectsTraversal(t *testing.T) {
	env := newTestEnv(t, &fakeDownloader{})

	resp := get(t, env.app, "/v1/media/files/..%2F..%2Fetc/passwd")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 for traversal attempt, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestInfoEndpoint(t *testing.T) {
	env := newTestEnv(t, &fakeDownloader{})

	resp := postJSON(t, env.app, "/v1/media/info", SubmitRequest{URL: "u"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	out := decode[InfoResponse](t, resp)
	if out.Info == nil || out.Info.Title != "Test Clip" {
		t.Fatalf("unexpected info %+v", out.Info)
	}
}

func TestInfoSourceUnavailable(t *testing.T) {
	env := newTestEnv(t, &fakeDownloader{infoErr: fmt.Errorf("no such video")})

	resp := postJSON(t, env.app, "/v1/media/info", SubmitRequest{URL: "u"})
	if resp.StatusCode != fiber.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	out := decode[ErrorResponse](t, resp)
	if out.Code != "SOURCE_UNAVAILABLE" {
		t.Fatalf("unexpected code %q", out.Code)
	}
}

func TestCleanupEndpoint(t *testing.T) {
	env := newTestEnv(t, &fakeDownloader{})

	oldDir, err := env.ws.Create("stale")
	if err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldDir, past, past); err != nil {
		t.Fatal(err)
	}

	resp := postJSON(t, env.app, "/v1/media/cleanup", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	out := decode[CleanupResponse](t, resp)
	if out.WorkspacesRemoved != 1 {
		t.Fatalf("expected 1 workspace removed, got %+v", out)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, &fakeDownloader{})

	resp := get(t, env.app, "/healthz")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, &fakeDownloader{})

	resp := get(t, env.app, "/metrics")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "vodworks_http_requests_total") {
		t.Fatalf("expected metrics text, got %q", body)
	}
}
