package metrics

import (
	"strings"
	"testing"
)

func TestRecordRequestAndExport(t *testing.T) {
	// Record a single request and ensure it appears in the export.
	RecordRequest("GET", "/v1/media/status/:id", 200, 42)

	out := Export()
	if !strings.Contains(out, "vodworks_http_requests_total{method=\"GET\",path=\"/v1/media/status/:id\",status=\"200\"}") {
		t.Fatalf("expected HTTP request metric in export, got:\n%s", out)
	}
	if !strings.Contains(out, "vodworks_http_request_duration_ms_sum") || !strings.Contains(out, "vodworks_http_request_duration_ms_count") {
		t.Fatalf("expected latency metrics headers in export, got:\n%s", out)
	}
}

func TestRecordJobMetrics(t *testing.T) {
	RecordJob("download", "completed")
	RecordJob("download", "failed")
	RecordJob("streaming-package", "completed")

	out := Export()
	if !strings.Contains(out, "vodworks_jobs_total{kind=\"download\",status=\"completed\"}") {
		t.Fatalf("expected completed download counter, got:\n%s", out)
	}
	if !strings.Contains(out, "vodworks_jobs_total{kind=\"download\",status=\"failed\"}") {
		t.Fatalf("expected failed download counter, got:\n%s", out)
	}
	if !strings.Contains(out, "vodworks_jobs_total{kind=\"streaming-package\",status=\"completed\"}") {
		t.Fatalf("expected streaming-package counter, got:\n%s", out)
	}
}

func TestRecordRetentionMetrics(t *testing.T) {
	RecordRetentionWorkspaces(2)
	RecordRetentionSessions(3)
	RecordRetentionWorkspaces(0)

	out := Export()
	if !strings.Contains(out, "vodworks_retention_workspaces_removed_total") {
		t.Fatalf("expected workspace retention counter, got:\n%s", out)
	}
	if !strings.Contains(out, "vodworks_retention_sessions_removed_total") {
		t.Fatalf("expected session retention counter, got:\n%s", out)
	}
}
