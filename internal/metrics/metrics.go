package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for HTTP requests and job outcomes.
// This is intentionally minimal and in-memory only.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	jobsTotal = make(map[jobKey]int64)

	retentionWorkspacesRemoved int64
	retentionSessionsRemoved   int64
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type jobKey struct {
	Kind   string
	Status string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordJob increments the per-kind job outcome counter.
func RecordJob(kind, status string) {
	mu.Lock()
	defer mu.Unlock()
	jobsTotal[jobKey{Kind: kind, Status: status}]++
}

// RecordRetentionWorkspaces increments the counter of workspaces
// removed by the sweep.
func RecordRetentionWorkspaces(removed int) {
	if removed <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	retentionWorkspacesRemoved += int64(removed)
}

// RecordRetentionSessions increments the counter of session records
// removed by the sweep.
func RecordRetentionSessions(removed int) {
	if removed <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	retentionSessionsRemoved += int64(removed)
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP vodworks_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE vodworks_http_requests_total counter\n")

	// Sort keys for stable output
	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})

	for _, k := range reqKeys {
		v := requestsTotal[k]
		fmt.Fprintf(&b, "vodworks_http_requests_total{method=\"%s\",path=\"%s\",status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, v)
	}

	b.WriteString("# HELP vodworks_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE vodworks_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP vodworks_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE vodworks_http_request_duration_ms_count counter\n")

	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})

	for _, k := range latKeys {
		sum := latencyMsSum[k]
		cnt := latencyMsCount[k]
		fmt.Fprintf(&b, "vodworks_http_request_duration_ms_sum{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, sum)
		fmt.Fprintf(&b, "vodworks_http_request_duration_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, cnt)
	}

	b.WriteString("# HELP vodworks_jobs_total Total jobs by kind and outcome\n")
	b.WriteString("# TYPE vodworks_jobs_total counter\n")

	var jobKeys []jobKey
	for k := range jobsTotal {
		jobKeys = append(jobKeys, k)
	}
	sort.Slice(jobKeys, func(i, j int) bool {
		if jobKeys[i].Kind != jobKeys[j].Kind {
			return jobKeys[i].Kind < jobKeys[j].Kind
		}
		return jobKeys[i].Status < jobKeys[j].Status
	})

	for _, k := range jobKeys {
		v := jobsTotal[k]
		fmt.Fprintf(&b, "vodworks_jobs_total{kind=\"%s\",status=\"%s\"} %d\n", k.Kind, k.Status, v)
	}

	b.WriteString("# HELP vodworks_retention_workspaces_removed_total Total workspaces removed by the sweep\n")
	b.WriteString("# TYPE vodworks_retention_workspaces_removed_total counter\n")
	fmt.Fprintf(&b, "vodworks_retention_workspaces_removed_total %d\n", retentionWorkspacesRemoved)

	b.WriteString("# HELP vodworks_retention_sessions_removed_total Total session records removed by the sweep\n")
	b.WriteString("# TYPE vodworks_retention_sessions_removed_total counter\n")
	fmt.Fprintf(&b, "vodworks_retention_sessions_removed_total %d\n", retentionSessionsRemoved)

	return b.String()
}
