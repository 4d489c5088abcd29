// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/olegiv/ocms-content/internal/cache"
	"github.com/olegiv/ocms-content/internal/scheduler"
	"github.com/olegiv/ocms-content/internal/testutil"
	"github.com/olegiv/ocms-content/internal/version"
)

type staticJobs []scheduler.JobInfo

func (s staticJobs) Jobs() []scheduler.JobInfo { return s }

func getHealth(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, HealthStatus) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q; want application/json", ct)
	}
	var status HealthStatus
	if path == "/health" || path == "/health?verbose=true" {
		if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}
	return w, status
}

func TestHealth_Healthy(t *testing.T) {
	db := testutil.TestDB(t)
	mem := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = mem.Close() })

	jobs := staticJobs{{Name: scheduler.JobPruneVersions, Schedule: "@daily", LastErr: errors.New("disk full")}}
	info := version.Info{Version: "v1.2.3", GitCommit: "abc1234"}
	h := NewHealthHandler(db, mem, jobs, info).Routes()

	w, status := getHealth(t, h, "/health")

	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d; want 200", w.Code)
	}
	if status.Status != statusHealthy {
		t.Errorf("status = %q; want healthy", status.Status)
	}
	if status.Version.Version != "v1.2.3" {
		t.Errorf("version = %+v", status.Version)
	}
	if status.Checks["database"].Status != statusHealthy || status.Checks["cache"].Status != statusHealthy {
		t.Errorf("checks = %+v", status.Checks)
	}
	if status.Cache == nil {
		t.Error("memory cache stats missing")
	}
	if len(status.Jobs) != 1 || status.Jobs[0].LastError != "disk full" {
		t.Errorf("jobs = %+v", status.Jobs)
	}
	if status.System != nil {
		t.Error("system info should only be present when verbose")
	}
}

func TestHealth_Verbose(t *testing.T) {
	h := NewHealthHandler(testutil.TestDB(t), nil, nil, version.Get()).Routes()

	_, status := getHealth(t, h, "/health?verbose=true")

	if status.System == nil || status.System.NumCPU == 0 {
		t.Errorf("system = %+v", status.System)
	}
	if _, ok := status.Checks["cache"]; ok {
		t.Error("no cache configured, no cache check expected")
	}
}

func TestHealth_DatabaseDown(t *testing.T) {
	db := testutil.TestDB(t)
	_ = db.Close()
	h := NewHealthHandler(db, nil, nil, version.Get()).Routes()

	w, status := getHealth(t, h, "/health")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d; want 503", w.Code)
	}
	if status.Status != statusUnhealthy {
		t.Errorf("status = %q; want unhealthy", status.Status)
	}

	w, _ = getHealth(t, h, "/health/ready")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready code = %d; want 503", w.Code)
	}
}

func TestHealth_RedisDownDegrades(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := cache.DefaultRedisCacheOptions()
	opts.URL = "redis://" + mr.Addr()
	rc, err := cache.NewRedisCache(opts)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	h := NewHealthHandler(testutil.TestDB(t), rc, nil, version.Get()).Routes()

	_, status := getHealth(t, h, "/health")
	if status.Checks["cache"].Status != statusHealthy {
		t.Fatalf("cache check = %+v", status.Checks["cache"])
	}

	mr.Close()
	w, status := getHealth(t, h, "/health")
	if w.Code != http.StatusOK {
		t.Errorf("status code = %d; want 200", w.Code)
	}
	if status.Status != statusDegraded {
		t.Errorf("status = %q; want degraded", status.Status)
	}
}

func TestLivenessAndReadiness(t *testing.T) {
	h := NewHealthHandler(testutil.TestDB(t), nil, nil, version.Get()).Routes()

	for _, path := range []string{"/health/live", "/health/ready"} {
		w, _ := getHealth(t, h, path)
		if w.Code != http.StatusOK {
			t.Errorf("%s code = %d; want 200", path, w.Code)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.want {
			t.Errorf("formatBytes(%d) = %q; want %q", tt.bytes, got, tt.want)
		}
	}
}
