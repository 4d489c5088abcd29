// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}

	if cfg.DBDriver != "sqlite" {
		t.Errorf("DBDriver = %q, want sqlite", cfg.DBDriver)
	}
	if cfg.DBPath != "./data/ocms-content.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./data/ocms-content.db")
	}
	if cfg.ServerAddr() != "localhost:8080" {
		t.Errorf("ServerAddr() = %q", cfg.ServerAddr())
	}
	if !cfg.IsDevelopment() {
		t.Error("default env should be development")
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("SlogLevel() = %v, want info", cfg.SlogLevel())
	}
	if cfg.ConflictThreshold != 50 || cfg.ConflictPreviewLines != 10 {
		t.Errorf("conflict = %d/%d, want 50/10", cfg.ConflictThreshold, cfg.ConflictPreviewLines)
	}
	if cfg.VersionCodec != "zstd" {
		t.Errorf("VersionCodec = %q, want zstd", cfg.VersionCodec)
	}
	if cfg.VersionRetention != 50 || cfg.PruneSchedule != "@daily" {
		t.Errorf("retention = %d %q", cfg.VersionRetention, cfg.PruneSchedule)
	}
	if cfg.EventRetention() != 90*24*time.Hour {
		t.Errorf("EventRetention() = %v", cfg.EventRetention())
	}
	if cfg.CacheTTLDuration() != 5*time.Minute {
		t.Errorf("CacheTTLDuration() = %v", cfg.CacheTTLDuration())
	}
	if cfg.UseRedisCache() || cfg.WebhooksEnabled() || cfg.SanitizeBodies {
		t.Error("optional features should be off by default")
	}
	if cfg.WebhookWorkers != 3 || cfg.WebhookRate != 5 {
		t.Errorf("webhook workers/rate = %d/%v", cfg.WebhookWorkers, cfg.WebhookRate)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"OCMS_DB_DRIVER":            "mysql",
		"OCMS_DB_PATH":              "user:pass@tcp(db:3306)/cms?parseTime=true",
		"OCMS_SERVER_HOST":          "0.0.0.0",
		"OCMS_SERVER_PORT":          "3000",
		"OCMS_ENV":                  "production",
		"OCMS_LOG_LEVEL":            "debug",
		"OCMS_REDIS_URL":            "redis://cache:6379/0",
		"OCMS_CONFLICT_THRESHOLD":   "5",
		"OCMS_VERSION_CODEC":        "gzip",
		"OCMS_PRUNE_SCHEDULE":       "30 3 * * *",
		"OCMS_SANITIZE_BODIES":      "true",
		"OCMS_WEBHOOK_URLS":         "https://a.example/hook, https://b.example/hook",
		"OCMS_WEBHOOK_SECRET":       "Sup3r-Secret-Value!",
		"OCMS_EVENT_RETENTION_DAYS": "7",
	})
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}

	if cfg.DBDriver != "mysql" || cfg.ServerAddr() != "0.0.0.0:3000" {
		t.Errorf("db/addr = %q %q", cfg.DBDriver, cfg.ServerAddr())
	}
	if cfg.IsDevelopment() {
		t.Error("production should not be development")
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v", cfg.SlogLevel())
	}
	if !cfg.UseRedisCache() || !cfg.SanitizeBodies {
		t.Error("redis and sanitize should be on")
	}
	if cfg.ConflictThreshold != 5 || cfg.VersionCodec != "gzip" {
		t.Errorf("threshold/codec = %d %q", cfg.ConflictThreshold, cfg.VersionCodec)
	}
	want := []string{"https://a.example/hook", "https://b.example/hook"}
	if len(cfg.WebhookURLs) != 2 || cfg.WebhookURLs[0] != want[0] || cfg.WebhookURLs[1] != want[1] {
		t.Errorf("WebhookURLs = %q, want %q", cfg.WebhookURLs, want)
	}
	if cfg.EventRetention() != 7*24*time.Hour {
		t.Errorf("EventRetention() = %v", cfg.EventRetention())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"driver", map[string]string{"OCMS_DB_DRIVER": "postgres"}, "OCMS_DB_DRIVER"},
		{"log level", map[string]string{"OCMS_LOG_LEVEL": "loud"}, "OCMS_LOG_LEVEL"},
		{"port", map[string]string{"OCMS_SERVER_PORT": "70000"}, "OCMS_SERVER_PORT"},
		{"port not a number", map[string]string{"OCMS_SERVER_PORT": "http"}, "parsing config"},
		{"codec", map[string]string{"OCMS_VERSION_CODEC": "brotli"}, "OCMS_VERSION_CODEC"},
		{"threshold", map[string]string{"OCMS_CONFLICT_THRESHOLD": "-1"}, "OCMS_CONFLICT_THRESHOLD"},
		{"preview", map[string]string{"OCMS_CONFLICT_PREVIEW_LINES": "-3"}, "OCMS_CONFLICT_PREVIEW_LINES"},
		{"retention", map[string]string{"OCMS_VERSION_RETENTION": "-1"}, "OCMS_VERSION_RETENTION"},
		{"event retention", map[string]string{"OCMS_EVENT_RETENTION_DAYS": "-1"}, "OCMS_EVENT_RETENTION_DAYS"},
		{"schedule", map[string]string{"OCMS_PRUNE_SCHEDULE": "sometimes"}, "OCMS_PRUNE_SCHEDULE"},
		{"workers", map[string]string{"OCMS_WEBHOOK_WORKERS": "0"}, "OCMS_WEBHOOK_WORKERS"},
		{"webhook url", map[string]string{"OCMS_WEBHOOK_URLS": "ftp://files.example"}, "OCMS_WEBHOOK_URLS"},
		{
			"production webhook without secret",
			map[string]string{"OCMS_ENV": "production", "OCMS_WEBHOOK_URLS": "https://a.example/hook"},
			"OCMS_WEBHOOK_SECRET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.env)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_WebhookSecretNotRequiredInDevelopment(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"OCMS_WEBHOOK_URLS": "http://localhost:9000/hook"})
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if !cfg.WebhooksEnabled() {
		t.Error("webhooks should be enabled")
	}
}

func TestLoad_BlankWebhookURLsIgnored(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"OCMS_WEBHOOK_URLS": " , "})
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if cfg.WebhooksEnabled() {
		t.Errorf("WebhookURLs = %q, want none", cfg.WebhookURLs)
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"development", true},
		{"production", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := Config{Env: tt.env}
			if got := cfg.IsDevelopment(); got != tt.want {
				t.Errorf("IsDevelopment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasMinimumEntropy(t *testing.T) {
	tests := []struct {
		secret string
		want   bool
	}{
		{"aaaaaaaaaaaaaaaa", false},
		{"abcdEFGHabcdEFGH", false},
		{"abcdEFGH1234abcd", true},
		{"abcd-1234-efgh-5678", true},
	}

	for _, tt := range tests {
		if got := hasMinimumEntropy(tt.secret); got != tt.want {
			t.Errorf("hasMinimumEntropy(%q) = %v, want %v", tt.secret, got, tt.want)
		}
	}
}
