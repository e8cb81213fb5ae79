package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/featreg/internal/adapters/http/api"
	service "github.com/okian/featreg/internal/app"
)

func TestFeaturectl(t *testing.T) {
	ctx := context.Background()
	svc := service.New(service.WithChangeWorkerCount(1))
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = svc.Stop(ctx) }()

	srv := httptest.NewServer(api.NewServer(svc, svc).Handler())
	defer srv.Close()

	tests := []struct {
		name      string
		args      []string
		wantError bool
		errMsg    string
		wantOut   string
	}{
		{
			name:    "passes against a live service",
			args:    []string{"featurectl", "--url", srv.URL, "--start", "500", "--count", "10", "--workers", "3"},
			wantOut: "PASS: 10 features",
		},
		{
			name:      "rejects a zero count",
			args:      []string{"featurectl", "--url", srv.URL, "--count", "0"},
			wantError: true,
			errMsg:    "count must be positive",
		},
		{
			name:      "reports an unreachable service",
			args:      []string{"featurectl", "--url", "http://127.0.0.1:1", "--count", "1", "--timeout", "1s"},
			wantError: true,
			errMsg:    "liveness phase",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := newCommand(&out).Run(ctx, tt.args)
			if tt.wantError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error = %q, want substring %q", err, tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output = %q, want substring %q", out.String(), tt.wantOut)
			}
		})
	}
}
