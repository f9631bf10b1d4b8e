package opshttp

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/keithlinneman/linnemanlabs-users/internal/health"
	"github.com/keithlinneman/linnemanlabs-users/internal/log"
)

func getFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func serve(t *testing.T, h http.Handler, remote, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	req.RemoteAddr = remote
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewMux_Endpoints(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# HELP users_created_total\n"))
	})
	var gate health.ShutdownGate
	h := NewMux(log.Nop(), Options{
		Metrics:   metrics,
		Health:    health.Fixed(true, ""),
		Readiness: health.All(gate.Probe(), health.Fixed(true, "")),
	})
	local := "127.0.0.1:4242"

	if rec := serve(t, h, local, "/-/healthy"); rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Fatalf("healthy = %d %q", rec.Code, rec.Body.String())
	}
	if rec := serve(t, h, local, "/-/ready"); rec.Code != http.StatusOK {
		t.Fatalf("ready = %d", rec.Code)
	}
	if rec := serve(t, h, local, "/metrics"); !strings.Contains(rec.Body.String(), "users_created_total") {
		t.Fatalf("metrics body = %q", rec.Body.String())
	}

	gate.Set("shutting down")
	rec := serve(t, h, local, "/-/ready")
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "shutting down") {
		t.Fatalf("draining ready = %d %q", rec.Code, rec.Body.String())
	}
}

func TestNewMux_NoMetrics(t *testing.T) {
	h := NewMux(log.Nop(), Options{})
	if rec := serve(t, h, "127.0.0.1:1", "/metrics"); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestNewMux_Pprof(t *testing.T) {
	on := NewMux(log.Nop(), Options{EnablePprof: true})
	if rec := serve(t, on, "127.0.0.1:1", "/debug/pprof/"); rec.Code != http.StatusOK {
		t.Fatalf("pprof enabled: %d", rec.Code)
	}
	off := NewMux(log.Nop(), Options{})
	if rec := serve(t, off, "127.0.0.1:1", "/debug/pprof/"); rec.Code != http.StatusNotFound {
		t.Fatalf("pprof disabled: %d", rec.Code)
	}
}

func TestRequireNonPublicNetwork(t *testing.T) {
	h := NewMux(log.Nop(), Options{})
	tests := []struct {
		remote string
		want   int
	}{
		{"127.0.0.1:1", http.StatusOK},
		{"[::1]:1", http.StatusOK},
		{"10.0.0.1:8080", http.StatusOK},
		{"172.16.0.1:8080", http.StatusOK},
		{"192.168.1.1:8080", http.StatusOK},
		{"169.254.1.1:8080", http.StatusOK},
		{"[::ffff:10.0.0.1]:1", http.StatusOK},
		{"8.8.8.8:1", http.StatusForbidden},
		{"[::ffff:8.8.8.8]:1", http.StatusForbidden},
		{"203.0.113.1:80", http.StatusForbidden},
		{"not-an-address", http.StatusForbidden},
		{"", http.StatusForbidden},
		{"999.999.999.999:1", http.StatusForbidden},
	}
	for _, tt := range tests {
		if rec := serve(t, h, tt.remote, "/-/healthy"); rec.Code != tt.want {
			t.Errorf("%q: status = %d, want %d", tt.remote, rec.Code, tt.want)
		}
	}

	open := NewMux(log.Nop(), Options{AllowPublic: true})
	if rec := serve(t, open, "8.8.8.8:1", "/-/healthy"); rec.Code != http.StatusOK {
		t.Fatalf("AllowPublic: status = %d", rec.Code)
	}
}

func TestStart_Lifecycle(t *testing.T) {
	port := getFreePort(t)
	ctx := context.Background()
	stop, err := Start(ctx, log.Nop(), Options{Port: port, Readiness: health.Fixed(true, "")})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/-/ready", port)
	var resp *http.Response
	for i := 0; i < 50; i++ {
		if resp, err = http.Get(url); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ready\n" {
		t.Fatalf("ready = %d %q", resp.StatusCode, body)
	}

	if _, err := Start(ctx, log.Nop(), Options{Port: port}); err == nil {
		t.Fatal("second Start on the same port should fail")
	}

	if err := stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := stop(ctx); err != nil {
		t.Fatalf("stop should be idempotent: %v", err)
	}
	if _, err := http.Get(url); err == nil {
		t.Fatal("server still accepting connections after shutdown")
	}
}
