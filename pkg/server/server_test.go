package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, Dependencies{Engine: newTestEngine(t, nil)}, nil); err == nil {
		t.Error("New(nil config) error = nil")
	}
	if _, err := New(testServerConfig(), Dependencies{}, nil); err == nil {
		t.Error("New(no engine) error = nil")
	}
}

func TestServe_GracefulShutdown(t *testing.T) {
	srv := newTestServer(t, Dependencies{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	client := &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	resp, err := client.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		cancel()
		<-done
		t.Fatalf("GET /health: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestServe_AlreadyRunning(t *testing.T) {
	srv := newTestServer(t, Dependencies{})

	ln1, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln1) }()
	defer func() {
		cancel()
		<-done
	}()

	// Wait until the first Serve has registered its http.Server.
	deadline := time.Now().Add(2 * time.Second)
	for {
		srv.mu.Lock()
		running := srv.httpServer != nil
		srv.mu.Unlock()
		if running || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	ln2, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	if err := srv.Serve(context.Background(), ln2); err == nil {
		t.Error("second Serve() error = nil, want already running")
	}
}

func TestListenAndServe_BadAddress(t *testing.T) {
	cfg := testServerConfig()
	cfg.ListenAddress = "256.0.0.1:http-nope"
	srv, err := New(cfg, Dependencies{Engine: newTestEngine(t, nil)}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := srv.ListenAndServe(context.Background()); err == nil {
		t.Error("ListenAndServe() error = nil for invalid address")
	}
}
