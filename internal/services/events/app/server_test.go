package app

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"
)

func TestServerServesAPIAndStopsOnContextCancel(t *testing.T) {
	server, err := New(Options{
		GRPCPort:  0,
		HTTPAddr:  "127.0.0.1:0",
		DBPath:    filepath.Join(t.TempDir(), "events.db"),
		RedisAddr: "127.0.0.1:6379",
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ctx)
	}()

	client := &http.Client{Timeout: 5 * time.Second}
	url := "http://" + server.Addr() + "/v1/events"
	var response *http.Response
	for attempt := 0; attempt < 50; attempt++ {
		response, err = client.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Fatalf("GET %s: %v", url, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		cancel()
		t.Fatalf("status = %d, want %d", response.StatusCode, http.StatusOK)
	}

	cancel()
	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop after context cancel")
	}
}
