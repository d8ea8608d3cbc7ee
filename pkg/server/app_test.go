package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/usecase"
	"PriceCast/pkg/config"
	xhttp "PriceCast/pkg/http"
)

type nopPredictor struct{}

func (nopPredictor) Predict(context.Context, string, int) (*models.Prediction, error) {
	return &models.Prediction{}, nil
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestAppServesUntilContextEnds(t *testing.T) {
	cfg, err := config.Parse([]byte("environment: test\n"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	port := freePort(t)
	cfg.Server.Port = port
	cfg.Server.ShutdownTimeout = 2 * time.Second

	srv := xhttp.NewServer(nil, nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(port), xhttp.WithMetricsPath(""))
	warmer, err := usecase.NewWarmer(nopPredictor{}, "0 0 * * * *", []string{"AAPL"}, []int{5}, nil)
	if err != nil {
		t.Fatalf("warmer: %v", err)
	}
	app := New(cfg, nil, srv, warmer, nil, ratelimit.New())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/missing", port)
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusNotFound {
				t.Fatalf("expected 404 from running server, got %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not come up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("app did not shut down")
	}
}
