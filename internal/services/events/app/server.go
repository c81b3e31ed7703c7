package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/gigline/gigline/internal/platform/timeouts"
	"github.com/gigline/gigline/internal/services/events/api/httpapi"
	"github.com/gigline/gigline/internal/services/events/queue/redisstream"
	eventsqlite "github.com/gigline/gigline/internal/services/events/storage/sqlite"
)

// Options configures the events server runtime.
type Options struct {
	// GRPCPort hosts the health endpoint used by deploy probes.
	GRPCPort int
	// HTTPAddr hosts the events JSON API.
	HTTPAddr string
	// DBPath locates the SQLite database file.
	DBPath string
	// RedisAddr locates the fan-out stream broker.
	RedisAddr string
	// RedisPassword is optional broker auth.
	RedisPassword string
	// RedisDB selects the broker database.
	RedisDB int
	// Stream overrides the fan-out stream name.
	Stream string
}

// Server hosts the events service: the JSON API over HTTP and a gRPC
// health endpoint for deploy probes.
type Server struct {
	grpcListener net.Listener
	grpcServer   *grpc.Server
	health       *health.Server
	httpListener net.Listener
	httpServer   *http.Server
	store        *eventsqlite.Store
	redisClient  *redis.Client
}

// New creates a configured events server listening on the provided ports.
func New(opts Options) (*Server, error) {
	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", opts.GRPCPort))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", opts.GRPCPort, err)
	}

	store, err := openEventStore(opts.DBPath)
	if err != nil {
		_ = grpcListener.Close()
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})
	publisher, err := redisstream.New(redisClient, opts.Stream)
	if err != nil {
		_ = grpcListener.Close()
		_ = store.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("build fan-out publisher: %w", err)
	}

	service := NewService(store, publisher)

	httpListener, err := net.Listen("tcp", opts.HTTPAddr)
	if err != nil {
		_ = grpcListener.Close()
		_ = store.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen on http addr %s: %w", opts.HTTPAddr, err)
	}
	httpServer := &http.Server{
		Handler:           httpapi.NewHandler(service),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		grpcListener: grpcListener,
		grpcServer:   grpcServer,
		health:       healthServer,
		httpListener: httpListener,
		httpServer:   httpServer,
		store:        store,
		redisClient:  redisClient,
	}, nil
}

// Addr returns the HTTP listener address for the events API.
func (s *Server) Addr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Run creates and serves an events server until the context ends.
func Run(ctx context.Context, opts Options) error {
	server, err := New(opts)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the events server and blocks until it stops or the context
// ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.closeDependencies()

	log.Printf("events health endpoint listening at %v", s.grpcListener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.grpcListener)
	}()

	log.Printf("events API listening at %v", s.httpListener.Addr())
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- s.httpServer.Serve(s.httpListener)
	}()

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}

	shutdownGRPC := func() {
		if s.health != nil {
			s.health.Shutdown()
		}
		s.grpcServer.GracefulStop()
	}
	shutdownHTTP := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}

	select {
	case <-ctx.Done():
		shutdownGRPC()
		shutdownHTTP()
		err := <-serveErr
		return handleErr(err)
	case err := <-serveErr:
		shutdownHTTP()
		return handleErr(err)
	case err := <-httpErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		shutdownGRPC()
		grpcErr := <-serveErr
		if handled := handleErr(grpcErr); handled != nil {
			return handled
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

func openEventStore(path string) (*eventsqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "events.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := eventsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events sqlite store: %w", err)
	}
	return store, nil
}

func (s *Server) closeDependencies() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close events store: %v", err)
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Printf("close redis client: %v", err)
		}
	}
}
