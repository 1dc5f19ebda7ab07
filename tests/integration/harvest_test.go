//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/problem-harvester/internal/testutil"
	"github.com/Sternrassler/problem-harvester/pkg/artifact"
	"github.com/Sternrassler/problem-harvester/pkg/harvest"
	"github.com/Sternrassler/problem-harvester/pkg/source"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newHarvester(t *testing.T, endpoint string, store harvest.ArtifactStore, mutate func(*harvest.Config)) *harvest.Harvester {
	t.Helper()

	srcCfg := source.DefaultConfig()
	srcCfg.Endpoint = endpoint
	src, err := source.New(srcCfg)
	if err != nil {
		t.Fatalf("source.New() error = %v", err)
	}

	cfg := harvest.DefaultConfig()
	cfg.RequestTimeout = 5 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	h, err := harvest.New(src, store, cfg)
	if err != nil {
		t.Fatalf("harvest.New() error = %v", err)
	}
	return h
}

// TestHarvestToRedis runs a full harvest against the mock endpoint and
// reads the artifact back from Redis.
func TestHarvestToRedis(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockSource(120)
	defer mock.Close()

	store := artifact.NewRedisStore(redisClient, "test:artifact")
	h := newHarvester(t, mock.URL(), store, nil)

	ctx := context.Background()
	result, err := h.HarvestAll(ctx)
	if err != nil {
		t.Fatalf("HarvestAll() write error = %v", err)
	}
	if !result.Completed() {
		t.Fatalf("Outcome = %s, want completed (%s)", result.Outcome, result.Reason())
	}

	records, err := store.Get(ctx, harvest.DefaultArtifactName)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(records) != 120 {
		t.Fatalf("Stored records = %d, want 120", len(records))
	}

	var last struct {
		TitleSlug string `json:"titleSlug"`
	}
	if err := json.Unmarshal(records[119], &last); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if last.TitleSlug != "problem-120" {
		t.Errorf("Last record = %q, want problem-120", last.TitleSlug)
	}

	meta, err := store.Meta(ctx, harvest.DefaultArtifactName)
	if err != nil {
		t.Fatalf("Meta() error = %v", err)
	}
	if meta.Records != 120 {
		t.Errorf("Meta records = %d, want 120", meta.Records)
	}

	ttl, err := redisClient.TTL(ctx, "test:artifact:"+harvest.DefaultArtifactName).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl != -1 {
		t.Errorf("TTL = %v, want no expiry", ttl)
	}
}

// TestAbortedHarvestToRedis verifies a partial result still overwrites the
// previous artifact.
func TestAbortedHarvestToRedis(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockSource(120)
	defer mock.Close()
	mock.SetResponse(100, testutil.NewServerErrorResponse())

	store := artifact.NewRedisStore(redisClient, "test:artifact")
	ctx := context.Background()

	if err := store.Put(ctx, "partial.json", []json.RawMessage{json.RawMessage(`{"stale":true}`)}); err != nil {
		t.Fatalf("Seed Put() error = %v", err)
	}

	h := newHarvester(t, mock.URL(), store, func(cfg *harvest.Config) {
		cfg.ArtifactName = "partial.json"
	})

	result, err := h.HarvestAll(ctx)
	if err != nil {
		t.Fatalf("HarvestAll() write error = %v", err)
	}
	if result.Completed() {
		t.Fatal("Expected aborted outcome")
	}
	var abortErr *harvest.AbortError
	if !errors.As(result.Err, &abortErr) {
		t.Fatalf("Err = %v, want *AbortError", result.Err)
	}
	if abortErr.Cursor != 100 || abortErr.Class != harvest.ErrorClassTransport {
		t.Errorf("Abort = cursor %d class %s, want cursor 100 class transport", abortErr.Cursor, abortErr.Class)
	}

	records, err := store.Get(ctx, "partial.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(records) != 100 {
		t.Errorf("Stored records = %d, want 100", len(records))
	}
}

// TestRedisStoreMissing verifies reads of unknown artifacts.
func TestRedisStoreMissing(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	store := artifact.NewRedisStore(redisClient, "")
	_, err := store.Get(context.Background(), "nothing.json")
	if !errors.Is(err, artifact.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
