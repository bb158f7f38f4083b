// Command ingest consumes uploaded-document events from NATS and runs them
// through the chunk, embed, and store pipeline into Qdrant and Neo4j.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/AskCampusAI/askcampus-mvp/engine/catalog"
	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
	"github.com/AskCampusAI/askcampus-mvp/engine/ingest"
	"github.com/AskCampusAI/askcampus-mvp/engine/semantic"
	"github.com/AskCampusAI/askcampus-mvp/pkg/gemini"
	"github.com/AskCampusAI/askcampus-mvp/pkg/metrics"
)

var met = metrics.New()

var (
	mEmbedCalls   = met.Counter("askcampus_ingest_embed_calls_total", "Embedding API calls")
	mEmbedErrors  = met.Counter("askcampus_ingest_embed_errors_total", "Failed embedding API calls")
	mEmbedDur     = met.Histogram("askcampus_ingest_embed_duration_seconds", "Embedding call latency", nil)
	mChunksStored = met.Counter("askcampus_ingest_chunks_stored_total", "Chunks written to the vector store")
	mStoreDur     = met.Histogram("askcampus_ingest_store_duration_seconds", "Vector store write latency", nil)
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("ingest worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met.CollectRuntime("askcampus_ingest", 15*time.Second)
	met.ServeAsync(envInt("METRICS_PORT", 9091))

	ai, err := gemini.New(ctx, gemini.Config{
		APIKey:     os.Getenv("GEMINI_API_KEY"),
		EmbedModel: envOr("GEMINI_EMBED_MODEL", gemini.DefaultEmbedModel),
		GenModel:   envOr("GEMINI_GEN_MODEL", gemini.DefaultGenModel),
	})
	if err != nil {
		return fmt.Errorf("gemini client: %w", err)
	}

	neo4jDriver, err := neo4j.NewDriverWithContext(
		envOr("NEO4J_URL", "neo4j://localhost:7687"),
		neo4j.BasicAuth(envOr("NEO4J_USER", "neo4j"), envOr("NEO4J_PASS", "password"), ""),
	)
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer neo4jDriver.Close(ctx)
	if err := neo4jDriver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j verify: %w", err)
	}

	qdrant, err := semantic.Dial(envOr("QDRANT_URL", "localhost:6334"))
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer qdrant.Close()

	chunkStore := semantic.NewChunkStore(qdrant, envOr("QDRANT_CHUNKS", semantic.DefaultChunkCollection), gemini.EmbedDims)
	if err := chunkStore.EnsureCollection(ctx); err != nil {
		return err
	}

	nc, err := nats.Connect(envOr("NATS_URL", nats.DefaultURL))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	sub, err := ingest.StartConsumer(nc, ingest.Deps{
		Embedder: &meteredEmbedder{ai: ai},
		Chunks:   &meteredChunks{store: chunkStore},
		Catalog:  catalog.New(neo4jDriver),
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	logger.Info("ingest worker started", "subject", ingest.UploadSubject)

	<-ctx.Done()
	logger.Info("shutting down")
	if err := sub.Drain(); err != nil {
		logger.Warn("subscription drain failed", "err", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

// meteredEmbedder counts and times embedding calls.
type meteredEmbedder struct {
	ai *gemini.Client
}

func (m *meteredEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	mEmbedCalls.Inc()
	start := time.Now()
	vecs, err := m.ai.Embed(ctx, texts)
	mEmbedDur.Since(start)
	if err != nil {
		mEmbedErrors.Inc()
	}
	return vecs, err
}

// meteredChunks counts and times vector store writes.
type meteredChunks struct {
	store *semantic.ChunkStore
}

func (m *meteredChunks) DeleteByDocument(ctx context.Context, documentID string) error {
	return m.store.DeleteByDocument(ctx, documentID)
}

func (m *meteredChunks) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	start := time.Now()
	err := m.store.Upsert(ctx, chunks)
	mStoreDur.Since(start)
	if err == nil {
		mChunksStored.Add(int64(len(chunks)))
	}
	return err
}
