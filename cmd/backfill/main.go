// Command backfill re-embeds chunks that were stored without an embedding,
// typically after an embedding outage during ingestion. It scans the chunk
// collection, embeds the missing ones in batches, and upserts them in place.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
	"github.com/AskCampusAI/askcampus-mvp/engine/ingest"
	"github.com/AskCampusAI/askcampus-mvp/engine/semantic"
	"github.com/AskCampusAI/askcampus-mvp/pkg/fn"
	"github.com/AskCampusAI/askcampus-mvp/pkg/gemini"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ai, err := gemini.New(ctx, gemini.Config{
		APIKey:     os.Getenv("GEMINI_API_KEY"),
		EmbedModel: envOr("GEMINI_EMBED_MODEL", gemini.DefaultEmbedModel),
	})
	if err != nil {
		log.Fatalf("gemini client: %v", err)
	}

	qdrant, err := semantic.Dial(envOr("QDRANT_URL", "localhost:6334"))
	if err != nil {
		log.Fatalf("qdrant connect: %v", err)
	}
	defer qdrant.Close()

	store := semantic.NewChunkStore(qdrant, envOr("QDRANT_CHUNKS", semantic.DefaultChunkCollection), gemini.EmbedDims)

	chunks, err := store.All(ctx)
	if err != nil {
		log.Fatalf("scan chunks: %v", err)
	}

	missing := fn.Filter(chunks, func(c domain.Chunk) bool {
		return len(c.Embedding) == 0 && c.Content != ""
	})
	log.Printf("Found %d chunks without embeddings (of %d total)", len(missing), len(chunks))

	var embedded, errors int
	for i := 0; i < len(missing); i += ingest.EmbedBatchSize {
		if ctx.Err() != nil {
			log.Printf("interrupted after %d chunks", embedded)
			break
		}
		end := i + ingest.EmbedBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[i:end]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Content
		}

		vectors, err := ai.Embed(ctx, texts)
		if err != nil {
			log.Printf("embed batch %d-%d failed: %v", i, end, err)
			errors += len(batch)
			continue
		}
		for j := range vectors {
			batch[j].Embedding = vectors[j]
		}

		if err := store.Upsert(ctx, batch); err != nil {
			log.Printf("upsert batch %d-%d failed: %v", i, end, err)
			errors += len(batch)
			continue
		}
		embedded += len(batch)
		log.Printf("Progress: %d/%d", embedded, len(missing))
	}

	log.Printf("Done: %d re-embedded, %d failed", embedded, errors)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
