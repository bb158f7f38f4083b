// Package ingest processes uploaded campus documents through validation,
// chunking, embedding, and storage stages.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
	"github.com/AskCampusAI/askcampus-mvp/pkg/fn"
	"github.com/AskCampusAI/askcampus-mvp/pkg/natsutil"
)

const (
	// UploadSubject is the NATS subject for uploaded documents.
	UploadSubject = "engine.documents.uploaded"
	// DLQSubject is the dead letter queue subject for failed messages.
	DLQSubject = "engine.documents.dlq"
	// MaxRetries before sending to DLQ.
	MaxRetries = 3
	// EmbedBatchSize is the max chunks per embedding request.
	EmbedBatchSize = 100
)

// Embedder produces one embedding per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkWriter persists chunks to the vector store.
type ChunkWriter interface {
	DeleteByDocument(ctx context.Context, documentID string) error
	Upsert(ctx context.Context, chunks []domain.Chunk) error
}

// CatalogWriter records document metadata and ingestion status.
type CatalogWriter interface {
	Save(ctx context.Context, d domain.Document) error
	SetStatus(ctx context.Context, id string, status domain.DocumentStatus) error
}

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Embedder Embedder
	Chunks   ChunkWriter
	Catalog  CatalogWriter
	Logger   *slog.Logger
}

// --- Pipeline Stages ---

// Validate checks the upload event before any work is done.
var Validate fn.Stage[UploadEvent, UploadEvent] = func(_ context.Context, ev UploadEvent) fn.Result[UploadEvent] {
	if err := domain.ValidateDocument(ev.Document); err != nil {
		return fn.Err[UploadEvent](err)
	}
	if ev.Text == "" && len(ev.Visuals) == 0 {
		return fn.Err[UploadEvent](domain.NewValidationError("text", "", domain.ErrInvalidDocument))
	}
	return fn.Ok(ev)
}

// Chunk splits the event into text and visual chunks.
var Chunk fn.Stage[UploadEvent, ChunkedDoc] = func(_ context.Context, ev UploadEvent) fn.Result[ChunkedDoc] {
	return fn.Ok(ChunkedDoc{Document: ev.Document, Chunks: chunksFromEvent(ev)})
}

// NewEmbed creates a stage that fills chunk embeddings in batches.
func NewEmbed(embedder Embedder) fn.Stage[ChunkedDoc, ChunkedDoc] {
	return func(ctx context.Context, doc ChunkedDoc) fn.Result[ChunkedDoc] {
		// Batches share the chunk slice's backing array, so writing
		// batch[j].Embedding fills doc.Chunks in place.
		for _, batch := range fn.Chunk(doc.Chunks, EmbedBatchSize) {
			texts := fn.Map(batch, func(c domain.Chunk) string { return c.Content })

			vectors, err := embedder.Embed(ctx, texts)
			if err != nil {
				return fn.Err[ChunkedDoc](fmt.Errorf("embed batch: %w", err))
			}
			if len(vectors) != len(texts) {
				return fn.Err[ChunkedDoc](fmt.Errorf("embed batch: got %d vectors for %d texts", len(vectors), len(texts)))
			}
			for j := range vectors {
				batch[j].Embedding = vectors[j]
			}
		}
		return fn.Ok(doc)
	}
}

// NewStore creates a stage that writes the document to the catalog and its
// chunks to the vector store. Existing chunks of the document are replaced.
func NewStore(chunks ChunkWriter, catalog CatalogWriter) fn.Stage[ChunkedDoc, string] {
	return func(ctx context.Context, doc ChunkedDoc) fn.Result[string] {
		d := doc.Document
		d.Status = domain.StatusProcessed
		if err := catalog.Save(ctx, d); err != nil {
			return fn.Err[string](fmt.Errorf("catalog save: %w", err))
		}

		if err := chunks.DeleteByDocument(ctx, d.ID); err != nil {
			return fn.Err[string](fmt.Errorf("chunk cleanup: %w", err))
		}
		if err := chunks.Upsert(ctx, doc.Chunks); err != nil {
			return fn.Err[string](fmt.Errorf("chunk upsert: %w", err))
		}
		return fn.Ok(d.ID)
	}
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Info("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Info("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline constructs the full ingestion pipeline with all stages wired.
func NewPipeline(deps Deps) fn.Stage[UploadEvent, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	// Compose: Validate → Chunk → Embed → Store with logging taps.
	validated := fn.Then(LoggedTap[UploadEvent]("validate", log), Validate)
	chunked := fn.Then(validated, fn.Then(LoggedTap[UploadEvent]("chunk", log), Chunk))
	embedded := fn.Then(chunked, fn.Then(LoggedTap[ChunkedDoc]("embed", log), NewEmbed(deps.Embedder)))
	stored := fn.Then(embedded, fn.Then(LoggedTap[ChunkedDoc]("store", log), NewStore(deps.Chunks, deps.Catalog)))

	return stored
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Event   UploadEvent `json:"event"`
	Error   string      `json:"error"`
	Retries int         `json:"retries"`
}

// StartConsumer starts a NATS consumer that runs uploaded documents
// through the ingestion pipeline with retry and DLQ support.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(UploadSubject, func(msg *nats.Msg) {
		var ev UploadEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		ctx := natsutil.ExtractContext(msg)

		if deps.Catalog != nil && ev.Document.ID != "" {
			if err := deps.Catalog.SetStatus(ctx, ev.Document.ID, domain.StatusProcessing); err != nil {
				log.Warn("ingest: status update failed", "document_id", ev.Document.ID, "error", err)
			}
		}

		// Retry count travels in a header.
		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		result := pipeline(ctx, ev)
		if result.IsErr() {
			_, pipeErr := result.Unwrap()
			retries++
			log.Error("ingest: pipeline failed",
				"error", pipeErr,
				"document_id", ev.Document.ID,
				"retry", retries,
			)

			if retries >= MaxRetries {
				if deps.Catalog != nil && ev.Document.ID != "" {
					if err := deps.Catalog.SetStatus(ctx, ev.Document.ID, domain.StatusFailed); err != nil {
						log.Warn("ingest: status update failed", "document_id", ev.Document.ID, "error", err)
					}
				}
				dlq := dlqMessage{
					Event:   ev,
					Error:   pipeErr.Error(),
					Retries: retries,
				}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
			} else {
				retryMsg := nats.NewMsg(UploadSubject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
				if err := nc.PublishMsg(retryMsg); err != nil {
					log.Error("ingest: retry publish failed", "error", err)
				}
			}
		} else {
			docID, _ := result.Unwrap()
			log.Info("ingest: success", "document_id", docID)
		}

		// Ack if JetStream.
		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
}
