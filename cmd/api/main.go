// Package main implements the AskCampus API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/AskCampusAI/askcampus-mvp/engine/answer"
	"github.com/AskCampusAI/askcampus-mvp/engine/catalog"
	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
	"github.com/AskCampusAI/askcampus-mvp/engine/ingest"
	"github.com/AskCampusAI/askcampus-mvp/engine/rag"
	"github.com/AskCampusAI/askcampus-mvp/engine/semantic"
	"github.com/AskCampusAI/askcampus-mvp/pkg/gemini"
	"github.com/AskCampusAI/askcampus-mvp/pkg/metrics"
	"github.com/AskCampusAI/askcampus-mvp/pkg/mid"
	"github.com/AskCampusAI/askcampus-mvp/pkg/natsutil"
	"github.com/AskCampusAI/askcampus-mvp/pkg/repo"
	"github.com/AskCampusAI/askcampus-mvp/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port             string
	GeminiAPIKey     string
	GeminiEmbedModel string
	GeminiGenModel   string
	Neo4jURL         string
	Neo4jUser        string
	Neo4jPass        string
	QdrantURL        string
	ChunkCollection  string
	QuestionsColl    string
	NATSURL          string
	CORSOrigin       string
	CacheThreshold   float64
	FAQLimit         int
	ChatRate         float64
	ChatBurst        int
}

func loadConfig() Config {
	return Config{
		Port:             envOr("PORT", "8080"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiEmbedModel: envOr("GEMINI_EMBED_MODEL", gemini.DefaultEmbedModel),
		GeminiGenModel:   envOr("GEMINI_GEN_MODEL", gemini.DefaultGenModel),
		Neo4jURL:         envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:        envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:        envOr("NEO4J_PASS", "password"),
		QdrantURL:        envOr("QDRANT_URL", "localhost:6334"),
		ChunkCollection:  envOr("QDRANT_CHUNKS", semantic.DefaultChunkCollection),
		QuestionsColl:    envOr("QDRANT_QUESTIONS", semantic.DefaultQuestionCollection),
		NATSURL:          envOr("NATS_URL", nats.DefaultURL),
		CORSOrigin:       envOr("CORS_ORIGIN", "*"),
		CacheThreshold:   envFloat("CACHE_THRESHOLD", 0),
		FAQLimit:         envInt("FAQ_LIMIT", 10),
		ChatRate:         envFloat("CHAT_RATE", 5),
		ChatBurst:        envInt("CHAT_BURST", 10),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Gemini ---
	ai, err := gemini.New(ctx, gemini.Config{
		APIKey:     cfg.GeminiAPIKey,
		EmbedModel: cfg.GeminiEmbedModel,
		GenModel:   cfg.GeminiGenModel,
	})
	if err != nil {
		return fmt.Errorf("gemini client: %w", err)
	}

	// --- Neo4j ---
	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer neo4jDriver.Close(ctx)

	docCatalog := catalog.New(neo4jDriver)

	// --- Qdrant ---
	qdrant, err := semantic.Dial(cfg.QdrantURL)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer qdrant.Close()

	chunkStore := semantic.NewChunkStore(qdrant, cfg.ChunkCollection, gemini.EmbedDims)
	questionStore := semantic.NewQuestionStore(qdrant, cfg.QuestionsColl, gemini.EmbedDims)
	if err := chunkStore.EnsureCollection(ctx); err != nil {
		return err
	}
	if err := questionStore.EnsureCollection(ctx); err != nil {
		return err
	}

	// --- NATS ---
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	// --- Metrics ---
	registry := metrics.New()
	registry.CollectRuntime("askcampus_api", 15*time.Second)

	// --- Question answering service ---
	breaker := resilience.NewBreaker(resilience.BreakerOpts{})
	ragSvc := rag.New(
		&breakerEmbedder{ai: ai, breaker: breaker},
		chunkStore,
		docCatalog,
		questionStore,
		answer.NewService(ai, logger),
		rag.Options{CacheThreshold: cfg.CacheThreshold},
		logger,
	).WithMetrics(rag.NewMetrics(registry))

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("GET /metrics", registry.Handler())
	// Chat endpoints are the only ones that reach the LLM, so they get
	// their own token bucket in addition to the embed circuit breaker.
	chatLimiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.ChatRate, Burst: cfg.ChatBurst})
	mux.HandleFunc("POST /api/chat", rateLimited(chatLimiter, handleChat(ragSvc, docCatalog, logger)))
	mux.HandleFunc("POST /api/chat/stream", rateLimited(chatLimiter, handleChatStream(ragSvc, docCatalog, logger)))
	mux.HandleFunc("GET /api/faq", handleFAQ(questionStore, cfg.FAQLimit, logger))
	mux.HandleFunc("GET /api/history", handleHistory(docCatalog, logger))
	mux.HandleFunc("GET /api/documents", handleListDocuments(docCatalog, logger))
	mux.HandleFunc("POST /api/documents", handleUploadDocument(docCatalog, nc, logger))
	mux.HandleFunc("DELETE /api/documents/{id}", handleDeleteDocument(docCatalog, chunkStore, logger))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("askcampus-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	Question string `json:"question"`
	UserID   string `json:"user_id,omitempty"`
}

func handleChat(ragSvc *rag.Service, cat *catalog.Catalog, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeChatRequest(w, r)
		if !ok {
			return
		}

		resp, err := ragSvc.Ask(r.Context(), domain.Question{Text: req.Question, UserID: req.UserID})
		if err != nil {
			writeChatError(w, err, logger)
			return
		}
		recordHistory(r.Context(), cat, req, resp, logger)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// handleChatStream answers over SSE: token events while generating, then a
// single done event carrying the full response metadata.
func handleChatStream(ragSvc *rag.Service, cat *catalog.Catalog, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeChatRequest(w, r)
		if !ok {
			return
		}

		flusher, canFlush := w.(http.Flusher)
		if !canFlush {
			http.Error(w, `{"error":"streaming unsupported"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		resp, err := ragSvc.AskStream(r.Context(), domain.Question{Text: req.Question, UserID: req.UserID},
			func(tok string) error {
				data, err := json.Marshal(map[string]string{"token": tok})
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(w, "event: token\ndata: %s\n\n", data); err != nil {
					return err
				}
				flusher.Flush()
				return nil
			})
		if err != nil {
			data, _ := json.Marshal(map[string]string{"error": publicError(err)})
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
			flusher.Flush()
			return
		}
		recordHistory(r.Context(), cat, req, resp, logger)

		data, err := json.Marshal(resp)
		if err != nil {
			logger.Error("chat stream: marshal response", "err", err)
			return
		}
		fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
		flusher.Flush()
	}
}

func rateLimited(l *resilience.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow() {
			http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return req, false
	}
	if strings.TrimSpace(req.Question) == "" {
		http.Error(w, `{"error":"question is required"}`, http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func writeChatError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, publicError(err)), http.StatusBadRequest)
		return
	}
	logger.Error("chat failed", "err", err)
	http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
}

func recordHistory(ctx context.Context, cat *catalog.Catalog, req ChatRequest, resp *rag.Response, logger *slog.Logger) {
	if req.UserID == "" {
		return
	}
	if err := cat.RecordAsk(ctx, req.UserID, req.Question, resp.Intent, time.Now()); err != nil {
		logger.Warn("history record failed", "user_id", req.UserID, "err", err)
	}
}

func handleFAQ(questions *semantic.QuestionStore, limit int, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := limit
		if v := r.URL.Query().Get("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
				n = parsed
			}
		}

		top, err := questions.Top(r.Context(), n)
		if err != nil {
			logger.Error("faq lookup failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}

		type faqEntry struct {
			Question string        `json:"question"`
			Answer   string        `json:"answer"`
			Intent   domain.Intent `json:"intent"`
			Count    int64         `json:"count"`
		}
		entries := make([]faqEntry, len(top))
		for i, q := range top {
			entries[i] = faqEntry{Question: q.Question, Answer: q.Answer, Intent: q.Intent, Count: q.Count}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"faq": entries})
	}
}

func handleHistory(cat *catalog.Catalog, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			http.Error(w, `{"error":"user_id is required"}`, http.StatusBadRequest)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		entries, err := cat.History(r.Context(), userID, limit)
		if err != nil {
			logger.Error("history lookup failed", "user_id", userID, "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"history": entries})
	}
}

func handleListDocuments(cat *catalog.Catalog, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := map[string]any{}
		if d := r.URL.Query().Get("department"); d != "" {
			filter["department"] = d
		}
		if s := r.URL.Query().Get("status"); s != "" {
			filter["status"] = s
		}

		docs, err := cat.List(r.Context(), repo.ListOpts{Limit: 500, Filter: filter})
		if err != nil {
			logger.Error("document list failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"documents": docs})
	}
}

// UploadRequest is the JSON body for POST /api/documents. Text extraction
// happens upstream; the API receives extracted text plus visual elements.
type UploadRequest struct {
	Name       string                 `json:"name"`
	Department string                 `json:"department"`
	FileURL    string                 `json:"file_url,omitempty"`
	Text       string                 `json:"text"`
	Visuals    []ingest.VisualElement `json:"visuals,omitempty"`
}

func handleUploadDocument(cat *catalog.Catalog, nc *nats.Conn, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		doc := domain.Document{
			ID:         uuid.NewString(),
			Name:       req.Name,
			Department: req.Department,
			FileURL:    req.FileURL,
			UploadedAt: time.Now().UTC(),
			Status:     domain.StatusPending,
		}
		if err := domain.ValidateDocument(doc); err != nil {
			http.Error(w, fmt.Sprintf(`{"error":%q}`, publicError(err)), http.StatusBadRequest)
			return
		}

		if err := cat.Save(r.Context(), doc); err != nil {
			logger.Error("document register failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}

		ev := ingest.UploadEvent{Document: doc, Text: req.Text, Visuals: req.Visuals}
		if err := natsutil.Publish(r.Context(), nc, ingest.UploadSubject, ev); err != nil {
			logger.Error("upload event publish failed", "document_id", doc.ID, "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(doc)
	}
}

func handleDeleteDocument(cat *catalog.Catalog, chunks *semantic.ChunkStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		if err := chunks.DeleteByDocument(r.Context(), id); err != nil {
			logger.Error("chunk delete failed", "document_id", id, "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		if err := cat.Delete(r.Context(), id); err != nil {
			logger.Error("catalog delete failed", "document_id", id, "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// publicError strips wrapping prefixes for client display.
func publicError(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

// --- Adapters ---

// breakerEmbedder guards embedding calls with a circuit breaker so a dead
// upstream fails fast instead of stalling every request.
type breakerEmbedder struct {
	ai      *gemini.Client
	breaker *resilience.Breaker
}

func (b *breakerEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := b.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		vec, err = b.ai.EmbedQuery(ctx, text)
		return err
	})
	return vec, err
}
