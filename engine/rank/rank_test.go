package rank

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
)

func chunk(id, docID string, idx int, typ domain.ChunkType, emb []float32) domain.Chunk {
	return domain.Chunk{ID: id, DocumentID: docID, Index: idx, Type: typ, Content: "content " + id, Embedding: emb}
}

func TestCosine_Symmetry(t *testing.T) {
	a := []float32{0.3, 0.1, 0.9}
	b := []float32{0.2, 0.8, 0.4}
	if Cosine(a, b) != Cosine(b, a) {
		t.Errorf("cosine not symmetric: %v vs %v", Cosine(a, b), Cosine(b, a))
	}
}

func TestCosine_SelfSimilarity(t *testing.T) {
	a := []float32{0.5, -0.2, 0.7, 0.1}
	if got := Cosine(a, a); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("self similarity = %v, want ~1.0", got)
	}
}

func TestCosine_ZeroVector(t *testing.T) {
	a := []float32{0.5, 0.2}
	zero := []float32{0, 0}
	for _, got := range []float64{Cosine(a, zero), Cosine(zero, a), Cosine(zero, zero)} {
		if got != 0 {
			t.Errorf("zero-vector similarity = %v, want 0", got)
		}
		if math.IsNaN(got) {
			t.Error("zero-vector similarity is NaN")
		}
	}
}

func TestCosine_LengthMismatch(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Errorf("mismatched lengths = %v, want 0", got)
	}
}

func TestRank_EmptyQuery(t *testing.T) {
	_, err := Rank(nil, nil, 5, nil, Options{})
	if !errors.Is(err, domain.ErrEmptyEmbedding) {
		t.Errorf("expected ErrEmptyEmbedding, got %v", err)
	}
}

func TestRank_NegativeK(t *testing.T) {
	_, err := Rank([]float32{1, 0}, nil, -1, nil, Options{})
	if !errors.Is(err, domain.ErrNegativeK) {
		t.Errorf("expected ErrNegativeK, got %v", err)
	}
}

func TestRank_SkipsMissingEmbeddings(t *testing.T) {
	query := []float32{1, 0}
	candidates := []domain.Chunk{
		chunk("c1", "d1", 0, domain.ChunkTypeText, []float32{1, 0}),
		chunk("c2", "d1", 1, domain.ChunkTypeText, nil),
		chunk("c3", "d1", 2, domain.ChunkTypeText, []float32{0, 1}),
	}
	got, err := Rank(query, candidates, 10, nil, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 ranked chunks, got %d", len(got))
	}
	for _, rc := range got {
		if rc.ID == "c2" {
			t.Error("chunk without embedding should be skipped")
		}
	}
}

func TestRank_SortedDescendingAndKLimit(t *testing.T) {
	query := []float32{1, 0}
	candidates := []domain.Chunk{
		chunk("low", "d1", 0, domain.ChunkTypeText, []float32{0.2, 1}),
		chunk("high", "d2", 0, domain.ChunkTypeText, []float32{1, 0.05}),
		chunk("mid", "d3", 0, domain.ChunkTypeText, []float32{1, 0.8}),
	}
	got, err := Rank(query, candidates, 2, nil, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected k=2 results, got %d", len(got))
	}
	for i := 0; i+1 < len(got); i++ {
		if got[i].Score < got[i+1].Score {
			t.Errorf("not sorted descending at %d: %v < %v", i, got[i].Score, got[i+1].Score)
		}
	}
	if got[0].ID != "high" {
		t.Errorf("expected best match first, got %s", got[0].ID)
	}
}

func TestRank_KLargerThanPool(t *testing.T) {
	query := []float32{1, 0}
	candidates := []domain.Chunk{chunk("c1", "d1", 0, domain.ChunkTypeText, []float32{1, 0})}
	got, err := Rank(query, candidates, 10, nil, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected all candidates when k exceeds pool, got %d", len(got))
	}
}

func TestRank_KZero(t *testing.T) {
	query := []float32{1, 0}
	candidates := []domain.Chunk{chunk("c1", "d1", 0, domain.ChunkTypeText, []float32{1, 0})}
	got, err := Rank(query, candidates, 0, nil, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result for k=0, got %d", len(got))
	}
}

func TestRank_StableOnTies(t *testing.T) {
	query := []float32{1, 0}
	emb := []float32{1, 0}
	candidates := []domain.Chunk{
		chunk("first", "d1", 0, domain.ChunkTypeText, emb),
		chunk("second", "d2", 0, domain.ChunkTypeText, emb),
		chunk("third", "d3", 0, domain.ChunkTypeText, emb),
	}
	got, err := Rank(query, candidates, 3, nil, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	order := []string{got[0].ID, got[1].ID, got[2].ID}
	if !reflect.DeepEqual(order, []string{"first", "second", "third"}) {
		t.Errorf("tie order not stable: %v", order)
	}
}

func TestRank_VisualBoost(t *testing.T) {
	query := []float32{1, 0}
	candidates := []domain.Chunk{
		chunk("text", "d1", 0, domain.ChunkTypeText, []float32{1, 0.3}),
		chunk("visual", "d2", 0, domain.ChunkTypeVisual, []float32{1, 0.4}),
	}

	// Without boost the text chunk wins.
	plain, err := Rank(query, candidates, 2, nil, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plain[0].ID != "text" {
		t.Fatalf("expected text chunk first without boost, got %s", plain[0].ID)
	}

	// With the 1.3x visual boost the visual chunk overtakes it.
	boosted, err := Rank(query, candidates, 2, nil, Options{Boost: VisualBoost(0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if boosted[0].ID != "visual" {
		t.Errorf("expected visual chunk first with boost, got %s", boosted[0].ID)
	}
	v := boosted[0]
	if math.Abs(v.Score-v.OriginalScore*DefaultVisualMultiplier) > 1e-9 {
		t.Errorf("boosted score = %v, want original %v * %v", v.Score, v.OriginalScore, DefaultVisualMultiplier)
	}
	if !v.IsVisualContent {
		t.Error("IsVisualContent not set for visual chunk")
	}
}

func TestRank_BoostIdempotentOnNonMatching(t *testing.T) {
	query := []float32{0.4, 0.9}
	candidates := []domain.Chunk{
		chunk("a", "d1", 0, domain.ChunkTypeText, []float32{0.5, 0.5}),
		chunk("b", "d2", 0, domain.ChunkTypeText, []float32{0.9, 0.1}),
	}
	plain, _ := Rank(query, candidates, 2, nil, Options{})
	boosted, _ := Rank(query, candidates, 2, nil, Options{Boost: VisualBoost(0)})
	if !reflect.DeepEqual(plain, boosted) {
		t.Error("boost changed ranking despite no matching chunks")
	}
}

func TestRank_DocumentMetadata(t *testing.T) {
	uploaded := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	docs := DocMap{
		"d1": {ID: "d1", Name: "Hostel Rules", Department: "Student Affairs", FileURL: "https://files/hostel.pdf", UploadedAt: uploaded},
	}
	query := []float32{1, 0}
	candidates := []domain.Chunk{
		chunk("known", "d1", 0, domain.ChunkTypeText, []float32{1, 0}),
		chunk("orphan", "gone", 0, domain.ChunkTypeText, []float32{1, 0.1}),
	}
	got, err := Rank(query, candidates, 2, docs, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var known, orphan RankedChunk
	for _, rc := range got {
		switch rc.ID {
		case "known":
			known = rc
		case "orphan":
			orphan = rc
		}
	}
	if known.DocumentName != "Hostel Rules" || known.Department != "Student Affairs" {
		t.Errorf("known doc metadata not attached: %+v", known)
	}
	if !known.UploadedAt.Equal(uploaded) {
		t.Errorf("uploadedAt = %v, want %v", known.UploadedAt, uploaded)
	}
	if orphan.DocumentName != domain.UnknownDocumentName {
		t.Errorf("orphan document name = %q, want placeholder", orphan.DocumentName)
	}
	if orphan.Department != domain.UnknownDepartment {
		t.Errorf("orphan department = %q, want placeholder", orphan.Department)
	}
	if orphan.FileURL != "" {
		t.Errorf("orphan fileURL = %q, want empty", orphan.FileURL)
	}
}

func TestRank_Idempotent(t *testing.T) {
	query := []float32{0.2, 0.7, 0.1}
	candidates := []domain.Chunk{
		chunk("a", "d1", 0, domain.ChunkTypeText, []float32{0.3, 0.3, 0.3}),
		chunk("b", "d2", 1, domain.ChunkTypeVisual, []float32{0.1, 0.9, 0.2}),
		chunk("c", "d3", 2, domain.ChunkTypeText, nil),
	}
	opts := Options{Boost: VisualBoost(1.3)}
	first, err := Rank(query, candidates, 2, nil, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Rank(query, candidates, 2, nil, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Rank is not idempotent over identical inputs")
	}
}
