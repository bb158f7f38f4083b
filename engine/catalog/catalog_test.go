package catalog

import (
	"testing"
	"time"

	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
)

func TestDocumentToMap(t *testing.T) {
	uploaded := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	d := domain.Document{
		ID:         "doc1",
		Name:       "Admission Requirements",
		Department: "Admissions Office",
		FileURL:    "https://files.example.edu/doc1.pdf",
		UploadedAt: uploaded,
		Status:     domain.StatusProcessed,
	}
	m := documentToMap(d)
	if m["id"] != "doc1" || m["name"] != "Admission Requirements" {
		t.Fatalf("identity fields: %v", m)
	}
	if m["status"] != "processed" {
		t.Fatalf("status = %v", m["status"])
	}
	if m["uploaded_at"] != uploaded.Format(time.RFC3339) {
		t.Fatalf("uploaded_at = %v", m["uploaded_at"])
	}
}

func TestDocumentToMap_OmitsEmptyOptionals(t *testing.T) {
	m := documentToMap(domain.Document{ID: "doc1", Name: "n", Status: domain.StatusPending})
	if _, ok := m["file_url"]; ok {
		t.Error("empty file_url must not be written")
	}
	if _, ok := m["uploaded_at"]; ok {
		t.Error("zero uploaded_at must not be written")
	}
}

func TestTimeProp(t *testing.T) {
	props := map[string]any{
		"good": "2026-01-05T10:00:00Z",
		"bad":  "yesterday",
		"num":  42,
	}
	if got := timeProp(props, "good"); got.IsZero() {
		t.Error("valid RFC3339 not parsed")
	}
	if got := timeProp(props, "bad"); !got.IsZero() {
		t.Errorf("invalid value parsed to %v", got)
	}
	if got := timeProp(props, "num"); !got.IsZero() {
		t.Errorf("non-string value parsed to %v", got)
	}
	if got := timeProp(props, "missing"); !got.IsZero() {
		t.Errorf("missing key parsed to %v", got)
	}
}

func TestStrProp(t *testing.T) {
	props := map[string]any{"name": "Handbook", "count": 3}
	if got := strProp(props, "name"); got != "Handbook" {
		t.Errorf("strProp = %q", got)
	}
	if got := strProp(props, "count"); got != "" {
		t.Errorf("non-string prop = %q, want empty", got)
	}
}

func TestNewCatalog(t *testing.T) {
	// Construction needs no live Neo4j.
	if c := New(nil); c == nil {
		t.Fatal("expected non-nil Catalog")
	}
}
