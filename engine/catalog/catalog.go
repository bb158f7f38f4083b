// Package catalog stores document metadata in Neo4j. Documents are nodes
// linked to Department nodes; chunk text and embeddings live in the vector
// store, not here.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
	"github.com/AskCampusAI/askcampus-mvp/engine/rank"
	"github.com/AskCampusAI/askcampus-mvp/pkg/repo"
)

// Catalog provides document catalog operations on top of the generic
// Neo4j repository.
type Catalog struct {
	driver    neo4j.DriverWithContext
	documents *repo.Neo4jRepo[domain.Document, string]
}

// New creates a Catalog.
func New(driver neo4j.DriverWithContext) *Catalog {
	return &Catalog{
		driver:    driver,
		documents: newDocumentRepo(driver),
	}
}

// Get returns a document by ID.
func (c *Catalog) Get(ctx context.Context, id string) (domain.Document, error) {
	return c.documents.Get(ctx, id)
}

// List returns documents with pagination.
func (c *Catalog) List(ctx context.Context, opts repo.ListOpts) ([]domain.Document, error) {
	return c.documents.List(ctx, opts)
}

// Save creates or updates a document node and links it to its department.
func (c *Catalog) Save(ctx context.Context, d domain.Document) error {
	if err := domain.ValidateDocument(d); err != nil {
		return fmt.Errorf("catalog: save: %w", err)
	}

	sess := c.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MERGE (n:Document {id: $id}) SET n += $props`
	if d.Department != "" {
		cypher += `
		 MERGE (dep:Department {name: $department})
		 MERGE (n)-[:BELONGS_TO]->(dep)`
	}
	_, err := sess.Run(ctx, cypher, map[string]any{
		"id":         d.ID,
		"props":      documentToMap(d),
		"department": d.Department,
	})
	if err != nil {
		return fmt.Errorf("catalog: save document %s: %w", d.ID, err)
	}
	return nil
}

// SetStatus updates a document's ingestion status.
func (c *Catalog) SetStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	sess := c.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (n:Document {id: $id}) SET n.status = $status`
	_, err := sess.Run(ctx, cypher, map[string]any{"id": id, "status": string(status)})
	if err != nil {
		return fmt.Errorf("catalog: set status of %s: %w", id, err)
	}
	return nil
}

// Delete removes a document node and its department link.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	sess := c.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (n:Document {id: $id}) DETACH DELETE n`
	_, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("catalog: delete document %s: %w", id, err)
	}
	return nil
}

// ByDepartment returns all documents linked to a department.
func (c *Catalog) ByDepartment(ctx context.Context, department string) ([]domain.Document, error) {
	sess := c.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (n:Document)-[:BELONGS_TO]->(:Department {name: $department}) RETURN n`
	result, err := sess.Run(ctx, cypher, map[string]any{"department": department})
	if err != nil {
		return nil, fmt.Errorf("catalog: documents of department %s: %w", department, err)
	}

	var docs []domain.Document
	for result.Next(ctx) {
		d, err := documentFromRecord(result.Record())
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// LookupMap snapshots the whole catalog into a map for ranking enrichment.
func (c *Catalog) LookupMap(ctx context.Context) (rank.DocMap, error) {
	docs, err := c.documents.List(ctx, repo.ListOpts{Limit: 10000})
	if err != nil {
		return nil, fmt.Errorf("catalog: snapshot: %w", err)
	}

	m := make(rank.DocMap, len(docs))
	for _, d := range docs {
		m[d.ID] = d
	}
	return m, nil
}

// HistoryEntry is one question a user asked.
type HistoryEntry struct {
	Question string        `json:"question"`
	Intent   domain.Intent `json:"intent"`
	AskedAt  time.Time     `json:"asked_at"`
}

// RecordAsk appends a question to a user's history.
func (c *Catalog) RecordAsk(ctx context.Context, userID, question string, intent domain.Intent, at time.Time) error {
	sess := c.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MERGE (u:User {id: $user})
	 CREATE (q:AskedQuestion {text: $text, intent: $intent, asked_at: $at})
	 CREATE (u)-[:ASKED]->(q)`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"user":   userID,
		"text":   question,
		"intent": string(intent),
		"at":     at.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("catalog: record ask for %s: %w", userID, err)
	}
	return nil
}

// History returns a user's most recent questions, newest first.
func (c *Catalog) History(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	sess := c.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (:User {id: $user})-[:ASKED]->(q:AskedQuestion)
	 RETURN q.text AS text, q.intent AS intent, q.asked_at AS asked_at
	 ORDER BY q.asked_at DESC LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"user": userID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("catalog: history of %s: %w", userID, err)
	}

	var entries []HistoryEntry
	for result.Next(ctx) {
		rec := result.Record()
		e := HistoryEntry{}
		if v, ok := rec.Get("text"); ok {
			e.Question, _ = v.(string)
		}
		if v, ok := rec.Get("intent"); ok {
			if s, isStr := v.(string); isStr {
				e.Intent = domain.Intent(s)
			}
		}
		if v, ok := rec.Get("asked_at"); ok {
			if s, isStr := v.(string); isStr {
				if t, perr := time.Parse(time.RFC3339, s); perr == nil {
					e.AskedAt = t
				}
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func timeProp(props map[string]any, key string) time.Time {
	v, ok := props[key]
	if !ok {
		return time.Time{}
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
