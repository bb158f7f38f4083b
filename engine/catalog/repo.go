package catalog

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
	"github.com/AskCampusAI/askcampus-mvp/pkg/repo"
)

// newDocumentRepo creates a Neo4j-backed repository for Document nodes.
func newDocumentRepo(driver neo4j.DriverWithContext) *repo.Neo4jRepo[domain.Document, string] {
	return repo.NewNeo4jRepo[domain.Document, string](
		driver,
		"Document",
		documentToMap,
		documentFromRecord,
	)
}

func documentToMap(d domain.Document) map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"name":       d.Name,
		"department": d.Department,
		"status":     string(d.Status),
	}
	if d.FileURL != "" {
		m["file_url"] = d.FileURL
	}
	if !d.UploadedAt.IsZero() {
		m["uploaded_at"] = d.UploadedAt.UTC().Format(time.RFC3339)
	}
	return m
}

func documentFromRecord(rec *neo4j.Record) (domain.Document, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return domain.Document{}, err
	}
	props := node.Props
	return domain.Document{
		ID:         strProp(props, "id"),
		Name:       strProp(props, "name"),
		Department: strProp(props, "department"),
		FileURL:    strProp(props, "file_url"),
		UploadedAt: timeProp(props, "uploaded_at"),
		Status:     domain.DocumentStatus(strProp(props, "status")),
	}, nil
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
