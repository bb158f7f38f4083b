package semantic

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
)

// DefaultChunkCollection is the Qdrant collection holding document chunks.
const DefaultChunkCollection = "chunks"

// metaPrefix namespaces free-form chunk metadata inside the point payload
// so it cannot collide with the fixed keys.
const metaPrefix = "meta_"

// ChunkStore persists document chunks and their embeddings.
type ChunkStore struct {
	client     *Client
	collection string
	dims       int
}

// NewChunkStore creates a ChunkStore over the given collection. dims is the
// embedding dimensionality, used when the collection has to be created and
// to pad chunks that have no embedding yet.
func NewChunkStore(client *Client, collection string, dims int) *ChunkStore {
	if collection == "" {
		collection = DefaultChunkCollection
	}
	return &ChunkStore{client: client, collection: collection, dims: dims}
}

// EnsureCollection creates the chunk collection if it doesn't exist.
func (s *ChunkStore) EnsureCollection(ctx context.Context) error {
	return s.client.ensureCollection(ctx, s.collection, s.dims)
}

// DropCollection deletes the chunk collection.
func (s *ChunkStore) DropCollection(ctx context.Context) error {
	return s.client.dropCollection(ctx, s.collection)
}

// Upsert stores chunks. Point IDs are derived from chunk IDs, so storing
// the same chunk twice overwrites in place. Chunks without an embedding
// are stored with a zero vector and picked up later by re-embedding.
func (s *ChunkStore) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(chunks))
	for i, c := range chunks {
		embedding := c.Embedding
		if len(embedding) == 0 {
			embedding = make([]float32, s.dims)
		}

		payload := map[string]*pb.Value{
			"chunk_id":    stringValue(c.ID),
			"document_id": stringValue(c.DocumentID),
			"chunk_index": intValue(int64(c.Index)),
			"type":        stringValue(string(c.Type)),
			"content":     stringValue(c.Content),
		}
		for k, v := range c.Metadata {
			payload[metaPrefix+k] = stringValue(v)
		}

		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: chunkPointID(c.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: embedding},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err := s.client.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d chunks: %w", len(chunks), err)
	}
	return nil
}

// DeleteByDocument removes every chunk of a document. Used for re-ingestion
// and document deletion.
func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	wait := true
	_, err := s.client.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						fieldMatch("document_id", documentID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete chunks of document %s: %w", documentID, err)
	}
	return nil
}

// All returns every stored chunk with its embedding. This is the candidate
// pool for ranking; chunks stored without an embedding come back with a
// nil Embedding.
func (s *ChunkStore) All(ctx context.Context) ([]domain.Chunk, error) {
	points, err := s.client.scrollAll(ctx, s.collection, nil)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, 0, len(points))
	for _, p := range points {
		chunks = append(chunks, chunkFromPoint(p))
	}
	return chunks, nil
}

// ByDocument returns the chunks of a single document ordered as stored.
func (s *ChunkStore) ByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	filter := &pb.Filter{Must: []*pb.Condition{fieldMatch("document_id", documentID)}}
	points, err := s.client.scrollAll(ctx, s.collection, filter)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, 0, len(points))
	for _, p := range points {
		chunks = append(chunks, chunkFromPoint(p))
	}
	return chunks, nil
}

func chunkFromPoint(p *pb.RetrievedPoint) domain.Chunk {
	payload := p.GetPayload()

	c := domain.Chunk{
		ID:         payloadString(payload, "chunk_id"),
		DocumentID: payloadString(payload, "document_id"),
		Index:      int(payloadInt(payload, "chunk_index")),
		Type:       domain.NormalizeChunkType(payloadString(payload, "type")),
		Content:    payloadString(payload, "content"),
	}

	if v := pointVector(p); !isZeroVector(v) {
		c.Embedding = v
	}

	for k := range payload {
		name, ok := strings.CutPrefix(k, metaPrefix)
		if !ok {
			continue
		}
		if c.Metadata == nil {
			c.Metadata = make(map[string]string)
		}
		c.Metadata[name] = payloadString(payload, k)
	}

	// Older points carry an index but no chunk ID.
	if c.ID == "" && c.DocumentID != "" {
		c.ID = c.DocumentID + "-" + strconv.Itoa(c.Index)
	}
	return c
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
