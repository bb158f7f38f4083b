package semantic

import (
	"context"
	"fmt"
	"sort"
	"time"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
)

// DefaultQuestionCollection is the Qdrant collection holding answered
// questions for cache lookups and FAQ ranking.
const DefaultQuestionCollection = "questions"

// QuestionStore persists answered questions with their embeddings.
type QuestionStore struct {
	client     *Client
	collection string
	dims       int
	now        func() time.Time
}

// NewQuestionStore creates a QuestionStore over the given collection.
func NewQuestionStore(client *Client, collection string, dims int) *QuestionStore {
	if collection == "" {
		collection = DefaultQuestionCollection
	}
	return &QuestionStore{client: client, collection: collection, dims: dims, now: time.Now}
}

// EnsureCollection creates the question collection if it doesn't exist.
func (s *QuestionStore) EnsureCollection(ctx context.Context) error {
	return s.client.ensureCollection(ctx, s.collection, s.dims)
}

// Save stores a freshly answered question with an ask count of one.
func (s *QuestionStore) Save(ctx context.Context, q domain.CachedQuestion) error {
	if len(q.Embedding) == 0 {
		return fmt.Errorf("semantic: save question %s: %w", q.ID, domain.ErrEmptyEmbedding)
	}

	now := s.now().UTC()
	created := q.CreatedAt
	if created.IsZero() {
		created = now
	}

	point := &pb.PointStruct{
		Id: &pb.PointId{
			PointIdOptions: &pb.PointId_Uuid{Uuid: questionPointID(q.ID)},
		},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{Data: q.Embedding},
			},
		},
		Payload: map[string]*pb.Value{
			"question_id":   stringValue(q.ID),
			"question":      stringValue(q.Question),
			"answer":        stringValue(q.Answer),
			"intent":        stringValue(string(q.Intent)),
			"count":         intValue(1),
			"created_at":    stringValue(created.Format(time.RFC3339)),
			"last_asked_at": stringValue(now.Format(time.RFC3339)),
		},
	}

	wait := true
	_, err := s.client.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         []*pb.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("semantic: save question %s: %w", q.ID, err)
	}
	return nil
}

// ByIntent returns every cached question of an intent, embeddings included.
// This is the candidate pool for the similarity cache.
func (s *QuestionStore) ByIntent(ctx context.Context, intent domain.Intent) ([]domain.CachedQuestion, error) {
	filter := &pb.Filter{Must: []*pb.Condition{fieldMatch("intent", string(intent))}}
	points, err := s.client.scrollAll(ctx, s.collection, filter)
	if err != nil {
		return nil, err
	}

	questions := make([]domain.CachedQuestion, 0, len(points))
	for _, p := range points {
		questions = append(questions, questionFromPoint(p))
	}
	return questions, nil
}

// IncrementCount bumps the ask count and last-asked timestamp of a cached
// question. Read-modify-write: the current count is fetched first rather
// than sent as a server-side increment, which Qdrant payloads don't support.
func (s *QuestionStore) IncrementCount(ctx context.Context, questionID string) error {
	id := &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: questionPointID(questionID)}}

	resp, err := s.client.points.Get(ctx, &pb.GetPoints{
		CollectionName: s.collection,
		Ids:            []*pb.PointId{id},
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return fmt.Errorf("semantic: get question %s: %w", questionID, err)
	}
	if len(resp.GetResult()) == 0 {
		return fmt.Errorf("semantic: increment question %s: not found", questionID)
	}

	count := payloadInt(resp.GetResult()[0].GetPayload(), "count")

	wait := true
	_, err = s.client.points.SetPayload(ctx, &pb.SetPayloadPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Payload: map[string]*pb.Value{
			"count":         intValue(count + 1),
			"last_asked_at": stringValue(s.now().UTC().Format(time.RFC3339)),
		},
		PointsSelector: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{id}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: increment question %s: %w", questionID, err)
	}
	return nil
}

// Top returns the n most-asked questions, most asked first. Backs the FAQ
// listing.
func (s *QuestionStore) Top(ctx context.Context, n int) ([]domain.CachedQuestion, error) {
	points, err := s.client.scrollAll(ctx, s.collection, nil)
	if err != nil {
		return nil, err
	}

	questions := make([]domain.CachedQuestion, 0, len(points))
	for _, p := range points {
		questions = append(questions, questionFromPoint(p))
	}
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Count > questions[j].Count
	})
	if n > 0 && len(questions) > n {
		questions = questions[:n]
	}
	return questions, nil
}

func questionFromPoint(p *pb.RetrievedPoint) domain.CachedQuestion {
	payload := p.GetPayload()
	return domain.CachedQuestion{
		ID:          payloadString(payload, "question_id"),
		Question:    payloadString(payload, "question"),
		Answer:      payloadString(payload, "answer"),
		Intent:      domain.Intent(payloadString(payload, "intent")),
		Count:       payloadInt(payload, "count"),
		CreatedAt:   payloadTime(payload, "created_at"),
		LastAskedAt: payloadTime(payload, "last_asked_at"),
		Embedding:   pointVector(p),
	}
}
