package semantic

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
)

// Point IDs must be UUIDs for Qdrant. Logical IDs (chunk IDs, question
// IDs) are hashed into stable UUIDs so re-ingestion overwrites in place.
var (
	chunkNamespace    = uuid.NewSHA1(uuid.NameSpaceURL, []byte("askcampus/chunks"))
	questionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("askcampus/questions"))
)

func chunkPointID(chunkID string) string {
	return uuid.NewSHA1(chunkNamespace, []byte(chunkID)).String()
}

func questionPointID(questionID string) string {
	return uuid.NewSHA1(questionNamespace, []byte(questionID)).String()
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func intValue(n int64) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: n}}
}

func payloadString(p map[string]*pb.Value, key string) string {
	v, ok := p[key]
	if !ok {
		return ""
	}
	// Numbers occasionally arrive where strings are expected (page numbers
	// written by older ingest runs); render them instead of dropping them.
	if _, isInt := v.GetKind().(*pb.Value_IntegerValue); isInt {
		return strconv.FormatInt(v.GetIntegerValue(), 10)
	}
	return v.GetStringValue()
}

func payloadInt(p map[string]*pb.Value, key string) int64 {
	return p[key].GetIntegerValue()
}

func payloadTime(p map[string]*pb.Value, key string) time.Time {
	t, err := time.Parse(time.RFC3339, payloadString(p, key))
	if err != nil {
		return time.Time{}
	}
	return t
}

func pointVector(r *pb.RetrievedPoint) []float32 {
	return r.GetVectors().GetVector().GetData()
}
