package sqlite

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/pkg/errors"
)

func placeholder(int) string {
	return "?"
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func encodeVector(v []float32) (string, error) {
	if len(v) == 0 {
		return "", nil
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode embedding")
	}
	return string(buf), nil
}

func decodeVector(s string) ([]float32, error) {
	if s == "" {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, errors.Wrap(err, "failed to decode embedding")
	}
	return v, nil
}

// cosineSimilarity returns 0 for mismatched or zero vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
