package facematch

import (
	"math"
	"testing"
)

func TestClassify(t *testing.T) {
	ana := testIdentity(1, "Ana")

	tests := []struct {
		name      string
		result    MatchResult
		threshold float64
		wantKind  Kind
	}{
		{"below threshold", MatchResult{Identity: ana, Dissimilarity: 42}, 70, KindKnown},
		{"equal to threshold", MatchResult{Identity: ana, Dissimilarity: 70}, 70, KindUnknown},
		{"above threshold", MatchResult{Identity: ana, Dissimilarity: 70.01}, 70, KindUnknown},
		{"zero distance", MatchResult{Identity: ana, Dissimilarity: 0}, 70, KindKnown},
		{"no identity", MatchResult{Dissimilarity: 10}, 70, KindUnknown},
		{"empty gallery", NoMatch(), 70, KindUnknown},
		{"infinite threshold still rejects no match", NoMatch(), math.Inf(1), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.result, tt.threshold)
			if got.Kind != tt.wantKind {
				t.Errorf("Classify() kind = %s, want %s", got.Kind, tt.wantKind)
			}
			if got.Known() && got.Identity != tt.result.Identity {
				t.Error("expected Known classification to carry the matched identity")
			}
			if !got.Known() && got.Identity != nil {
				t.Error("expected Unknown classification without identity")
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	result := MatchResult{Identity: testIdentity(7, "Eva"), Dissimilarity: 69.9}
	first := Classify(result, 70)
	for range 10 {
		if got := Classify(result, 70); got != first {
			t.Fatalf("expected identical classification, got %+v and %+v", first, got)
		}
	}
}
