package models

import (
	"testing"
)

func TestRetrieveQuery_Validate(t *testing.T) {
	tests := []struct {
		name     string
		query    *RetrieveQuery
		wantErr  bool
		wantTopK int
	}{
		{"empty query", &RetrieveQuery{Query: "  "}, true, 0},
		{"sets default top_k", &RetrieveQuery{Query: "x"}, false, 20},
		{"caps top_k at max", &RetrieveQuery{Query: "x", TopK: 100}, false, 50},
		{"keeps top_k in range", &RetrieveQuery{Query: "x", TopK: 7}, false, 7},
		{"negative top_k uses default", &RetrieveQuery{Query: "x", TopK: -3}, false, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate(20, 50)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.query.TopK != tt.wantTopK {
				t.Errorf("TopK = %d, want %d", tt.query.TopK, tt.wantTopK)
			}
		})
	}
}

func TestClampTopK(t *testing.T) {
	if got := ClampTopK(0, 0, 50); got != 1 {
		t.Errorf("zero default should clamp to 1, got %d", got)
	}
	if got := ClampTopK(100, 20, 0); got != 50 {
		t.Errorf("unset max should fall back to 50, got %d", got)
	}
}
