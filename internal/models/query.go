package models

import (
	"fmt"
	"strings"
)

// RetrieveQuery is a request for the top sources of a project for a query.
type RetrieveQuery struct {
	ProjectID int64  `json:"project_id"`
	Query     string `json:"query"`
	TopK      int    `json:"top_k,omitempty"`
}

// Validate ensures the query is non-empty and clamps TopK into [1, maxTopK],
// using defaultTopK when TopK is unset.
func (q *RetrieveQuery) Validate(defaultTopK, maxTopK int) error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	q.TopK = ClampTopK(q.TopK, defaultTopK, maxTopK)
	return nil
}

// ClampTopK returns k bounded to [1, maxTopK]; k <= 0 selects defaultTopK.
func ClampTopK(k, defaultTopK, maxTopK int) int {
	if maxTopK <= 0 {
		maxTopK = 50
	}
	if k <= 0 {
		k = defaultTopK
	}
	if k < 1 {
		k = 1
	}
	if k > maxTopK {
		k = maxTopK
	}
	return k
}
