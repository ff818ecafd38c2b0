package keyword

import (
	"strings"
	"unicode"
)

// tokenizeQuery splits query into lowercase terms the way the standard analyzer does.
func tokenizeQuery(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// CorrectQuery replaces query terms that do not occur in the indexed content
// with the most frequent indexed term within maxDistance edits.
// It reports whether any term was replaced.
func (b *BleveIndex) CorrectQuery(query string, maxDistance int) (string, bool, error) {
	terms := tokenizeQuery(query)
	if len(terms) == 0 {
		return query, false, nil
	}
	if maxDistance <= 0 {
		maxDistance = 2
	}

	dict, err := b.index.FieldDict(fieldContent)
	if err != nil {
		return query, false, err
	}
	defer dict.Close()

	type candidate struct {
		term     string
		distance int
		count    uint64
	}
	known := make(map[string]bool, len(terms))
	best := make(map[string]candidate, len(terms))
	for {
		entry, err := dict.Next()
		if err != nil {
			return query, false, err
		}
		if entry == nil {
			break
		}
		for _, t := range terms {
			if entry.Term == t {
				known[t] = true
				continue
			}
			if abs(len(entry.Term)-len(t)) > maxDistance {
				continue
			}
			d := levenshtein(t, entry.Term)
			if d > maxDistance {
				continue
			}
			cur, ok := best[t]
			if !ok || d < cur.distance || (d == cur.distance && entry.Count > cur.count) {
				best[t] = candidate{term: entry.Term, distance: d, count: entry.Count}
			}
		}
	}

	changed := false
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t
		if known[t] {
			continue
		}
		if c, ok := best[t]; ok {
			out[i] = c.term
			changed = true
		}
	}
	return strings.Join(out, " "), changed, nil
}

// levenshtein returns the edit distance between a and b over runes.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
