// ABOUTME: Retrieval result and pipeline answer models
// ABOUTME: Results are ranked by descending cosine similarity
package models

// ScoredMovie is one ranked candidate
type ScoredMovie struct {
	Movie      MovieRecord `json:"movie"`
	Similarity float64     `json:"similarity"`
}

// RetrievalResult is an ordered candidate list, best match first
type RetrievalResult struct {
	Items []ScoredMovie `json:"items"`
}

// Len returns the number of candidates
func (r RetrievalResult) Len() int {
	return len(r.Items)
}

// Empty reports whether nothing matched
func (r RetrievalResult) Empty() bool {
	return len(r.Items) == 0
}

// Titles lists candidate titles in rank order
func (r RetrievalResult) Titles() []string {
	titles := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		titles = append(titles, it.Movie.Title)
	}
	return titles
}

// Answer is the full output of one pipeline run
type Answer struct {
	RewrittenQuery string          `json:"rewritten_query"`
	Results        RetrievalResult `json:"results"`
	Explanation    string          `json:"explanation"`
}

// StoreStats describes a vector collection
type StoreStats struct {
	Backend   string `json:"backend"`
	Location  string `json:"location"`
	Count     int    `json:"count"`
	Dimension int    `json:"dimension"`
}
