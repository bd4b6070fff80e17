package models

// Strategy names the retrieval path that produced a result.
type Strategy string

const (
	// StrategySemantic means providers came from the vector index.
	StrategySemantic Strategy = "semantic"
	// StrategyKeyword means providers came from the keyword fallback matcher.
	StrategyKeyword Strategy = "keyword"
	// StrategyNone means neither path found anything.
	StrategyNone Strategy = "none"
)

// Hit is a single vector index match.
type Hit struct {
	ID      int64   `json:"id"`
	Score   float64 `json:"score"`
	Payload Payload `json:"payload"`
}

// Retrieval is the ranked output of the retrieval pipeline.
// Scores is parallel to Providers for semantic results and nil for keyword results,
// which carry no similarity score.
type Retrieval struct {
	Providers []*Provider `json:"providers"`
	Scores    []float64   `json:"scores,omitempty"`
	Strategy  Strategy    `json:"strategy"`
}

// Empty reports whether no providers were retrieved.
func (r *Retrieval) Empty() bool {
	return r == nil || len(r.Providers) == 0
}
