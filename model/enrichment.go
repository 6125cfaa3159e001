package model

// Quality describes how an enrichment result was obtained
type Quality string

const (
	// QualityOK means the model response parsed cleanly
	QualityOK Quality = "ok"
	// QualityDegraded means the response needed repairs or default-filled keys
	QualityDegraded Quality = "degraded"
	// QualityFallback means the deterministic fallback produced the result
	QualityFallback Quality = "fallback"
)

// EnrichmentResult is the structured metadata attached to one chunk.
// It is never absent: extraction failures produce fallback values instead.
type EnrichmentResult struct {
	Summary      string   `json:"summary"`
	Tags         []string `json:"tags"`
	Dependencies []string `json:"dependencies"`
	Quality      Quality  `json:"quality"`
}

// EnsureDefaults replaces nil slices and an empty quality with safe values
func (r *EnrichmentResult) EnsureDefaults() {
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if r.Dependencies == nil {
		r.Dependencies = []string{}
	}
	if r.Quality == "" {
		r.Quality = QualityDegraded
	}
}

// Enrichment strategies reported in ProcessingInfo
const (
	StrategyChunked  = "chunked"
	StrategyFallback = "fallback"
)

// ProcessingInfo summarizes how a file was enriched
type ProcessingInfo struct {
	ClassesProcessed int    `json:"classes_processed"`
	MethodsProcessed int    `json:"methods_processed"`
	Strategy         string `json:"strategy"`
	FallbackCount    int    `json:"fallback_count"`
}

// FileEnrichment is the complete enrichment output for one file: the
// enriched tree plus file-level aggregates
type FileEnrichment struct {
	AST            []*EnrichedNode `json:"ast"`
	Summary        string          `json:"summary"`
	Tags           []string        `json:"tags"`
	Dependencies   []string        `json:"dependencies"`
	ProcessingInfo ProcessingInfo  `json:"processing_info"`
}
