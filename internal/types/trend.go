package types

// TrendSignal is a single product observation from one trend source.
type TrendSignal struct {
	Title    string  `json:"title"`
	Source   string  `json:"source"`
	Mentions int     `json:"mentions"`
	Score    float64 `json:"score"`
	Price    string  `json:"price,omitempty"`
	URL      string  `json:"url,omitempty"`
}

// IntelligenceInsight is the model's reading of a niche's trend data.
type IntelligenceInsight struct {
	Summary string   `json:"summary"`
	Angles  []string `json:"angles"`
}
