package models

import "time"

// ModelProvider tags the API dialect an endpoint speaks.
type ModelProvider string

const (
	ProviderGemini           ModelProvider = "gemini"
	ProviderClaude           ModelProvider = "claude"
	ProviderOpenAICompatible ModelProvider = "openai-compatible"
)

// ModelEndpoint is one concrete network target underneath a logical
// model. Endpoints are shared by value across concurrent invocations;
// only their circuit breakers carry mutable state.
type ModelEndpoint struct {
	ID          string   `json:"id"`
	APIKey      string   `json:"api_key"`
	BaseURL     string   `json:"base_url,omitempty"`
	Priority    int      `json:"priority"` // higher is preferred
	Enabled     bool     `json:"enabled"`
	Temperature *float64 `json:"temperature,omitempty"`
	VerifySSL   *bool    `json:"verify_ssl,omitempty"`

	// SourceName is the display name of the raw config entry that
	// produced this endpoint, kept for diagnostics.
	SourceName string `json:"source_name,omitempty"`
}

// ModelConfig is a logical model: one identity served by an ordered,
// non-empty pool of enabled endpoints with failover.
type ModelConfig struct {
	Name      string          `json:"name"`
	Provider  ModelProvider   `json:"provider"`
	ModelName string          `json:"model_name"`
	Endpoints []ModelEndpoint `json:"endpoints"` // sorted by priority desc
}

// StrategyPoints are the actionable price levels extracted from a model
// response.
type StrategyPoints struct {
	IdealBuy     string `json:"ideal_buy,omitempty"`
	SecondaryBuy string `json:"secondary_buy,omitempty"`
	StopLoss     string `json:"stop_loss,omitempty"`
	TakeProfit   string `json:"take_profit,omitempty"`
}

// IsZero reports whether no strategy point is populated.
func (s StrategyPoints) IsZero() bool {
	return s.IdealBuy == "" && s.SecondaryBuy == "" && s.StopLoss == "" && s.TakeProfit == ""
}

// ModelResult is the outcome of running one logical model against an
// analysis context, including the endpoint failover trail.
type ModelResult struct {
	ModelName  string        `json:"model_name"`
	Success    bool          `json:"success"`
	Score      *float64      `json:"score,omitempty"` // [0,100]
	Advice     string        `json:"advice,omitempty"`
	Trend      string        `json:"trend,omitempty"`
	Summary    string        `json:"summary,omitempty"`
	Confidence *float64      `json:"confidence,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`

	EndpointTried []string `json:"endpoint_tried"`           // ordered, contiguous prefix of the pool
	EndpointUsed  string   `json:"endpoint_used,omitempty"`  // winning endpoint id
	FallbackCount int      `json:"fallback_count"`           // len(endpoint_tried) - 1
	Error         string   `json:"error,omitempty"`

	Strategy *StrategyPoints        `json:"strategy,omitempty"`
	Raw      map[string]interface{} `json:"raw,omitempty"`
}

// PanelResult aggregates the expert panel over one symbol.
type PanelResult struct {
	StockCode  string        `json:"stock_code"`
	StockName  string        `json:"stock_name,omitempty"`
	ModelsUsed []string      `json:"models_used"`
	Results    []ModelResult `json:"results"`

	ConsensusScore    *float64        `json:"consensus_score,omitempty"`
	ConsensusAdvice   string          `json:"consensus_advice"`
	ConsensusSummary  string          `json:"consensus_summary"`
	ConsensusStrategy *StrategyPoints `json:"consensus_strategy,omitempty"`
}
