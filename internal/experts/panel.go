package experts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/metrics"
	"github.com/ternarybob/augur/internal/models"
)

// Service runs the expert panel: a bounded parallel fan-out over the
// configured logical models, sequential endpoint failover inside each
// model, and consensus reduction over the results.
type Service struct {
	logger       arbor.ILogger
	settings     SettingsReader
	analyzers    map[models.ModelProvider]Analyzer
	prompts      *PromptBuilder
	panelWorkers int
	llmTimeout   time.Duration

	mu      sync.RWMutex
	configs []models.ModelConfig
}

// NewService builds the panel from server config and current settings.
func NewService(cfg *common.Config, settings SettingsReader, logger arbor.ILogger) *Service {
	s := &Service{
		logger:       logger,
		settings:     settings,
		analyzers:    NewAnalyzers(cfg.Analysis.LLMTimeout),
		prompts:      NewPromptBuilder(cfg.Analysis.PromptTemplates, logger),
		panelWorkers: cfg.Analysis.PanelWorkers,
		llmTimeout:   cfg.Analysis.LLMTimeout,
	}
	s.configs = ParseModelConfigs(context.Background(), settings)
	return s
}

// Reload re-parses model configuration from current settings.
func (s *Service) Reload() error {
	configs := ParseModelConfigs(context.Background(), s.settings)
	s.mu.Lock()
	s.configs = configs
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.Info().Int("models", len(configs)).Msg("Expert panel model configuration reloaded")
	}
	return nil
}

// Models returns the configured logical models with API keys masked.
func (s *Service) Models() []models.ModelConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ModelConfig, len(s.configs))
	for i, cfg := range s.configs {
		masked := cfg
		masked.Endpoints = make([]models.ModelEndpoint, len(cfg.Endpoints))
		for j, ep := range cfg.Endpoints {
			ep.APIKey = interfaces.MaskToken
			masked.Endpoints[j] = ep
		}
		out[i] = masked
	}
	return out
}

// selectConfigs filters by requested model names, case-insensitively.
// No match, or no request, falls back to all configured models.
func (s *Service) selectConfigs(modelNames []string) []models.ModelConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]models.ModelConfig, len(s.configs))
	copy(all, s.configs)
	if len(modelNames) == 0 {
		return all
	}

	wanted := make(map[string]bool, len(modelNames))
	for _, name := range modelNames {
		wanted[strings.ToLower(name)] = true
	}
	var selected []models.ModelConfig
	for _, cfg := range all {
		if wanted[strings.ToLower(cfg.Name)] {
			selected = append(selected, cfg)
		}
	}
	if len(selected) == 0 {
		return all
	}
	return selected
}

// RunPanel fans the analysis context out to the selected models.
func (s *Service) RunPanel(ctx context.Context, analysisCtx *interfaces.AnalysisContext, modelNames []string) (*models.PanelResult, error) {
	panel := &models.PanelResult{
		StockCode: analysisCtx.StockCode,
		StockName: analysisCtx.StockName,
	}

	configs := s.selectConfigs(modelNames)
	if len(configs) == 0 {
		panel.ConsensusAdvice = adviceInsufficientData
		panel.ConsensusSummary = "No AI models are configured; expert analysis is unavailable."
		return panel, nil
	}

	for _, cfg := range configs {
		panel.ModelsUsed = append(panel.ModelsUsed, cfg.Name)
	}
	if s.logger != nil {
		s.logger.Info().
			Str("stock_code", analysisCtx.StockCode).
			Strs("models", panel.ModelsUsed).
			Msg("Running expert panel")
	}

	prompt := s.prompts.Build(analysisCtx)

	workers := s.panelWorkers
	if workers <= 0 || workers > 3 {
		workers = 3
	}
	if workers > len(configs) {
		workers = len(configs)
	}

	// Results land at their config index so output order is stable
	// regardless of completion order.
	results := make([]models.ModelResult, len(configs))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, cfg := range configs {
		wg.Add(1)
		go func(i int, cfg models.ModelConfig) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = s.runSingleModel(ctx, cfg, prompt)
		}(i, cfg)
	}
	wg.Wait()

	panel.Results = results
	for _, r := range results {
		if s.logger != nil {
			s.logger.Info().
				Str("model", r.ModelName).
				Bool("success", r.Success).
				Str("advice", r.Advice).
				Str("endpoint_used", r.EndpointUsed).
				Int("fallback_count", r.FallbackCount).
				Msg("Expert panel model finished")
		}
	}

	computeConsensus(panel)
	return panel, nil
}

// runSingleModel iterates the model's endpoint pool in priority order,
// failing over on switchable errors and stopping on terminal ones.
func (s *Service) runSingleModel(ctx context.Context, cfg models.ModelConfig, prompt Prompt) models.ModelResult {
	start := time.Now()
	result := models.ModelResult{ModelName: cfg.Name}

	endpoints := make([]models.ModelEndpoint, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		if ep.Enabled {
			endpoints = append(endpoints, ep)
		}
	}
	sort.SliceStable(endpoints, func(i, j int) bool {
		return endpoints[i].Priority > endpoints[j].Priority
	})

	if len(endpoints) == 0 {
		result.Error = "no usable endpoint (all disabled or unconfigured)"
		result.Elapsed = time.Since(start)
		return result
	}

	analyzer, ok := s.analyzers[cfg.Provider]
	if !ok {
		result.Error = fmt.Sprintf("no analyzer for provider %q", cfg.Provider)
		result.Elapsed = time.Since(start)
		return result
	}

	var lastErr error
	for index, endpoint := range endpoints {
		result.EndpointTried = append(result.EndpointTried, endpoint.ID)

		callCtx := ctx
		var cancel context.CancelFunc
		if s.llmTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, s.llmTimeout)
		}
		outcome, err := analyzer.Analyze(callCtx, cfg, endpoint, prompt)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			result.Success = true
			result.Score = outcome.Score
			result.Advice = outcome.Advice
			result.Trend = outcome.Trend
			result.Summary = outcome.Summary
			result.Confidence = outcome.Confidence
			result.Strategy = outcome.Strategy
			result.Raw = outcome.Raw
			result.EndpointUsed = endpoint.ID
			result.FallbackCount = index
			result.Elapsed = time.Since(start)
			return result
		}

		lastErr = err
		if isSwitchableError(err) {
			if s.logger != nil {
				s.logger.Warn().
					Str("model", cfg.Name).
					Str("endpoint", endpoint.ID).
					Err(err).
					Msg("Endpoint failed, switching to next")
			}
			if index < len(endpoints)-1 {
				metrics.EndpointFallbacks.Inc()
			}
			continue
		}

		// Terminal: fail the logical model without trying the rest.
		// EndpointUsed stays empty, it names only a winning endpoint.
		result.Error = models.TruncateError(err.Error(), 200)
		result.FallbackCount = index
		result.Elapsed = time.Since(start)
		return result
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("all endpoints failed")
	}
	result.Error = models.TruncateError(lastErr.Error(), 200)
	result.FallbackCount = len(result.EndpointTried) - 1
	result.Elapsed = time.Since(start)
	return result
}
