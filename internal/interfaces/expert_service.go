package interfaces

import (
	"context"

	"github.com/ternarybob/augur/internal/models"
)

// AnalysisContext is the market context an expert analyzes: the quote
// plus formatted history, chip, and news blocks.
type AnalysisContext struct {
	StockCode   string
	StockName   string
	Quote       *models.UnifiedQuote
	Bars        []models.KLineBar
	Chip        *models.ChipDistribution
	NewsContext string
	ReportType  models.ReportType
}

// ExpertService runs the expert panel: N logical models in parallel
// against one context, with per-model endpoint failover and consensus
// reduction.
type ExpertService interface {
	// RunPanel fans out to the selected logical models (all configured
	// models when modelNames is empty; names match case-insensitively).
	RunPanel(ctx context.Context, analysisCtx *AnalysisContext, modelNames []string) (*models.PanelResult, error)

	// Models lists the configured logical models with masked endpoints.
	Models() []models.ModelConfig

	// Reload re-parses model configuration from current settings.
	Reload() error
}
