package experts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

// Prompt is one assembled model invocation.
type Prompt struct {
	System string
	User   string
}

// promptFrontMatter is the YAML header of an analyst template file.
type promptFrontMatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	ReportType  string `yaml:"report_type"`
}

// defaultSystemPrompt keeps the panel functional with no template
// directory configured.
const defaultSystemPrompt = `You are a seasoned equity analyst. Analyze the provided market context and respond with a single JSON object containing:
"sentiment_score" (integer 0-100), "operation_advice" (one of: buy, hold, sell, watch), "trend_prediction" (short string), "analysis_summary" (2-4 sentences), "confidence_level" (integer 0-100), and "dashboard": {"battle_plan": {"sniper_points": {"ideal_buy", "secondary_buy", "stop_loss", "take_profit"}}} with concrete price levels. Respond with JSON only.`

// PromptBuilder renders analysis contexts into model prompts, using
// analyst templates when a template directory is configured.
type PromptBuilder struct {
	logger    arbor.ILogger
	templates map[models.ReportType]string // report type -> system prompt
}

// NewPromptBuilder loads *.md templates with YAML front matter from
// dir. Missing directory or unparsable files fall back to the default.
func NewPromptBuilder(dir string, logger arbor.ILogger) *PromptBuilder {
	b := &PromptBuilder{
		logger:    logger,
		templates: make(map[models.ReportType]string),
	}
	if dir == "" {
		return b
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if logger != nil {
			logger.Debug().Str("dir", dir).Err(err).Msg("Prompt template directory not readable, using built-in prompt")
		}
		return b
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		meta, body, err := parsePromptFile(path)
		if err != nil {
			if logger != nil {
				logger.Warn().Str("file", path).Err(err).Msg("Skipping invalid prompt template")
			}
			continue
		}
		reportType := models.ReportType(meta.ReportType)
		if reportType == "" {
			reportType = models.ReportFull
		}
		b.templates[reportType] = body
		if logger != nil {
			logger.Debug().Str("template", meta.Name).Str("report_type", string(reportType)).Msg("Loaded prompt template")
		}
	}
	return b
}

// parsePromptFile splits a template into YAML front matter and body.
func parsePromptFile(path string) (*promptFrontMatter, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	content := string(data)

	meta := &promptFrontMatter{}
	if strings.HasPrefix(content, "---\n") {
		rest := content[4:]
		end := strings.Index(rest, "\n---")
		if end < 0 {
			return nil, "", fmt.Errorf("unterminated front matter in %s", path)
		}
		if err := yaml.Unmarshal([]byte(rest[:end]), meta); err != nil {
			return nil, "", fmt.Errorf("invalid front matter in %s: %w", path, err)
		}
		content = strings.TrimPrefix(rest[end+4:], "\n")
	}

	body := strings.TrimSpace(content)
	if body == "" {
		return nil, "", fmt.Errorf("empty template body in %s", path)
	}
	return meta, body, nil
}

// Build renders the prompt for one analysis context.
func (b *PromptBuilder) Build(analysisCtx *interfaces.AnalysisContext) Prompt {
	system := b.templates[analysisCtx.ReportType]
	if system == "" {
		system = b.templates[models.ReportFull]
	}
	if system == "" {
		system = defaultSystemPrompt
	}
	return Prompt{
		System: system,
		User:   renderContext(analysisCtx),
	}
}

// renderContext formats the market context into the user message.
func renderContext(analysisCtx *interfaces.AnalysisContext) string {
	var sb strings.Builder

	name := analysisCtx.StockName
	if name == "" {
		name = analysisCtx.StockCode
	}
	fmt.Fprintf(&sb, "## Stock: %s (%s)\n\n", name, analysisCtx.StockCode)

	if q := analysisCtx.Quote; q != nil {
		sb.WriteString("### Realtime quote\n")
		writeOpt(&sb, "Price", q.Price)
		writeOpt(&sb, "Change %", q.ChangePct)
		writeOpt(&sb, "Open", q.Open)
		writeOpt(&sb, "High", q.High)
		writeOpt(&sb, "Low", q.Low)
		writeOpt(&sb, "Prev close", q.PrevClose)
		writeOpt(&sb, "Turnover rate", q.TurnoverRate)
		writeOpt(&sb, "Volume ratio", q.VolumeRatio)
		writeOpt(&sb, "PE", q.PE)
		writeOpt(&sb, "PB", q.PB)
		sb.WriteString("\n")
	}

	if bars := analysisCtx.Bars; len(bars) > 0 {
		sb.WriteString("### Daily history (oldest to newest)\n")
		sb.WriteString("date, open, high, low, close, volume, pct_chg, ma5, ma10, ma20\n")
		start := 0
		if len(bars) > 30 {
			start = len(bars) - 30
		}
		for _, bar := range bars[start:] {
			fmt.Fprintf(&sb, "%s, %.2f, %.2f, %.2f, %.2f, %.0f, %.2f, %s, %s, %s\n",
				bar.Date.Format("2006-01-02"), bar.Open, bar.High, bar.Low, bar.Close,
				bar.Volume, bar.PctChg, fmtOpt(bar.MA5), fmtOpt(bar.MA10), fmtOpt(bar.MA20))
		}
		sb.WriteString("\n")
	}

	if chip := analysisCtx.Chip; chip != nil {
		sb.WriteString("### Chip distribution\n")
		fmt.Fprintf(&sb, "- Profit ratio: %.1f%%\n", chip.ProfitRatio*100)
		fmt.Fprintf(&sb, "- Average cost: %.2f\n", chip.AvgCost)
		fmt.Fprintf(&sb, "- 70%% cost band: %.2f - %.2f (concentration %.3f)\n", chip.Cost70Low, chip.Cost70High, chip.Concentration70)
		fmt.Fprintf(&sb, "- 90%% cost band: %.2f - %.2f (concentration %.3f)\n", chip.Cost90Low, chip.Cost90High, chip.Concentration90)
		sb.WriteString("\n")
	}

	if analysisCtx.NewsContext != "" {
		sb.WriteString("### Recent news\n")
		sb.WriteString(analysisCtx.NewsContext)
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeOpt(sb *strings.Builder, label string, v *float64) {
	if v != nil {
		fmt.Fprintf(sb, "- %s: %.2f\n", label, *v)
	}
}

func fmtOpt(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
