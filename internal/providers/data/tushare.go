package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

// TushareFetcher calls the tushare pro JSON-RPC-style API. It is
// token-gated and quota-metered, so it sits behind the free sources and
// rate-limits itself to stay inside the per-minute point budget.
type TushareFetcher struct {
	client   *resty.Client
	logger   arbor.ILogger
	settings interfaces.SettingsService
	limiter  *rate.Limiter
}

func NewTushareFetcher(cfg *common.Config, settings interfaces.SettingsService, logger arbor.ILogger) *TushareFetcher {
	client := resty.New()
	client.SetBaseURL("http://api.tushare.pro")
	client.SetTimeout(cfg.Analysis.HTTPTimeout)

	return &TushareFetcher{
		client:   client,
		logger:   logger,
		settings: settings,
		limiter:  NewQuotaLimiter(190),
	}
}

func (f *TushareFetcher) Name() string  { return "tushare" }
func (f *TushareFetcher) Priority() int { return 2 }

func (f *TushareFetcher) token() string {
	return f.settings.Get(context.Background(), "TUSHARE_TOKEN", "")
}

func (f *TushareFetcher) IsAvailable() bool {
	return f.token() != ""
}

// tsCode maps an A-share code to tushare's exchange-suffixed form.
func tsCode(sym common.Symbol) (string, error) {
	if sym.Market != common.MarketAShare {
		return "", ErrSymbolUnsupported
	}
	if strings.HasPrefix(sym.Code, "6") || strings.HasPrefix(sym.Code, "9") {
		return sym.Code + ".SH", nil
	}
	return sym.Code + ".SZ", nil
}

type tushareResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		Fields []string        `json:"fields"`
		Items  [][]interface{} `json:"items"`
	} `json:"data"`
}

// call issues one tushare api_name request and returns rows keyed by
// field name.
func (f *TushareFetcher) call(ctx context.Context, apiName string, params map[string]string, fields string) ([]map[string]interface{}, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"api_name": apiName,
		"token":    f.token(),
		"params":   params,
		"fields":   fields,
	}
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/")
	if err != nil {
		return nil, fmt.Errorf("tushare %s: %w", apiName, err)
	}
	if resp.StatusCode() != 200 {
		return nil, &StatusError{Source: "tushare", StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var parsed tushareResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("tushare %s: decode response: %w", apiName, err)
	}
	if parsed.Code != 0 {
		return nil, fmt.Errorf("tushare %s: %s", apiName, parsed.Msg)
	}
	if parsed.Data == nil {
		return nil, nil
	}

	rows := make([]map[string]interface{}, 0, len(parsed.Data.Items))
	for _, item := range parsed.Data.Items {
		row := make(map[string]interface{}, len(parsed.Data.Fields))
		for i, field := range parsed.Data.Fields {
			if i < len(item) {
				row[field] = item[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// GetRealtime is not served: tushare's free tier has no intraday quote.
func (f *TushareFetcher) GetRealtime(ctx context.Context, symbol string) (*models.UnifiedQuote, error) {
	return nil, ErrSymbolUnsupported
}

func (f *TushareFetcher) GetDaily(ctx context.Context, symbol string, days int) ([]models.KLineBar, error) {
	code, err := tsCode(common.ParseSymbol(symbol))
	if err != nil {
		return nil, err
	}

	rows, err := f.call(ctx, "daily", map[string]string{
		"ts_code":    code,
		"start_date": time.Now().AddDate(0, 0, -days*2).Format("20060102"),
		"end_date":   time.Now().Format("20060102"),
	}, "trade_date,open,high,low,close,vol,amount,pct_chg")
	if err != nil {
		return nil, err
	}

	// tushare returns newest first; build oldest first.
	bars := make([]models.KLineBar, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		date, err := time.Parse("20060102", asString(row["trade_date"]))
		if err != nil {
			continue
		}
		bar := models.KLineBar{Date: date}
		bar.Open, _ = asFloat(row["open"])
		bar.High, _ = asFloat(row["high"])
		bar.Low, _ = asFloat(row["low"])
		bar.Close, _ = asFloat(row["close"])
		bar.PctChg, _ = asFloat(row["pct_chg"])
		if hands, ok := asFloat(row["vol"]); ok {
			bar.Volume = HandsToShares(hands)
		}
		if thousands, ok := asFloat(row["amount"]); ok {
			bar.Amount = ThousandsToCurrency(thousands)
		}
		bars = append(bars, bar)
	}

	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

func (f *TushareFetcher) GetChip(ctx context.Context, symbol string) (*models.ChipDistribution, error) {
	sym := common.ParseSymbol(symbol)
	if sym.Market != common.MarketAShare {
		return nil, nil
	}
	code, err := tsCode(sym)
	if err != nil {
		return nil, err
	}

	rows, err := f.call(ctx, "cyq_chip", map[string]string{
		"ts_code":    code,
		"start_date": time.Now().AddDate(0, 0, -10).Format("20060102"),
		"end_date":   time.Now().Format("20060102"),
	}, "trade_date,his_low,his_high,cost_5pct,cost_15pct,cost_50pct,cost_85pct,cost_95pct,weight_avg,winner_rate")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// Newest first; take the most recent trading day.
	row := rows[0]
	date, _ := time.Parse("20060102", asString(row["trade_date"]))

	chip := &models.ChipDistribution{Code: sym.Code, Date: date}
	chip.AvgCost, _ = asFloat(row["weight_avg"])
	if winnerPct, ok := asFloat(row["winner_rate"]); ok {
		chip.ProfitRatio = winnerPct / 100
	}
	chip.Cost70Low, _ = asFloat(row["cost_15pct"])
	chip.Cost70High, _ = asFloat(row["cost_85pct"])
	chip.Cost90Low, _ = asFloat(row["cost_5pct"])
	chip.Cost90High, _ = asFloat(row["cost_95pct"])
	chip.Concentration70 = bandConcentration(chip.Cost70Low, chip.Cost70High)
	chip.Concentration90 = bandConcentration(chip.Cost90Low, chip.Cost90High)
	return chip, nil
}

// bandConcentration is the eastmoney band-width measure
// (high-low)/(high+low); smaller means a tighter holder-cost band.
// Computed here so tushare chips compare against akshare chips.
func bandConcentration(low, high float64) float64 {
	if low <= 0 || high <= 0 {
		return 0
	}
	return (high - low) / (high + low)
}
