package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/models"
)

// YFinanceFetcher reads the Yahoo Finance chart API. It is the primary
// source for US symbols and the last line for HK and A-share symbols.
type YFinanceFetcher struct {
	client  *resty.Client
	logger  arbor.ILogger
	sleeper *Sleeper
}

func NewYFinanceFetcher(cfg *common.Config, logger arbor.ILogger) *YFinanceFetcher {
	client := resty.New()
	client.SetBaseURL("https://query1.finance.yahoo.com")
	client.SetTimeout(cfg.Analysis.HTTPTimeout)
	// Yahoo rejects the default Go user agent outright.
	client.SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	return &YFinanceFetcher{
		client:  client,
		logger:  logger,
		sleeper: NewSleeper(cfg.Providers.SleepMin, cfg.Providers.SleepMax),
	}
}

func (f *YFinanceFetcher) Name() string      { return "yfinance" }
func (f *YFinanceFetcher) Priority() int     { return 3 }
func (f *YFinanceFetcher) IsAvailable() bool { return true }

// yahooSymbol maps a classified symbol to Yahoo's ticker form:
// US as-is, HK as 4-digit ".HK", A-shares suffixed ".SS"/".SZ".
func yahooSymbol(sym common.Symbol) (string, error) {
	switch sym.Market {
	case common.MarketUS:
		return sym.Code, nil
	case common.MarketHK:
		code := sym.Code
		if len(code) == 5 && strings.HasPrefix(code, "0") {
			code = code[1:]
		}
		return code + ".HK", nil
	case common.MarketAShare:
		if strings.HasPrefix(sym.Code, "6") || strings.HasPrefix(sym.Code, "9") {
			return sym.Code + ".SS", nil
		}
		return sym.Code + ".SZ", nil
	default:
		return "", ErrSymbolUnsupported
	}
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice  float64 `json:"regularMarketPrice"`
				ChartPreviousClose  float64 `json:"chartPreviousClose"`
				RegularMarketVolume float64 `json:"regularMarketVolume"`
				FiftyTwoWeekHigh    float64 `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow     float64 `json:"fiftyTwoWeekLow"`
				LongName            string  `json:"longName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (f *YFinanceFetcher) fetchChart(ctx context.Context, symbol, yahooRange string) (*yahooChartResponse, error) {
	if err := f.sleeper.Sleep(ctx); err != nil {
		return nil, err
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"interval": "1d",
			"range":    yahooRange,
		}).
		Get("/v8/finance/chart/" + symbol)
	if err != nil {
		return nil, fmt.Errorf("yfinance chart %s: %w", symbol, err)
	}
	if resp.StatusCode() == 404 {
		// Unknown ticker, not a source fault.
		return nil, nil
	}
	if resp.StatusCode() != 200 {
		return nil, &StatusError{Source: "yfinance", StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var parsed yahooChartResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("yfinance chart %s: decode response: %w", symbol, err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("yfinance chart %s: %s", symbol, parsed.Chart.Error.Description)
	}
	return &parsed, nil
}

func (f *YFinanceFetcher) GetRealtime(ctx context.Context, symbol string) (*models.UnifiedQuote, error) {
	sym := common.ParseSymbol(symbol)
	ticker, err := yahooSymbol(sym)
	if err != nil {
		return nil, err
	}

	parsed, err := f.fetchChart(ctx, ticker, "5d")
	if err != nil || parsed == nil {
		return nil, err
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, nil
	}
	meta := parsed.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return nil, nil
	}

	q := &models.UnifiedQuote{
		Code:      sym.Code,
		Name:      meta.LongName,
		Source:    models.SourceYFinance,
		FetchedAt: time.Now(),
		Price:     models.Float(meta.RegularMarketPrice),
	}
	if meta.ChartPreviousClose > 0 {
		q.PrevClose = models.Float(meta.ChartPreviousClose)
		q.ChangeAmount = models.Float(meta.RegularMarketPrice - meta.ChartPreviousClose)
		q.ChangePct = models.Float((meta.RegularMarketPrice - meta.ChartPreviousClose) / meta.ChartPreviousClose * 100)
	}
	if meta.RegularMarketVolume > 0 {
		q.Volume = models.Float(meta.RegularMarketVolume)
	}
	if meta.FiftyTwoWeekHigh > 0 {
		q.High52W = models.Float(meta.FiftyTwoWeekHigh)
	}
	if meta.FiftyTwoWeekLow > 0 {
		q.Low52W = models.Float(meta.FiftyTwoWeekLow)
	}
	return q, nil
}

func (f *YFinanceFetcher) GetDaily(ctx context.Context, symbol string, days int) ([]models.KLineBar, error) {
	sym := common.ParseSymbol(symbol)
	ticker, err := yahooSymbol(sym)
	if err != nil {
		return nil, err
	}

	yahooRange := "3mo"
	if days > 60 {
		yahooRange = "1y"
	}
	parsed, err := f.fetchChart(ctx, ticker, yahooRange)
	if err != nil || parsed == nil {
		return nil, err
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, nil
	}
	result := parsed.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	quote := result.Indicators.Quote[0]

	bars := make([]models.KLineBar, 0, len(result.Timestamp))
	var prevClose float64
	for i, ts := range result.Timestamp {
		open := deref(quote.Open, i)
		high := deref(quote.High, i)
		low := deref(quote.Low, i)
		closePrice := deref(quote.Close, i)
		if closePrice == 0 {
			continue // holiday padding rows
		}
		bar := models.KLineBar{
			Date:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: deref(quote.Volume, i),
		}
		if prevClose > 0 {
			bar.PctChg = (closePrice - prevClose) / prevClose * 100
		}
		prevClose = closePrice
		bars = append(bars, bar)
	}

	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

// GetChip is not served by this source.
func (f *YFinanceFetcher) GetChip(ctx context.Context, symbol string) (*models.ChipDistribution, error) {
	return nil, nil
}

func deref(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}
