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

// EFinanceFetcher reads the eastmoney push2 quote API directly. It is
// the second-line source for Chinese markets when the akshare proxy is
// down or rate limited.
type EFinanceFetcher struct {
	quoteClient *resty.Client
	histClient  *resty.Client
	logger      arbor.ILogger
	sleeper     *Sleeper
}

const (
	efQuoteFields = "f43,f44,f45,f46,f47,f48,f50,f57,f58,f60,f116,f117,f162,f167,f168,f169,f170,f171"
	efKlineFields = "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61"
)

func NewEFinanceFetcher(cfg *common.Config, logger arbor.ILogger) *EFinanceFetcher {
	quoteClient := resty.New()
	quoteClient.SetBaseURL("https://push2.eastmoney.com")
	quoteClient.SetTimeout(cfg.Analysis.HTTPTimeout)

	histClient := resty.New()
	histClient.SetBaseURL("https://push2his.eastmoney.com")
	histClient.SetTimeout(cfg.Analysis.HTTPTimeout)

	return &EFinanceFetcher{
		quoteClient: quoteClient,
		histClient:  histClient,
		logger:      logger,
		sleeper:     NewSleeper(cfg.Providers.SleepMin, cfg.Providers.SleepMax),
	}
}

func (f *EFinanceFetcher) Name() string      { return "efinance" }
func (f *EFinanceFetcher) Priority() int     { return 1 }
func (f *EFinanceFetcher) IsAvailable() bool { return true }

// secID maps a classified symbol to eastmoney's market-prefixed id.
// Shanghai listings are market 1, Shenzhen market 0, Hong Kong 116.
func secID(sym common.Symbol) (string, error) {
	switch sym.Market {
	case common.MarketAShare, common.MarketETF:
		if strings.HasPrefix(sym.Code, "6") || strings.HasPrefix(sym.Code, "9") ||
			strings.HasPrefix(sym.Code, "5") {
			return "1." + sym.Code, nil
		}
		return "0." + sym.Code, nil
	case common.MarketHK:
		return "116." + sym.Code, nil
	default:
		return "", ErrSymbolUnsupported
	}
}

type efQuoteResponse struct {
	Data map[string]interface{} `json:"data"`
}

func (f *EFinanceFetcher) GetRealtime(ctx context.Context, symbol string) (*models.UnifiedQuote, error) {
	sym := common.ParseSymbol(symbol)
	id, err := secID(sym)
	if err != nil {
		return nil, err
	}
	if err := f.sleeper.Sleep(ctx); err != nil {
		return nil, err
	}

	resp, err := f.quoteClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"secid":  id,
			"fields": efQuoteFields,
			"fltt":   "2", // pre-scaled floats
			"invt":   "2",
		}).
		Get("/api/qt/stock/get")
	if err != nil {
		return nil, fmt.Errorf("efinance quote: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, &StatusError{Source: "efinance", StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var parsed efQuoteResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("efinance quote: decode response: %w", err)
	}
	if parsed.Data == nil {
		return nil, nil
	}
	row := parsed.Data

	q := &models.UnifiedQuote{
		Code:      sym.Code,
		Name:      asString(row["f58"]),
		Source:    models.SourceEFinance,
		FetchedAt: time.Now(),

		Price:        optFloat(row, "f43"),
		High:         optFloat(row, "f44"),
		Low:          optFloat(row, "f45"),
		Open:         optFloat(row, "f46"),
		PrevClose:    optFloat(row, "f60"),
		ChangeAmount: optFloat(row, "f169"),
		ChangePct:    optFloat(row, "f170"),

		Amount:       optFloat(row, "f48"),
		VolumeRatio:  optFloat(row, "f50"),
		TurnoverRate: optFloat(row, "f168"),
		Amplitude:    optFloat(row, "f171"),

		PE:      optFloat(row, "f162"),
		PB:      optFloat(row, "f167"),
		TotalMV: optFloat(row, "f116"),
		CircMV:  optFloat(row, "f117"),
	}
	if hands, ok := asFloat(row["f47"]); ok {
		q.Volume = models.Float(HandsToShares(hands))
	}
	return q, nil
}

type efKlineResponse struct {
	Data *struct {
		Klines []string `json:"klines"`
	} `json:"data"`
}

func (f *EFinanceFetcher) GetDaily(ctx context.Context, symbol string, days int) ([]models.KLineBar, error) {
	sym := common.ParseSymbol(symbol)
	id, err := secID(sym)
	if err != nil {
		return nil, err
	}
	if err := f.sleeper.Sleep(ctx); err != nil {
		return nil, err
	}

	resp, err := f.histClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"secid":   id,
			"klt":     "101", // daily
			"fqt":     "1",   // forward adjusted
			"beg":     time.Now().AddDate(0, 0, -days*2).Format("20060102"),
			"end":     time.Now().Format("20060102"),
			"fields1": "f1,f2,f3,f4,f5,f6",
			"fields2": efKlineFields,
		}).
		Get("/api/qt/stock/kline/get")
	if err != nil {
		return nil, fmt.Errorf("efinance kline: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, &StatusError{Source: "efinance", StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var parsed efKlineResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("efinance kline: decode response: %w", err)
	}
	if parsed.Data == nil {
		return nil, nil
	}

	// Each kline row is a comma-joined record:
	// date,open,close,high,low,volume,amount,amplitude,pct_chg,chg,turnover
	bars := make([]models.KLineBar, 0, len(parsed.Data.Klines))
	for _, line := range parsed.Data.Klines {
		cells := strings.Split(line, ",")
		if len(cells) < 9 {
			continue
		}
		date, err := time.Parse("2006-01-02", cells[0])
		if err != nil {
			continue
		}
		bar := models.KLineBar{Date: date}
		bar.Open, _ = asFloat(cells[1])
		bar.Close, _ = asFloat(cells[2])
		bar.High, _ = asFloat(cells[3])
		bar.Low, _ = asFloat(cells[4])
		bar.Amount, _ = asFloat(cells[6])
		bar.PctChg, _ = asFloat(cells[8])
		if hands, ok := asFloat(cells[5]); ok {
			bar.Volume = HandsToShares(hands)
		}
		bars = append(bars, bar)
	}

	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

// GetChip is not served by this source.
func (f *EFinanceFetcher) GetChip(ctx context.Context, symbol string) (*models.ChipDistribution, error) {
	return nil, nil
}
