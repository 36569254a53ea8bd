package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/cache"
	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/metrics"
	"github.com/ternarybob/augur/internal/models"
)

// AKShareFetcher adapts an aktools-style akshare HTTP service. Realtime
// quotes come from bulk spot snapshots cached per market; fetching one
// symbol costs nothing once the bulk row set is warm.
type AKShareFetcher struct {
	client  *resty.Client
	logger  arbor.ILogger
	sleeper *Sleeper

	spotCache    *cache.TTLCache[map[string]map[string]interface{}]
	etfSpotCache *cache.TTLCache[map[string]map[string]interface{}]
	hkSpotCache  *cache.TTLCache[map[string]map[string]interface{}]
}

// NewAKShareFetcher creates the akshare adapter from server config.
func NewAKShareFetcher(cfg *common.Config, logger arbor.ILogger) *AKShareFetcher {
	client := resty.New()
	client.SetBaseURL(cfg.Providers.AKShareBaseURL)
	client.SetTimeout(cfg.Analysis.HTTPTimeout)

	f := &AKShareFetcher{
		client:  client,
		logger:  logger,
		sleeper: NewSleeper(cfg.Providers.SleepMin, cfg.Providers.SleepMax),
	}

	ttl := cfg.Providers.SpotCacheTTL
	f.spotCache = cache.NewTTLCache("akshare_spot_a", ttl, 1, f.loadSpot("stock_zh_a_spot_em"), logger)
	f.etfSpotCache = cache.NewTTLCache("akshare_spot_etf", ttl, 1, f.loadSpot("fund_etf_spot_em"), logger)
	f.hkSpotCache = cache.NewTTLCache("akshare_spot_hk", ttl, 1, f.loadSpot("stock_hk_spot_em"), logger)
	f.spotCache.OnLookup(metrics.RecordCacheLookup)
	f.etfSpotCache.OnLookup(metrics.RecordCacheLookup)
	f.hkSpotCache.OnLookup(metrics.RecordCacheLookup)

	return f
}

func (f *AKShareFetcher) Name() string      { return "akshare" }
func (f *AKShareFetcher) Priority() int     { return 0 }
func (f *AKShareFetcher) IsAvailable() bool { return true }

// fetchRows issues one proxied akshare call and decodes the row array.
func (f *AKShareFetcher) fetchRows(ctx context.Context, endpoint string, params map[string]string) ([]map[string]interface{}, error) {
	if err := f.sleeper.Sleep(ctx); err != nil {
		return nil, err
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/api/public/" + endpoint)
	if err != nil {
		return nil, fmt.Errorf("akshare %s: %w", endpoint, err)
	}
	if resp.StatusCode() != 200 {
		return nil, &StatusError{Source: "akshare", StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("akshare %s: decode response: %w", endpoint, err)
	}
	return rows, nil
}

// loadSpot builds a bulk-spot cache loader keyed by the 代码 column.
func (f *AKShareFetcher) loadSpot(endpoint string) cache.Loader[map[string]map[string]interface{}] {
	return func(ctx context.Context) (map[string]map[string]interface{}, error) {
		rows, err := f.fetchRows(ctx, endpoint, nil)
		if err != nil {
			return nil, err
		}
		byCode := make(map[string]map[string]interface{}, len(rows))
		for _, row := range rows {
			if code := asString(row["代码"]); code != "" {
				byCode[code] = row
			}
		}
		if f.logger != nil {
			f.logger.Debug().Str("endpoint", endpoint).Int("rows", len(byCode)).Msg("Refreshed akshare spot snapshot")
		}
		return byCode, nil
	}
}

func (f *AKShareFetcher) GetRealtime(ctx context.Context, symbol string) (*models.UnifiedQuote, error) {
	sym := common.ParseSymbol(symbol)

	var (
		rows map[string]map[string]interface{}
		err  error
	)
	switch sym.Market {
	case common.MarketAShare:
		rows, err = f.spotCache.Get(ctx)
	case common.MarketETF:
		rows, err = f.etfSpotCache.Get(ctx)
	case common.MarketHK:
		rows, err = f.hkSpotCache.Get(ctx)
	default:
		return nil, ErrSymbolUnsupported
	}
	if err != nil {
		return nil, err
	}

	row, ok := rows[sym.Code]
	if !ok {
		return nil, nil
	}
	return f.quoteFromSpotRow(sym.Code, row), nil
}

// quoteFromSpotRow maps a bulk spot row to the unified quote. Spot
// volume is in hands.
func (f *AKShareFetcher) quoteFromSpotRow(code string, row map[string]interface{}) *models.UnifiedQuote {
	q := &models.UnifiedQuote{
		Code:      code,
		Name:      asString(row["名称"]),
		Source:    models.SourceAKShare,
		FetchedAt: time.Now(),

		Price:        optFloat(row, "最新价"),
		ChangeAmount: optFloat(row, "涨跌额"),
		ChangePct:    optFloat(row, "涨跌幅"),
		Open:         optFloat(row, "今开"),
		High:         optFloat(row, "最高"),
		Low:          optFloat(row, "最低"),
		PrevClose:    optFloat(row, "昨收"),

		Amount:       optFloat(row, "成交额"),
		VolumeRatio:  optFloat(row, "量比"),
		TurnoverRate: optFloat(row, "换手率"),
		Amplitude:    optFloat(row, "振幅"),

		PE:      optFloat(row, "市盈率-动态"),
		PB:      optFloat(row, "市净率"),
		TotalMV: optFloat(row, "总市值"),
		CircMV:  optFloat(row, "流通市值"),

		High52W:     optFloat(row, "52周最高"),
		Low52W:      optFloat(row, "52周最低"),
		Change60Day: optFloat(row, "60日涨跌幅"),
	}
	if hands, ok := asFloat(row["成交量"]); ok {
		q.Volume = models.Float(HandsToShares(hands))
	}
	return q
}

func (f *AKShareFetcher) GetDaily(ctx context.Context, symbol string, days int) ([]models.KLineBar, error) {
	sym := common.ParseSymbol(symbol)

	// Fetch a wider calendar window so non-trading days still leave
	// enough bars, then trim to the requested count.
	start := time.Now().AddDate(0, 0, -days*2).Format("20060102")
	end := time.Now().Format("20060102")

	var endpoint string
	params := map[string]string{
		"symbol":     sym.Code,
		"period":     "daily",
		"start_date": start,
		"end_date":   end,
		"adjust":     "qfq",
	}
	switch sym.Market {
	case common.MarketAShare:
		endpoint = "stock_zh_a_hist"
	case common.MarketETF:
		endpoint = "fund_etf_hist_em"
	case common.MarketHK:
		endpoint = "stock_hk_hist"
	default:
		return nil, ErrSymbolUnsupported
	}

	rows, err := f.fetchRows(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	bars := make([]models.KLineBar, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse("2006-01-02", asString(row["日期"]))
		if err != nil {
			continue
		}
		bar := models.KLineBar{Date: date}
		bar.Open, _ = asFloat(row["开盘"])
		bar.Close, _ = asFloat(row["收盘"])
		bar.High, _ = asFloat(row["最高"])
		bar.Low, _ = asFloat(row["最低"])
		bar.Amount, _ = asFloat(row["成交额"])
		bar.PctChg, _ = asFloat(row["涨跌幅"])
		if hands, ok := asFloat(row["成交量"]); ok {
			bar.Volume = HandsToShares(hands)
		}
		bars = append(bars, bar)
	}

	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

func (f *AKShareFetcher) GetChip(ctx context.Context, symbol string) (*models.ChipDistribution, error) {
	sym := common.ParseSymbol(symbol)
	if sym.Market != common.MarketAShare {
		return nil, nil
	}

	rows, err := f.fetchRows(ctx, "stock_cyq_em", map[string]string{
		"symbol": sym.Code,
		"adjust": "qfq",
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// Last row is the most recent trading day.
	row := rows[len(rows)-1]
	date, _ := time.Parse("2006-01-02", asString(row["日期"]))

	chip := &models.ChipDistribution{Code: sym.Code, Date: date}
	chip.ProfitRatio, _ = asFloat(row["获利比例"])
	chip.AvgCost, _ = asFloat(row["平均成本"])
	chip.Cost70Low, _ = asFloat(row["70成本-低"])
	chip.Cost70High, _ = asFloat(row["70成本-高"])
	chip.Concentration70, _ = asFloat(row["70集中度"])
	chip.Cost90Low, _ = asFloat(row["90成本-低"])
	chip.Cost90High, _ = asFloat(row["90成本-高"])
	chip.Concentration90, _ = asFloat(row["90集中度"])
	return chip, nil
}
