package data

import (
	"context"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

// AlpacaFetcher serves US symbols from the Alpaca market data API. It
// is credential-gated: with keys configured it jumps ahead of the free
// sources via its negative priority, without keys it sits out entirely.
type AlpacaFetcher struct {
	logger   arbor.ILogger
	settings interfaces.SettingsService
}

func NewAlpacaFetcher(settings interfaces.SettingsService, logger arbor.ILogger) *AlpacaFetcher {
	return &AlpacaFetcher{logger: logger, settings: settings}
}

func (f *AlpacaFetcher) Name() string  { return "alpaca" }
func (f *AlpacaFetcher) Priority() int { return -1 }

func (f *AlpacaFetcher) credentials() (key, secret string) {
	ctx := context.Background()
	return f.settings.Get(ctx, "ALPACA_API_KEY", ""), f.settings.Get(ctx, "ALPACA_SECRET_KEY", "")
}

func (f *AlpacaFetcher) IsAvailable() bool {
	key, secret := f.credentials()
	return key != "" && secret != ""
}

// mdClient builds a client from current settings. Keys are
// hot-reloadable, so the client is not cached across calls.
func (f *AlpacaFetcher) mdClient() *marketdata.Client {
	key, secret := f.credentials()
	return marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    key,
		APISecret: secret,
	})
}

func (f *AlpacaFetcher) GetRealtime(ctx context.Context, symbol string) (*models.UnifiedQuote, error) {
	sym := common.ParseSymbol(symbol)
	if sym.Market != common.MarketUS {
		return nil, ErrSymbolUnsupported
	}

	snapshot, err := f.mdClient().GetSnapshot(sym.Code, marketdata.GetSnapshotRequest{})
	if err != nil {
		return nil, err
	}
	if snapshot == nil || snapshot.LatestTrade == nil {
		return nil, nil
	}

	q := &models.UnifiedQuote{
		Code:      sym.Code,
		Source:    models.SourceAlpaca,
		FetchedAt: time.Now(),
		Price:     models.Float(snapshot.LatestTrade.Price),
	}
	if daily := snapshot.DailyBar; daily != nil {
		q.Open = models.Float(daily.Open)
		q.High = models.Float(daily.High)
		q.Low = models.Float(daily.Low)
		q.Volume = models.Float(float64(daily.Volume))
	}
	if prev := snapshot.PrevDailyBar; prev != nil && prev.Close > 0 {
		q.PrevClose = models.Float(prev.Close)
		q.ChangeAmount = models.Float(snapshot.LatestTrade.Price - prev.Close)
		q.ChangePct = models.Float((snapshot.LatestTrade.Price - prev.Close) / prev.Close * 100)
	}
	return q, nil
}

func (f *AlpacaFetcher) GetDaily(ctx context.Context, symbol string, days int) ([]models.KLineBar, error) {
	sym := common.ParseSymbol(symbol)
	if sym.Market != common.MarketUS {
		return nil, ErrSymbolUnsupported
	}

	alpacaBars, err := f.mdClient().GetBars(sym.Code, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     time.Now().AddDate(0, 0, -days*2),
	})
	if err != nil {
		return nil, err
	}

	bars := make([]models.KLineBar, 0, len(alpacaBars))
	var prevClose float64
	for _, b := range alpacaBars {
		bar := models.KLineBar{
			Date:   b.Timestamp.UTC().Truncate(24 * time.Hour),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		}
		if prevClose > 0 {
			bar.PctChg = (b.Close - prevClose) / prevClose * 100
		}
		prevClose = b.Close
		bars = append(bars, bar)
	}

	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

// GetChip is not served by this source.
func (f *AlpacaFetcher) GetChip(ctx context.Context, symbol string) (*models.ChipDistribution, error) {
	return nil, nil
}
