package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// BinanceProvider reads 24h ticker statistics for crypto pairs. Symbols use the
// dashed form (BTC-USD) and are mapped onto USDT pairs.
type BinanceProvider struct {
	Client  *binance.Client
	Symbols []string
	Now     func() time.Time
}

func NewBinanceProvider(baseURL string, symbols []string) *BinanceProvider {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &BinanceProvider{Client: client, Symbols: symbols}
}

func (p *BinanceProvider) Name() string { return "binance" }

func (p *BinanceProvider) Quotes(ctx context.Context) ([]Quote, error) {
	if p == nil || p.Client == nil || len(p.Symbols) == 0 {
		return nil, nil
	}
	pairs := make([]string, 0, len(p.Symbols))
	bySymbol := make(map[string]string, len(p.Symbols))
	for _, s := range p.Symbols {
		pair := BinancePair(s)
		if pair == "" {
			continue
		}
		pairs = append(pairs, pair)
		bySymbol[pair] = strings.ToUpper(strings.TrimSpace(s))
	}
	stats, err := p.Client.NewListPriceChangeStatsService().Symbols(pairs).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance 24h ticker: %w", err)
	}
	now := time.Now().UTC()
	if p.Now != nil {
		now = p.Now().UTC()
	}
	out := make([]Quote, 0, len(stats))
	for _, st := range stats {
		if st == nil {
			continue
		}
		symbol, ok := bySymbol[st.Symbol]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(st.LastPrice)
		if err != nil {
			continue
		}
		change, _ := decimal.NewFromString(st.PriceChangePercent)
		volume, _ := decimal.NewFromString(st.Volume)
		out = append(out, Quote{
			Symbol:    symbol,
			Name:      st.Symbol,
			Price:     price,
			ChangePct: change,
			Volume:    volume,
			Source:    p.Name(),
			AsOf:      now,
		})
	}
	return out, nil
}

// BinancePair maps BTC-USD to BTCUSDT. Symbols without a dash pass through upper-cased.
func BinancePair(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	base, quote, ok := strings.Cut(s, "-")
	if !ok {
		return s
	}
	if quote == "USD" {
		quote = "USDT"
	}
	return base + quote
}
