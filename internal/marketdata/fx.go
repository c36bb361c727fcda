package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradesense/internal/client/frankfurter"
)

// FXProvider quotes currency pairs written as EURUSD=X using daily reference rates.
// ChangePct compares the latest fixing with the one before it.
type FXProvider struct {
	Client  *frankfurter.Client
	Symbols []string
}

func (p *FXProvider) Name() string { return "frankfurter" }

type fxPair struct {
	symbol string
	base   string
	quote  string
}

func parseFXSymbol(symbol string) (fxPair, bool) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	pair := strings.TrimSuffix(s, "=X")
	if len(pair) != 6 {
		return fxPair{}, false
	}
	return fxPair{symbol: s, base: pair[:3], quote: pair[3:]}, true
}

func (p *FXProvider) Quotes(ctx context.Context) ([]Quote, error) {
	if p == nil || p.Client == nil || len(p.Symbols) == 0 {
		return nil, nil
	}
	byBase := map[string][]fxPair{}
	var bases []string
	for _, s := range p.Symbols {
		fp, ok := parseFXSymbol(s)
		if !ok {
			continue
		}
		if _, seen := byBase[fp.base]; !seen {
			bases = append(bases, fp.base)
		}
		byBase[fp.base] = append(byBase[fp.base], fp)
	}

	var out []Quote
	for _, base := range bases {
		pairs := byBase[base]
		targets := make([]string, 0, len(pairs))
		for _, fp := range pairs {
			targets = append(targets, fp.quote)
		}
		latest, err := p.Client.Latest(ctx, base, targets...)
		if err != nil {
			return nil, fmt.Errorf("fx latest %s: %w", base, err)
		}
		asOf, err := time.Parse("2006-01-02", latest.Date)
		if err != nil {
			asOf = time.Now().UTC()
		}
		prev, err := p.Client.On(ctx, asOf.AddDate(0, 0, -1).Format("2006-01-02"), base, targets...)
		if err != nil {
			prev = nil
		}
		for _, fp := range pairs {
			rate, ok := latest.Rates[fp.quote]
			if !ok {
				continue
			}
			q := Quote{
				Symbol: fp.symbol,
				Name:   fp.base + "/" + fp.quote,
				Price:  rate,
				Source: p.Name(),
				AsOf:   asOf,
			}
			if prev != nil {
				if before, ok := prev.Rates[fp.quote]; ok && before.IsPositive() {
					q.ChangePct = rate.Sub(before).Div(before).Mul(decimal.NewFromInt(100)).Round(4)
				}
			}
			out = append(out, q)
		}
	}
	return out, nil
}
