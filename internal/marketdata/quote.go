package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Quote struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name,omitempty"`
	Price     decimal.Decimal `json:"price"`
	ChangePct decimal.Decimal `json:"change_pct"`
	Volume    decimal.Decimal `json:"volume"`
	Source    string          `json:"source"`
	AsOf      time.Time       `json:"as_of"`
	// FetchedAt is when the quote last came back from its provider. AsOf is the
	// provider's own timestamp and can lag it by days for FX fixings.
	FetchedAt time.Time `json:"fetched_at"`
	// Stale marks a quote carried over from an earlier snapshot after its provider failed.
	Stale bool `json:"stale,omitempty"`
}

type Snapshot struct {
	Quotes []Quote   `json:"quotes"`
	AsOf   time.Time `json:"as_of"`
	Stale  bool      `json:"stale"`
}

func (s Snapshot) Find(symbol string) (Quote, bool) {
	for _, q := range s.Quotes {
		if q.Symbol == symbol {
			return q, true
		}
	}
	return Quote{}, false
}

// Provider fetches current quotes for the symbols it was configured with.
type Provider interface {
	Name() string
	Quotes(ctx context.Context) ([]Quote, error)
}
