package challenge

import (
	"context"
	"errors"
	"sort"
	"sync"

	"gorm.io/gorm"

	"tradesense/internal/models"
)

// stubLedger is an in-memory repository.LedgerRepository. InTx snapshots state and
// restores it when fn fails, mirroring a rolled back transaction.
type stubLedger struct {
	mu        sync.Mutex
	accounts  map[uint64]models.Account
	positions map[uint64]models.Position
	trades    []models.Trade
	nextID    uint64

	failSaveAccount bool
}

func newStubLedger(accounts ...*models.Account) *stubLedger {
	s := &stubLedger{
		accounts:  map[uint64]models.Account{},
		positions: map[uint64]models.Position{},
		nextID:    100,
	}
	for _, a := range accounts {
		s.accounts[a.ID] = *a
	}
	return s
}

func (s *stubLedger) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	accounts := make(map[uint64]models.Account, len(s.accounts))
	for k, v := range s.accounts {
		accounts[k] = v
	}
	positions := make(map[uint64]models.Position, len(s.positions))
	for k, v := range s.positions {
		positions[k] = v
	}
	trades := append([]models.Trade(nil), s.trades...)
	if err := fn(nil); err != nil {
		s.accounts, s.positions, s.trades = accounts, positions, trades
		return err
	}
	return nil
}

func (s *stubLedger) LockAccountTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *stubLedger) SaveAccountTx(ctx context.Context, tx *gorm.DB, item *models.Account) error {
	if s.failSaveAccount {
		return errors.New("store unavailable")
	}
	s.accounts[item.ID] = *item
	return nil
}

func (s *stubLedger) LatestTradeTx(ctx context.Context, tx *gorm.DB, accountID uint64) (*models.Trade, error) {
	var latest *models.Trade
	for i := range s.trades {
		t := s.trades[i]
		if t.AccountID != accountID {
			continue
		}
		if latest == nil || !t.Timestamp.Before(latest.Timestamp) {
			latest = &t
		}
	}
	return latest, nil
}

func (s *stubLedger) GetPositionTx(ctx context.Context, tx *gorm.DB, accountID uint64, asset string) (*models.Position, error) {
	for _, p := range s.positions {
		if p.AccountID == accountID && p.Asset == asset {
			out := p
			return &out, nil
		}
	}
	return nil, nil
}

func (s *stubLedger) ListPositionsTx(ctx context.Context, tx *gorm.DB, accountID uint64) ([]models.Position, error) {
	var out []models.Position
	for _, p := range s.positions {
		if p.AccountID == accountID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out, nil
}

func (s *stubLedger) SavePositionTx(ctx context.Context, tx *gorm.DB, item *models.Position) error {
	if item.ID == 0 {
		for _, p := range s.positions {
			if p.AccountID == item.AccountID && p.Asset == item.Asset {
				return errors.New("duplicate key value violates unique constraint ux_positions_account_asset")
			}
		}
		s.nextID++
		item.ID = s.nextID
	}
	s.positions[item.ID] = *item
	return nil
}

func (s *stubLedger) DeletePositionTx(ctx context.Context, tx *gorm.DB, id uint64) error {
	delete(s.positions, id)
	return nil
}

func (s *stubLedger) InsertTradeTx(ctx context.Context, tx *gorm.DB, item *models.Trade) error {
	s.nextID++
	item.ID = s.nextID
	s.trades = append(s.trades, *item)
	return nil
}

func (s *stubLedger) ListAccountIDsByStatus(ctx context.Context, status string) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for id, a := range s.accounts {
		if a.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *stubLedger) account(id uint64) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id]
}

func (s *stubLedger) position(accountID uint64, asset string) *models.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, _ := s.GetPositionTx(context.Background(), nil, accountID, asset)
	return p
}
