package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradesense/internal/models"
	"tradesense/internal/repository"
)

const (
	growthWeeks     = 4
	maxAnalyticDays = 366
)

type AnalyticsQuery struct {
	// Range is one of today, 7d, 30d, 90d. Ignored when From or To is set.
	Range         string
	From          *time.Time
	To            *time.Time
	ChallengeType *string
	Status        *string
}

type AnalyticsKPIs struct {
	TotalAccounts int64           `json:"total_accounts"`
	FundedCount   int64           `json:"funded_count"`
	FailedCount   int64           `json:"failed_count"`
	ActiveCount   int64           `json:"active_count"`
	FundedPct     int64           `json:"funded_pct"`
	FailedPct     int64           `json:"failed_pct"`
	ProfitTotal   decimal.Decimal `json:"profit_total"`
}

type SeriesPoint struct {
	Label string          `json:"label"`
	Value decimal.Decimal `json:"value"`
}

type NamedCount struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

type AnalyticsSeries struct {
	PnL         []SeriesPoint `json:"pnl"`
	Status      []NamedCount  `json:"status"`
	Challenge   []NamedCount  `json:"challenge"`
	Withdrawals []NamedCount  `json:"withdrawals"`
	Growth      []NamedCount  `json:"growth"`
}

type AnalyticsFilters struct {
	Range         string    `json:"range"`
	DateFrom      time.Time `json:"date_from"`
	DateTo        time.Time `json:"date_to"`
	ChallengeType *string   `json:"challenge_type"`
	Status        *string   `json:"status"`
}

type Analytics struct {
	KPIs    AnalyticsKPIs    `json:"kpis"`
	Series  AnalyticsSeries  `json:"series"`
	Filters AnalyticsFilters `json:"filters"`
}

// Analytics summarizes accounts opened in the resolved window: status counts and
// profit, realized P&L per day, tier and withdrawal breakdowns, and weekly signups.
func (s *AccountService) Analytics(ctx context.Context, q AnalyticsQuery) (Analytics, error) {
	label, from, to, err := resolveRange(q, s.now())
	if err != nil {
		return Analytics{}, err
	}
	params := repository.ListAccountsParams{
		Status:        lowerPtr(q.Status),
		ChallengeType: lowerPtr(q.ChallengeType),
		CreatedFrom:   &from,
		CreatedTo:     &to,
	}
	out := Analytics{Filters: AnalyticsFilters{
		Range:         label,
		DateFrom:      from,
		DateTo:        to,
		ChallengeType: params.ChallengeType,
		Status:        params.Status,
	}}

	stats, err := s.Repo.AccountStats(ctx, params)
	if err != nil {
		return Analytics{}, fmt.Errorf("account stats: %w", err)
	}
	byType := map[string]int64{}
	for _, r := range stats {
		out.KPIs.TotalAccounts += r.Accounts
		out.KPIs.ProfitTotal = out.KPIs.ProfitTotal.Add(r.Profit)
		switch r.Status {
		case models.AccountStatusFunded:
			out.KPIs.FundedCount += r.Accounts
		case models.AccountStatusFailed:
			out.KPIs.FailedCount += r.Accounts
		case models.AccountStatusActive:
			out.KPIs.ActiveCount += r.Accounts
		}
		byType[strings.ToLower(r.ChallengeType)] += r.Accounts
	}
	out.KPIs.ProfitTotal = out.KPIs.ProfitTotal.Round(2)
	out.KPIs.FundedPct = percentOf(out.KPIs.FundedCount, out.KPIs.TotalAccounts)
	out.KPIs.FailedPct = percentOf(out.KPIs.FailedCount, out.KPIs.TotalAccounts)
	out.Series.Status = []NamedCount{
		{Name: "Funded", Value: out.KPIs.FundedCount},
		{Name: "Active", Value: out.KPIs.ActiveCount},
		{Name: "Failed", Value: out.KPIs.FailedCount},
	}

	tiers, err := s.tierNames(ctx)
	if err != nil {
		return Analytics{}, err
	}
	for _, name := range tiers {
		out.Series.Challenge = append(out.Series.Challenge, NamedCount{Name: strings.ToUpper(name), Value: byType[name]})
	}

	pnl, err := s.Repo.DailyTradePnL(ctx, params, from, to)
	if err != nil {
		return Analytics{}, fmt.Errorf("daily pnl: %w", err)
	}
	pnlByDay := map[string]decimal.Decimal{}
	for _, r := range pnl {
		pnlByDay[r.Day.Format(time.DateOnly)] = r.PnL
	}
	for _, day := range daysBetween(from, to) {
		out.Series.PnL = append(out.Series.PnL, SeriesPoint{Label: day, Value: pnlByDay[day].Round(2)})
	}

	wd, err := s.Repo.WithdrawalStatusCounts(ctx, params, from, to)
	if err != nil {
		return Analytics{}, fmt.Errorf("withdrawal counts: %w", err)
	}
	wdByStatus := map[string]int64{}
	for _, r := range wd {
		wdByStatus[r.Status] += r.Count
	}
	for _, st := range []string{models.WithdrawalPending, models.WithdrawalApproved, models.WithdrawalPaid, models.WithdrawalRejected} {
		out.Series.Withdrawals = append(out.Series.Withdrawals, NamedCount{Name: titleCase(st), Value: wdByStatus[st]})
	}

	opened, err := s.Repo.DailyAccountsOpened(ctx, params)
	if err != nil {
		return Analytics{}, fmt.Errorf("accounts opened: %w", err)
	}
	out.Series.Growth = weeklyGrowth(opened, to)
	return out, nil
}

// resolveRange turns the query into a UTC window. Explicit dates win over the label;
// a missing end defaults to now and a missing start to seven days before the end.
func resolveRange(q AnalyticsQuery, now time.Time) (string, time.Time, time.Time, error) {
	label := strings.ToLower(strings.TrimSpace(q.Range))
	if q.From != nil || q.To != nil {
		to := now
		if q.To != nil {
			to = q.To.UTC()
		}
		from := to.AddDate(0, 0, -7)
		if q.From != nil {
			from = q.From.UTC()
		}
		if to.Before(from) {
			return "", time.Time{}, time.Time{}, invalid("date_from must not be after date_to")
		}
		if to.Sub(from) > maxAnalyticDays*24*time.Hour {
			return "", time.Time{}, time.Time{}, invalid("Date range is limited to one year")
		}
		if label == "" {
			label = "custom"
		}
		return label, from, to, nil
	}
	switch label {
	case "today":
		y, m, d := now.Date()
		return label, time.Date(y, m, d, 0, 0, 0, 0, time.UTC), now, nil
	case "30d":
		return label, now.AddDate(0, 0, -30), now, nil
	case "90d":
		return label, now.AddDate(0, 0, -90), now, nil
	}
	return "7d", now.AddDate(0, 0, -7), now, nil
}

func daysBetween(from, to time.Time) []string {
	var out []string
	y, m, d := from.Date()
	cursor := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	for !cursor.After(to) {
		out = append(out, cursor.Format(time.DateOnly))
		cursor = cursor.AddDate(0, 0, 1)
	}
	return out
}

// weeklyGrowth buckets account openings into the seven-day windows ending on the
// day of end, oldest first.
func weeklyGrowth(rows []repository.DailyCountRow, end time.Time) []NamedCount {
	y, m, d := end.Date()
	anchor := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	out := make([]NamedCount, growthWeeks)
	for i := 0; i < growthWeeks; i++ {
		weekEnd := anchor.AddDate(0, 0, -7*i)
		weekStart := weekEnd.AddDate(0, 0, -6)
		bucket := NamedCount{Name: weekStart.Format("Jan 02")}
		for _, r := range rows {
			day := time.Date(r.Day.Year(), r.Day.Month(), r.Day.Day(), 0, 0, 0, 0, time.UTC)
			if !day.Before(weekStart) && !day.After(weekEnd) {
				bucket.Value += r.Count
			}
		}
		out[growthWeeks-1-i] = bucket
	}
	return out
}

// tierNames lists the catalog tiers in catalog order followed by the demo type.
func (s *AccountService) tierNames(ctx context.Context) ([]string, error) {
	tiers, err := s.Repo.ListChallenges(ctx)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].ID < tiers[j].ID })
	out := make([]string, 0, len(tiers)+1)
	for _, t := range tiers {
		out = append(out, strings.ToLower(t.Name))
	}
	return append(out, models.ChallengeTypeDemo), nil
}

func percentOf(part, total int64) int64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(part * 100).Div(decimal.NewFromInt(total)).Round(0).IntPart()
}

func lowerPtr(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.ToLower(strings.TrimSpace(*v))
	if s == "" {
		return nil
	}
	return &s
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
