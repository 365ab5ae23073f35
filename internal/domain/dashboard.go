package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// SummaryCards holds the six headline figures for a date range
type SummaryCards struct {
	SoldTotal    decimal.Decimal `json:"soldTotal"`    // total sold
	SalePaid     decimal.Decimal `json:"salePaid"`     // cash collected
	ExpenseSum   decimal.Decimal `json:"expenseSum"`   // total expense
	CustomerDebt decimal.Decimal `json:"customerDebt"` // customer receivables
	SupplierDebt decimal.Decimal `json:"supplierDebt"` // payable to supplier
	Balance      decimal.Decimal `json:"balance"`      // net balance
}

// SalesEvent is one sale recorded today
type SalesEvent struct {
	OrderNo   string            `json:"orderNo"`
	CreatedAt time.Time         `json:"createdAt"`
	PaidTotal decimal.Decimal   `json:"paidTotal"`
	Items     []json.RawMessage `json:"items,omitempty"`
}

// ItemCount returns the number of line items on the sale
func (s SalesEvent) ItemCount() int {
	return len(s.Items)
}

// ExpenseEvent is one expense recorded today
type ExpenseEvent struct {
	OrderNo     string          `json:"orderNo"`
	CreatedAt   time.Time       `json:"createdAt"`
	Amount      decimal.Decimal `json:"amount"`
	Title       string          `json:"title"`
	CategoryKey string          `json:"categoryKey"`
}

// HourlyPoint is one bucketed observation produced by the backend per day
type HourlyPoint struct {
	Hour  HourLabel       `json:"hour"`
	Value decimal.Decimal `json:"value"`
}

// MergedHourlyPoint pairs today's and yesterday's value for the same hour
type MergedHourlyPoint struct {
	Hour      HourLabel       `json:"hour"`
	Today     decimal.Decimal `json:"today"`
	Yesterday decimal.Decimal `json:"yesterday"`
}

type ActivityKind string

const (
	ActivityKindSale    ActivityKind = "sale"
	ActivityKindExpense ActivityKind = "expense"
)

// ActivityItem is one display row of the mixed sales/expense feed.
// Rebuilt on every sync cycle, never persisted.
type ActivityItem struct {
	At    time.Time    `json:"at"`
	Kind  ActivityKind `json:"kind"`
	Title string       `json:"title"`
	Money string       `json:"money"`
	Time  string       `json:"time"`
}

// Snapshot is a read-only copy of the dashboard state
type Snapshot struct {
	Range        DateRange           `json:"range"`
	Cards        *SummaryCards       `json:"cards,omitempty"`
	Sales        []SalesEvent        `json:"sales"`
	Expenses     []ExpenseEvent      `json:"expenses"`
	MergedSeries []MergedHourlyPoint `json:"mergedSeries"`
	ActivityFeed []ActivityItem      `json:"activityFeed"`
	LastError    string              `json:"lastError,omitempty"`
	IsLoading    bool                `json:"isLoading"`
	Generation   uint64              `json:"generation"`
	UpdatedAt    time.Time           `json:"updatedAt"`

	Err error `json:"-"`
}
