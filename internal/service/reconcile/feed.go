package reconcile

import (
	"fmt"
	"sort"

	"github.com/azimjon-95/totli-webapp/internal/domain"
)

// DefaultFeedLimit caps the activity feed when no limit is configured
const DefaultFeedLimit = 40

// BuildFeed projects sales and expenses into display rows, newest first.
// Sales precede expenses at equal timestamps. At most limit rows are
// returned; a negative limit yields none. A nil formatter uses
// DefaultFormatter.
func BuildFeed(sales []domain.SalesEvent, expenses []domain.ExpenseEvent, limit int, f *Formatter) []domain.ActivityItem {
	if f == nil {
		f = DefaultFormatter()
	}
	if limit < 0 {
		return []domain.ActivityItem{}
	}

	items := make([]domain.ActivityItem, 0, len(sales)+len(expenses))
	for _, s := range sales {
		items = append(items, domain.ActivityItem{
			At:    s.CreatedAt,
			Kind:  domain.ActivityKindSale,
			Title: fmt.Sprintf("🧁 %s — %d ta", s.OrderNo, s.ItemCount()),
			Money: f.Money(s.PaidTotal),
			Time:  f.Time(s.CreatedAt),
		})
	}
	for _, e := range expenses {
		items = append(items, domain.ActivityItem{
			At:    e.CreatedAt,
			Kind:  domain.ActivityKindExpense,
			Title: fmt.Sprintf("❌ %s — %s (%s)", e.OrderNo, e.Title, e.CategoryKey),
			Money: f.Money(e.Amount),
			Time:  f.Time(e.CreatedAt),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].At.After(items[j].At)
	})

	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
