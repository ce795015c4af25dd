// Package overview builds the deal list ordered by latest message activity.
package overview

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/matheus3301/dealroom/internal/api"
	"github.com/matheus3301/dealroom/internal/store"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the per-deal history requests in flight.
const DefaultConcurrency = 4

// Source is the REST surface an overview reads.
type Source interface {
	ListDeals(ctx context.Context, status string) ([]api.Deal, error)
	ListMessages(ctx context.Context, dealID string) ([]api.Message, error)
}

// Row is one deal with its conversation activity.
type Row struct {
	Deal     api.Deal
	Last     *api.Message
	Messages int
}

// LastActivity is the newest message time, or the deal's update time when
// the conversation is empty.
func (r Row) LastActivity() time.Time {
	if r.Last != nil {
		return r.Last.CreatedAt
	}
	return r.Deal.UpdatedAt
}

// Build lists deals with the given status filter and fetches each deal's
// conversation concurrently. The first failing request cancels the rest.
func Build(ctx context.Context, src Source, status string, concurrency int) ([]Row, error) {
	deals, err := src.ListDeals(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	rows := make([]Row, len(deals))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, d := range deals {
		rows[i].Deal = d
		g.Go(func() error {
			msgs, err := src.ListMessages(gctx, d.ID)
			if err != nil {
				return fmt.Errorf("messages of deal %s: %w", d.ID, err)
			}
			rows[i].Messages = len(msgs)
			if len(msgs) > 0 {
				last := slices.MaxFunc(msgs, func(a, b api.Message) int { return a.CreatedAt.Compare(b.CreatedAt) })
				rows[i].Last = &last
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	Sort(rows)
	return rows, nil
}

// Sort orders rows by latest activity, newest first, then by title.
func Sort(rows []Row) {
	slices.SortStableFunc(rows, func(a, b Row) int {
		if c := b.LastActivity().Compare(a.LastActivity()); c != 0 {
			return c
		}
		return cmp.Compare(a.Deal.Title, b.Deal.Title)
	})
}

// DealCache is the local deal list cache.
type DealCache interface {
	UpsertDeals(ctx context.Context, deals []store.Deal) error
	TouchDeal(ctx context.Context, dealID string, at int64, preview string, unread int) error
}

// Cache writes rows to the local deal cache.
func Cache(ctx context.Context, db DealCache, rows []Row) error {
	deals := make([]store.Deal, len(rows))
	for i, r := range rows {
		deals[i] = store.Deal{
			ID:           r.Deal.ID,
			Title:        r.Deal.Title,
			Status:       r.Deal.Status,
			CurrentPrice: r.Deal.CurrentPrice,
			BuyerName:    r.Deal.Buyer.Name,
			SellerName:   r.Deal.Seller.Name,
		}
	}
	if err := db.UpsertDeals(ctx, deals); err != nil {
		return fmt.Errorf("cache deals: %w", err)
	}
	for _, r := range rows {
		if r.Last == nil {
			continue
		}
		if err := db.TouchDeal(ctx, r.Deal.ID, r.Last.CreatedAt.UnixMilli(), store.Preview(r.Last.Content), 0); err != nil {
			return fmt.Errorf("cache activity of %s: %w", r.Deal.ID, err)
		}
	}
	return nil
}
