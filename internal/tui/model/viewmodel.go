package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/dealroom/internal/api"
	"github.com/matheus3301/dealroom/internal/overview"
	"github.com/matheus3301/dealroom/internal/store"
	"go.uber.org/zap"
)

// DealService is the REST surface behind the deal pages.
type DealService interface {
	overview.Source
	GetDeal(ctx context.Context, dealID string) (api.Deal, error)
	ProposePrice(ctx context.Context, dealID string, price float64) (api.Deal, error)
	UpdateDealStatus(ctx context.Context, dealID, status string) (api.Deal, error)
	ListDocuments(ctx context.Context, dealID string) ([]api.Document, error)
}

// Archive is the local database behind the deal cache and search.
type Archive interface {
	overview.DealCache
	ListDeals(ctx context.Context, limit, offset int) ([]store.Deal, error)
	SearchMessages(ctx context.Context, query, dealID string, limit int) ([]store.SearchResult, error)
}

// DealRow is one line of the deal list.
type DealRow struct {
	ID           string
	Title        string
	Status       string
	Price        float64
	Counterparty string
	Preview      string
	LastActivity time.Time
	Messages     int
}

// DealDetail is a deal with its documents.
type DealDetail struct {
	Deal      api.Deal
	Documents []api.Document
}

// ViewModel caches deal state for the views and signals UI refreshes.
type ViewModel struct {
	mu sync.RWMutex

	deals   DealService
	archive Archive
	self    string
	logger  *zap.Logger

	rows         []DealRow
	statusFilter string
	detail       *DealDetail

	refreshCh chan struct{}
}

// NewViewModel creates a view model for the signed-in user selfID.
func NewViewModel(deals DealService, archive Archive, selfID string, logger *zap.Logger) *ViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewModel{
		deals:     deals,
		archive:   archive,
		self:      selfID,
		logger:    logger,
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// LoadCachedDeals fills the list from the local cache so it shows before the network answers.
func (vm *ViewModel) LoadCachedDeals(ctx context.Context) error {
	cached, err := vm.archive.ListDeals(ctx, 200, 0)
	if err != nil {
		return fmt.Errorf("load cached deals: %w", err)
	}
	rows := make([]DealRow, 0, len(cached))
	for _, d := range cached {
		row := DealRow{
			ID:           d.ID,
			Title:        d.Title,
			Status:       d.Status,
			Price:        d.CurrentPrice,
			Counterparty: firstNonEmpty(d.SellerName, d.BuyerName),
			Preview:      d.LastMessagePreview,
		}
		if d.LastMessageAt > 0 {
			row.LastActivity = time.UnixMilli(d.LastMessageAt)
		}
		rows = append(rows, row)
	}
	vm.mu.Lock()
	if vm.rows == nil {
		vm.rows = vm.filterLocked(rows)
	}
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// RefreshDeals rebuilds the list from the API, ordered by latest activity,
// and writes it to the local cache.
func (vm *ViewModel) RefreshDeals(ctx context.Context) error {
	vm.mu.RLock()
	status := vm.statusFilter
	vm.mu.RUnlock()

	rows, err := overview.Build(ctx, vm.deals, status, overview.DefaultConcurrency)
	if err != nil {
		return err
	}
	if err := overview.Cache(ctx, vm.archive, rows); err != nil {
		vm.logger.Warn("deal cache write failed", zap.Error(err))
	}

	out := make([]DealRow, len(rows))
	for i, r := range rows {
		out[i] = vm.toRow(r)
	}
	vm.mu.Lock()
	vm.rows = out
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

func (vm *ViewModel) toRow(r overview.Row) DealRow {
	row := DealRow{
		ID:           r.Deal.ID,
		Title:        firstNonEmpty(r.Deal.Title, r.Deal.ID),
		Status:       r.Deal.Status,
		Price:        r.Deal.CurrentPrice,
		Counterparty: vm.counterparty(r.Deal),
		LastActivity: r.LastActivity(),
		Messages:     r.Messages,
	}
	if r.Last != nil {
		row.Preview = store.Preview(r.Last.Content)
	}
	return row
}

// counterparty is the other side of the deal from the signed-in user.
func (vm *ViewModel) counterparty(d api.Deal) string {
	if d.Buyer.ID == vm.self {
		return d.Seller.Name
	}
	if d.Seller.ID == vm.self {
		return d.Buyer.Name
	}
	return firstNonEmpty(d.Seller.Name, d.Buyer.Name)
}

// SetStatusFilter limits the list to one deal status; empty shows all.
func (vm *ViewModel) SetStatusFilter(status string) error {
	switch status {
	case "", api.DealPending, api.DealInProgress, api.DealCompleted, api.DealCancelled:
	default:
		return fmt.Errorf("unknown deal status %q", status)
	}
	vm.mu.Lock()
	vm.statusFilter = status
	vm.rows = vm.filterLocked(vm.rows)
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// StatusFilter returns the active status filter.
func (vm *ViewModel) StatusFilter() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.statusFilter
}

func (vm *ViewModel) filterLocked(rows []DealRow) []DealRow {
	if vm.statusFilter == "" {
		return rows
	}
	var out []DealRow
	for _, r := range rows {
		if r.Status == vm.statusFilter {
			out = append(out, r)
		}
	}
	return out
}

// Deals returns a snapshot of the deal list.
func (vm *ViewModel) Deals() []DealRow {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	out := make([]DealRow, len(vm.rows))
	copy(out, vm.rows)
	return out
}

// DealTitle returns the cached title of a deal, or its id.
func (vm *ViewModel) DealTitle(id string) string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, r := range vm.rows {
		if r.ID == id {
			return r.Title
		}
	}
	return id
}

// FindDeal returns the first deal whose title contains name, case-insensitively.
func (vm *ViewModel) FindDeal(name string) (DealRow, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return DealRow{}, false
	}
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, r := range vm.rows {
		if r.ID == name || strings.Contains(strings.ToLower(r.Title), needle) {
			return r, true
		}
	}
	return DealRow{}, false
}

// LoadDetail fetches a deal and its documents.
func (vm *ViewModel) LoadDetail(ctx context.Context, dealID string) (*DealDetail, error) {
	deal, err := vm.deals.GetDeal(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("get deal: %w", err)
	}
	docs, err := vm.deals.ListDocuments(ctx, dealID)
	if err != nil {
		vm.logger.Warn("list documents failed", zap.String("deal_id", dealID), zap.Error(err))
	}
	detail := &DealDetail{Deal: deal, Documents: docs}
	vm.mu.Lock()
	vm.detail = detail
	vm.mu.Unlock()
	vm.signalRefresh()
	return detail, nil
}

// ProposePrice submits a new price and refreshes the detail.
func (vm *ViewModel) ProposePrice(ctx context.Context, dealID string, price float64) (api.Deal, error) {
	deal, err := vm.deals.ProposePrice(ctx, dealID, price)
	if err != nil {
		return api.Deal{}, fmt.Errorf("propose price: %w", err)
	}
	vm.updateDeal(deal)
	return deal, nil
}

// UpdateStatus changes a deal's status.
func (vm *ViewModel) UpdateStatus(ctx context.Context, dealID, status string) (api.Deal, error) {
	deal, err := vm.deals.UpdateDealStatus(ctx, dealID, status)
	if err != nil {
		return api.Deal{}, fmt.Errorf("update status: %w", err)
	}
	vm.updateDeal(deal)
	return deal, nil
}

func (vm *ViewModel) updateDeal(deal api.Deal) {
	vm.mu.Lock()
	if vm.detail != nil && vm.detail.Deal.ID == deal.ID {
		vm.detail.Deal = deal
	}
	for i := range vm.rows {
		if vm.rows[i].ID == deal.ID {
			vm.rows[i].Price = deal.CurrentPrice
			vm.rows[i].Status = deal.Status
		}
	}
	vm.mu.Unlock()
	vm.signalRefresh()
}

// Detail returns the last loaded deal detail.
func (vm *ViewModel) Detail() *DealDetail {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.detail
}

// Search queries the local archive.
func (vm *ViewModel) Search(ctx context.Context, query string) ([]store.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	results, err := vm.archive.SearchMessages(ctx, query, "", 50)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return results, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// NoteActivity moves a deal to the top of the list after a new message.
func (vm *ViewModel) NoteActivity(dealID, content string, at time.Time) {
	vm.mu.Lock()
	idx := -1
	for i := range vm.rows {
		if vm.rows[i].ID == dealID {
			idx = i
			break
		}
	}
	if idx < 0 || at.Before(vm.rows[idx].LastActivity) {
		vm.mu.Unlock()
		return
	}
	row := vm.rows[idx]
	row.Preview = store.Preview(content)
	row.LastActivity = at
	copy(vm.rows[1:idx+1], vm.rows[:idx])
	vm.rows[0] = row
	vm.mu.Unlock()
	vm.signalRefresh()
}
