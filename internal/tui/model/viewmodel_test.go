package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/dealroom/internal/api"
	"github.com/matheus3301/dealroom/internal/store"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type fakeDeals struct {
	deals    []api.Deal
	messages map[string][]api.Message
	docsErr  error
	priced   float64
}

func (f *fakeDeals) ListDeals(ctx context.Context, status string) ([]api.Deal, error) {
	var out []api.Deal
	for _, d := range f.deals {
		if status == "" || d.Status == status {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDeals) ListMessages(ctx context.Context, dealID string) ([]api.Message, error) {
	return f.messages[dealID], nil
}

func (f *fakeDeals) GetDeal(ctx context.Context, dealID string) (api.Deal, error) {
	for _, d := range f.deals {
		if d.ID == dealID {
			return d, nil
		}
	}
	return api.Deal{}, &api.Error{Status: 404, Message: "Deal not found"}
}

func (f *fakeDeals) ProposePrice(ctx context.Context, dealID string, price float64) (api.Deal, error) {
	f.priced = price
	d, err := f.GetDeal(ctx, dealID)
	d.CurrentPrice = price
	return d, err
}

func (f *fakeDeals) UpdateDealStatus(ctx context.Context, dealID, status string) (api.Deal, error) {
	d, err := f.GetDeal(ctx, dealID)
	d.Status = status
	return d, err
}

func (f *fakeDeals) ListDocuments(ctx context.Context, dealID string) ([]api.Document, error) {
	if f.docsErr != nil {
		return nil, f.docsErr
	}
	return []api.Document{{ID: "doc1", FileName: "nda.pdf"}}, nil
}

type fakeArchive struct {
	cached  []store.Deal
	upserts int
	touched map[string]string
	query   string
}

func (f *fakeArchive) UpsertDeals(ctx context.Context, deals []store.Deal) error {
	f.upserts += len(deals)
	return nil
}

func (f *fakeArchive) TouchDeal(ctx context.Context, dealID string, at int64, preview string, unread int) error {
	if f.touched == nil {
		f.touched = map[string]string{}
	}
	f.touched[dealID] = preview
	return nil
}

func (f *fakeArchive) ListDeals(ctx context.Context, limit, offset int) ([]store.Deal, error) {
	return f.cached, nil
}

func (f *fakeArchive) SearchMessages(ctx context.Context, query, dealID string, limit int) ([]store.SearchResult, error) {
	f.query = query
	return []store.SearchResult{{Message: store.Message{DealID: "d1", Body: "price"}, Snippet: "<<price>>"}}, nil
}

func newTestVM() (*ViewModel, *fakeDeals, *fakeArchive) {
	deals := &fakeDeals{
		deals: []api.Deal{
			{ID: "d1", Title: "Warehouse", Status: api.DealPending, CurrentPrice: 100,
				Buyer: api.Person{ID: "me", Name: "Ann"}, Seller: api.Person{ID: "s1", Name: "Sam"}, UpdatedAt: t0},
			{ID: "d2", Title: "Office", Status: api.DealInProgress, CurrentPrice: 200,
				Buyer: api.Person{ID: "b2", Name: "Bo"}, Seller: api.Person{ID: "me", Name: "Ann"}, UpdatedAt: t0},
		},
		messages: map[string][]api.Message{
			"d2": {{ID: "m1", Deal: "d2", Content: "latest offer", CreatedAt: t0.Add(time.Hour)}},
		},
	}
	archive := &fakeArchive{}
	return NewViewModel(deals, archive, "me", nil), deals, archive
}

func drain(vm *ViewModel) bool {
	select {
	case <-vm.RefreshCh():
		return true
	default:
		return false
	}
}

func TestRefreshDealsOrdersByActivity(t *testing.T) {
	vm, _, archive := newTestVM()
	if err := vm.RefreshDeals(context.Background()); err != nil {
		t.Fatal(err)
	}
	rows := vm.Deals()
	if len(rows) != 2 || rows[0].ID != "d2" {
		t.Fatalf("Deals() = %+v, want d2 first", rows)
	}
	if rows[0].Preview != "latest offer" || rows[0].Messages != 1 {
		t.Errorf("row = %+v, want preview and message count", rows[0])
	}
	if rows[0].Counterparty != "Bo" || rows[1].Counterparty != "Sam" {
		t.Errorf("counterparties = %q, %q; want Bo, Sam", rows[0].Counterparty, rows[1].Counterparty)
	}
	if archive.upserts != 2 || archive.touched["d2"] != "latest offer" {
		t.Errorf("cache writes = %d deals, touched %v", archive.upserts, archive.touched)
	}
	if !drain(vm) {
		t.Error("no refresh signal")
	}
}

func TestLoadCachedDealsDoesNotOverwrite(t *testing.T) {
	vm, _, archive := newTestVM()
	archive.cached = []store.Deal{{ID: "old", Title: "Cached", LastMessageAt: t0.UnixMilli()}}

	if err := vm.LoadCachedDeals(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rows := vm.Deals(); len(rows) != 1 || rows[0].ID != "old" {
		t.Fatalf("Deals() = %+v, want cached row", rows)
	}

	if err := vm.RefreshDeals(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := vm.LoadCachedDeals(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rows := vm.Deals(); len(rows) != 2 {
		t.Errorf("Deals() after refresh = %d rows, want 2 from the API", len(rows))
	}
}

func TestStatusFilter(t *testing.T) {
	vm, _, _ := newTestVM()
	if err := vm.SetStatusFilter("bogus"); err == nil {
		t.Error("SetStatusFilter(bogus) expected error")
	}
	if err := vm.SetStatusFilter(api.DealPending); err != nil {
		t.Fatal(err)
	}
	if err := vm.RefreshDeals(context.Background()); err != nil {
		t.Fatal(err)
	}
	rows := vm.Deals()
	if len(rows) != 1 || rows[0].ID != "d1" {
		t.Errorf("Deals() = %+v, want only pending d1", rows)
	}
}

func TestFindDeal(t *testing.T) {
	vm, _, _ := newTestVM()
	if err := vm.RefreshDeals(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r, ok := vm.FindDeal("ware"); !ok || r.ID != "d1" {
		t.Errorf("FindDeal(ware) = %+v, %v", r, ok)
	}
	if r, ok := vm.FindDeal("d2"); !ok || r.ID != "d2" {
		t.Errorf("FindDeal(d2) = %+v, %v", r, ok)
	}
	if _, ok := vm.FindDeal("  "); ok {
		t.Error("FindDeal(blank) matched")
	}
	if vm.DealTitle("d1") != "Warehouse" || vm.DealTitle("zz") != "zz" {
		t.Error("DealTitle() mismatch")
	}
}

func TestNoteActivityMovesDealUp(t *testing.T) {
	vm, _, _ := newTestVM()
	if err := vm.RefreshDeals(context.Background()); err != nil {
		t.Fatal(err)
	}
	drain(vm)

	vm.NoteActivity("d1", "new message", t0.Add(2*time.Hour))
	rows := vm.Deals()
	if rows[0].ID != "d1" || rows[0].Preview != "new message" {
		t.Fatalf("Deals()[0] = %+v, want d1 with new preview", rows[0])
	}
	if !drain(vm) {
		t.Error("no refresh signal")
	}

	vm.NoteActivity("d2", "stale", t0)
	if rows := vm.Deals(); rows[1].Preview != "latest offer" {
		t.Errorf("older activity replaced preview: %+v", rows[1])
	}
}

func TestLoadDetailAndActions(t *testing.T) {
	vm, deals, _ := newTestVM()
	if err := vm.RefreshDeals(context.Background()); err != nil {
		t.Fatal(err)
	}

	detail, err := vm.LoadDetail(context.Background(), "d1")
	if err != nil {
		t.Fatal(err)
	}
	if detail.Deal.Title != "Warehouse" || len(detail.Documents) != 1 {
		t.Errorf("detail = %+v", detail)
	}

	if _, err := vm.ProposePrice(context.Background(), "d1", 150); err != nil {
		t.Fatal(err)
	}
	if deals.priced != 150 || vm.Detail().Deal.CurrentPrice != 150 {
		t.Errorf("price not applied to detail: %+v", vm.Detail().Deal)
	}
	if _, err := vm.UpdateStatus(context.Background(), "d1", api.DealCompleted); err != nil {
		t.Fatal(err)
	}
	r, _ := vm.FindDeal("d1")
	if r.Status != api.DealCompleted || r.Price != 150 {
		t.Errorf("row = %+v, want completed at 150", r)
	}

	if _, err := vm.LoadDetail(context.Background(), "missing"); err == nil {
		t.Error("LoadDetail(missing) expected error")
	}
}

func TestLoadDetailDocumentsFailureIsSoft(t *testing.T) {
	vm, deals, _ := newTestVM()
	deals.docsErr = errors.New("forbidden")
	detail, err := vm.LoadDetail(context.Background(), "d2")
	if err != nil {
		t.Fatalf("LoadDetail() error = %v", err)
	}
	if len(detail.Documents) != 0 {
		t.Errorf("documents = %v, want none", detail.Documents)
	}
}

func TestSearch(t *testing.T) {
	vm, _, archive := newTestVM()
	if res, err := vm.Search(context.Background(), "   "); err != nil || res != nil {
		t.Errorf("Search(blank) = %v, %v", res, err)
	}
	res, err := vm.Search(context.Background(), " price ")
	if err != nil || len(res) != 1 || archive.query != "price" {
		t.Errorf("Search() = %v, %v; query %q", res, err, archive.query)
	}
}
