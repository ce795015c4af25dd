package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so run it again to check idempotency.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != SchemaVersion {
		t.Errorf("version = %d, want %d (init + fts)", result.Version, SchemaVersion)
	}
}

// TestMigrateSchemaHasRequiredColumns verifies the migration creates all
// columns the archive engine and session store depend on.
func TestMigrateSchemaHasRequiredColumns(t *testing.T) {
	db := testDB(t)

	requiredOps := []struct {
		desc  string
		query string
		args  []any
	}{
		{"store credentials", "INSERT INTO credentials (id, token, user_id, user_name, user_email, user_role) VALUES (1, ?, ?, ?, ?, ?)", []any{"tok", "u1", "Ann", "ann@x.io", "buyer"}},
		{"cache deal", "INSERT INTO deals (id, title, status, current_price, buyer_name, seller_name) VALUES (?, ?, ?, ?, ?, ?)", []any{"d1", "Boat", "pending", 10.5, "Ann", "Bob"}},
		{"archive message", "INSERT INTO messages (deal_id, msg_id, client_id, sender_id, sender_name, sender_email, body, from_me, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", []any{"d1", "m1", "c1", "u1", "Ann", "ann@x.io", "hello", true, 1000}},
	}

	for _, op := range requiredOps {
		t.Run(op.desc, func(t *testing.T) {
			if _, err := db.Exec(op.query, op.args...); err != nil {
				t.Fatalf("%s failed: %v", op.desc, err)
			}
		})
	}

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM messages_fts WHERE messages_fts MATCH 'hello'").Scan(&count)
	if err != nil {
		t.Fatalf("FTS5 query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("FTS5 count = %d, want 1", count)
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	c, err := db.LoadCredentials(ctx)
	if err != nil || c != nil {
		t.Fatalf("LoadCredentials() on empty db = %v, %v; want nil, nil", c, err)
	}

	if err := db.SaveCredentials(ctx, &Credentials{Token: "t1", UserID: "u1", UserName: "Ann"}); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveCredentials(ctx, &Credentials{Token: "t2", UserID: "u1", UserName: "Ann"}); err != nil {
		t.Fatal(err)
	}
	c, err = db.LoadCredentials(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.Token != "t2" {
		t.Errorf("credentials = %+v, want token t2", c)
	}

	if err := db.ClearCredentials(ctx); err != nil {
		t.Fatal(err)
	}
	if c, _ := db.LoadCredentials(ctx); c != nil {
		t.Errorf("credentials after clear = %+v, want nil", c)
	}
}

func TestDealUpsertAndList(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.UpsertDeals(ctx, []Deal{
		{ID: "d1", Title: "Boat", Status: "pending"},
		{ID: "d2", Title: "Car", Status: "in-progress"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.TouchDeal(ctx, "d2", 2000, "see you", 1); err != nil {
		t.Fatal(err)
	}

	// Refreshing the list must not clear activity.
	if err := db.UpsertDeals(ctx, []Deal{{ID: "d2", Title: "Car (used)", Status: "in-progress"}}); err != nil {
		t.Fatal(err)
	}

	deals, err := db.ListDeals(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(deals) != 2 {
		t.Fatalf("got %d deals, want 2", len(deals))
	}
	if deals[0].ID != "d2" || deals[0].Title != "Car (used)" || deals[0].LastMessagePreview != "see you" {
		t.Errorf("deals[0] = %+v, want d2 first with activity kept", deals[0])
	}
}

func TestTouchDealIgnoresOlderActivity(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.TouchDeal(ctx, "d1", 2000, "newer", 0); err != nil {
		t.Fatal(err)
	}
	if err := db.TouchDeal(ctx, "d1", 1000, "older", 0); err != nil {
		t.Fatal(err)
	}
	d, err := db.GetDeal(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || d.LastMessagePreview != "newer" {
		t.Errorf("deal = %+v, want preview newer", d)
	}
	// Title falls back to the id until the deal list is fetched.
	if d.Title != "d1" {
		t.Errorf("title = %q, want d1", d.Title)
	}

	missing, err := db.GetDeal(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetDeal(nope) = %v, %v; want nil, nil", missing, err)
	}
}

func TestMessageUpsertIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	msg := &Message{DealID: "d1", MsgID: "msg1", ClientID: "c1", Body: "hello", Timestamp: 1000}
	if err := db.UpsertMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}
	// Upsert again should not create duplicate, and keeps the client id.
	msg.Body = "hello updated"
	msg.ClientID = ""
	if err := db.UpsertMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages(ctx, "d1", 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (idempotent upsert failed)", len(msgs))
	}
	if msgs[0].Body != "hello updated" || msgs[0].ClientID != "c1" {
		t.Errorf("msg = %+v, want updated body with client id c1", msgs[0])
	}
}

func TestListMessagesPagination(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for i, ts := range []int64{1000, 2000, 3000} {
		m := &Message{DealID: "d1", MsgID: string(rune('a' + i)), Body: "x", Timestamp: ts}
		if err := db.UpsertMessage(ctx, m); err != nil {
			t.Fatal(err)
		}
	}
	page, err := db.ListMessages(ctx, "d1", 3000, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].Timestamp != 2000 || page[1].Timestamp != 1000 {
		t.Errorf("page = %+v, want timestamps 2000, 1000", page)
	}
}

func TestSearchMessages(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.UpsertMessage(ctx, &Message{DealID: "d1", MsgID: "m1", SenderName: "Ann", Body: "hello world", Timestamp: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(ctx, &Message{DealID: "d2", MsgID: "m2", SenderName: "Bob", Body: "goodbye world", Timestamp: 2000}); err != nil {
		t.Fatal(err)
	}

	results, err := db.SearchMessages(ctx, "hello", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Message.MsgID != "m1" {
		t.Errorf("msg_id = %q, want m1", results[0].Message.MsgID)
	}

	results, err = db.SearchMessages(ctx, "world", "d2", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Message.DealID != "d2" {
		t.Errorf("deal-scoped search = %+v, want only d2", results)
	}
}

func TestUpsertMessagesBatch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	batch := []Message{
		{DealID: "d1", MsgID: "a", Body: "first", Timestamp: 1000},
		{DealID: "d1", MsgID: "b", Body: "latest", Timestamp: 3000},
		{DealID: "d2", MsgID: "c", Body: "other", Timestamp: 2000},
	}
	if err := db.UpsertMessages(ctx, batch); err != nil {
		t.Fatal(err)
	}
	// Replaying the batch is a no-op.
	if err := db.UpsertMessages(ctx, batch); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages(ctx, "d1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Errorf("d1 messages = %d, want 2", len(msgs))
	}
	deals, err := db.ListDeals(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(deals) != 2 || deals[0].ID != "d1" || deals[0].LastMessagePreview != "latest" {
		t.Errorf("deals = %+v, want d1 first with preview latest", deals)
	}
}

func TestPreviewTruncatesRunes(t *testing.T) {
	long := strings.Repeat("é", 150)
	if got := []rune(Preview(long)); len(got) != 100 {
		t.Errorf("preview runes = %d, want 100", len(got))
	}
	if Preview("short") != "short" {
		t.Error("short body changed")
	}
}
