package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// UpsertDeals refreshes the deal list cache. Message activity columns are
// left untouched for existing rows; they are owned by TouchDeal.
func (db *DB) UpsertDeals(ctx context.Context, deals []Deal) error {
	now := time.Now().UnixMilli()
	return db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO deals (id, title, status, current_price, buyer_name, seller_name, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				status = excluded.status,
				current_price = excluded.current_price,
				buyer_name = excluded.buyer_name,
				seller_name = excluded.seller_name,
				updated_at = excluded.updated_at`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()
		for _, d := range deals {
			if _, err := stmt.ExecContext(ctx, d.ID, d.Title, d.Status, d.CurrentPrice, d.BuyerName, d.SellerName, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// TouchDeal records message activity on a deal. Older activity never
// overwrites newer activity. A deal not yet cached gets a placeholder row.
func (db *DB) TouchDeal(ctx context.Context, dealID string, at int64, preview string, unread int) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO deals (id, unread_count, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			unread_count = excluded.unread_count,
			last_message_at = excluded.last_message_at,
			last_message_preview = excluded.last_message_preview,
			updated_at = excluded.updated_at
		WHERE excluded.last_message_at >= deals.last_message_at`,
		dealID, unread, at, preview, time.Now().UnixMilli())
	return err
}

// ListDeals returns cached deals, most recent message activity first.
func (db *DB) ListDeals(ctx context.Context, limit, offset int) ([]Deal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, COALESCE(NULLIF(title,''), id), status, current_price, buyer_name, seller_name,
			unread_count, last_message_at, last_message_preview
		FROM deals
		ORDER BY last_message_at DESC, title ASC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var deals []Deal
	for rows.Next() {
		var d Deal
		if err := rows.Scan(&d.ID, &d.Title, &d.Status, &d.CurrentPrice, &d.BuyerName, &d.SellerName,
			&d.UnreadCount, &d.LastMessageAt, &d.LastMessagePreview); err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

// GetDeal returns a single cached deal, or nil if unknown.
func (db *DB) GetDeal(ctx context.Context, id string) (*Deal, error) {
	var d Deal
	err := db.QueryRowContext(ctx, `
		SELECT id, COALESCE(NULLIF(title,''), id), status, current_price, buyer_name, seller_name,
			unread_count, last_message_at, last_message_preview
		FROM deals WHERE id = ?`, id).
		Scan(&d.ID, &d.Title, &d.Status, &d.CurrentPrice, &d.BuyerName, &d.SellerName,
			&d.UnreadCount, &d.LastMessageAt, &d.LastMessagePreview)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
