package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UpsertMessage inserts or updates a message (idempotent on deal_id + msg_id).
// A client id already on file is kept when the update carries none.
func (db *DB) UpsertMessage(ctx context.Context, m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO messages (deal_id, msg_id, client_id, sender_id, sender_name, sender_email, body, from_me, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(deal_id, msg_id) DO UPDATE SET
			client_id = COALESCE(NULLIF(excluded.client_id, ''), messages.client_id),
			sender_name = excluded.sender_name,
			body = excluded.body`,
		m.DealID, m.MsgID, m.ClientID, m.SenderID, m.SenderName, m.SenderEmail, m.Body, m.FromMe, m.Timestamp, now)
	return err
}

// ListMessages returns messages for a deal using keyset pagination by timestamp,
// newest first.
func (db *DB) ListMessages(ctx context.Context, dealID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, deal_id, msg_id, client_id, sender_id, sender_name, sender_email, body, from_me, timestamp
		FROM messages
		WHERE deal_id = ? AND timestamp < ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, dealID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.DealID, &m.MsgID, &m.ClientID, &m.SenderID, &m.SenderName, &m.SenderEmail, &m.Body, &m.FromMe, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// UpsertMessages archives a batch in one transaction and records the newest
// message of each deal as its activity.
func (db *DB) UpsertMessages(ctx context.Context, msgs []Message) error {
	now := time.Now().UnixMilli()
	return db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO messages (deal_id, msg_id, client_id, sender_id, sender_name, sender_email, body, from_me, timestamp, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(deal_id, msg_id) DO UPDATE SET
				client_id = COALESCE(NULLIF(excluded.client_id, ''), messages.client_id),
				sender_name = excluded.sender_name,
				body = excluded.body`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		latest := make(map[string]Message)
		for _, m := range msgs {
			if _, err := stmt.ExecContext(ctx, m.DealID, m.MsgID, m.ClientID, m.SenderID, m.SenderName, m.SenderEmail, m.Body, m.FromMe, m.Timestamp, now); err != nil {
				return fmt.Errorf("upsert message %s: %w", m.MsgID, err)
			}
			if cur, ok := latest[m.DealID]; !ok || m.Timestamp >= cur.Timestamp {
				latest[m.DealID] = m
			}
		}
		for dealID, m := range latest {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO deals (id, last_message_at, last_message_preview, updated_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					last_message_at = excluded.last_message_at,
					last_message_preview = excluded.last_message_preview,
					updated_at = excluded.updated_at
				WHERE excluded.last_message_at >= deals.last_message_at`,
				dealID, m.Timestamp, Preview(m.Body), now); err != nil {
				return fmt.Errorf("touch deal %s: %w", dealID, err)
			}
		}
		return nil
	})
}

// Preview shortens a message body for the deal list.
func Preview(body string) string {
	const maxRunes = 100
	r := []rune(body)
	if len(r) <= maxRunes {
		return body
	}
	return string(r[:maxRunes])
}
