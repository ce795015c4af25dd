package store

import "context"

// SearchMessages performs a full-text search on archived message bodies and
// sender names, optionally restricted to one deal.
func (db *DB) SearchMessages(ctx context.Context, query string, dealID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT m.id, m.deal_id, m.msg_id, m.client_id, m.sender_id, m.sender_name, m.sender_email,
		       m.body, m.from_me, m.timestamp,
		       snippet(messages_fts, 0, '<<', '>>', '...', 32)
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		WHERE messages_fts MATCH ?`

	args := []any{query}
	if dealID != "" {
		q += " AND m.deal_id = ?"
		args = append(args, dealID)
	}
	q += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(
			&r.Message.ID, &r.Message.DealID, &r.Message.MsgID, &r.Message.ClientID,
			&r.Message.SenderID, &r.Message.SenderName, &r.Message.SenderEmail,
			&r.Message.Body, &r.Message.FromMe, &r.Message.Timestamp, &r.Snippet,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
