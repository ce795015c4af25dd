package api

import (
	"context"
	"net/http"
	"net/url"
)

type createMessageRequest struct {
	DealID   string `json:"dealId" validate:"required"`
	Content  string `json:"content" validate:"required"`
	ClientID string `json:"clientId,omitempty" validate:"omitempty,uuid"`
}

// ListMessages fetches the full ordered history of a deal conversation.
func (c *Client) ListMessages(ctx context.Context, dealID string) ([]Message, error) {
	if err := c.checkID("deal id", dealID); err != nil {
		return nil, err
	}
	var resp struct {
		Messages []Message `json:"messages"`
	}
	path := "/api/messages/" + url.PathEscape(dealID)
	if err := c.do(ctx, http.MethodGet, "/api/messages/{dealId}", path, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// CreateMessage persists a message. clientID is the sender's correlation id
// and may be empty.
func (c *Client) CreateMessage(ctx context.Context, dealID, content, clientID string) (Message, error) {
	req := createMessageRequest{DealID: dealID, Content: content, ClientID: clientID}
	if err := c.check(req); err != nil {
		return Message{}, err
	}
	var resp struct {
		Message Message `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/messages", "/api/messages", req, &resp, true); err != nil {
		return Message{}, err
	}
	return resp.Message, nil
}
