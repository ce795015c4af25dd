package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type priceRequest struct {
	Price float64 `json:"price" validate:"gt=0"`
}

type statusRequest struct {
	Status string `json:"status" validate:"oneof=pending in-progress completed cancelled"`
}

type dealResponse struct {
	Deal Deal `json:"deal"`
}

// ListDeals returns the deals the user participates in, optionally filtered by status.
func (c *Client) ListDeals(ctx context.Context, status string) ([]Deal, error) {
	path := "/api/deals"
	if status != "" {
		if err := c.check(statusRequest{Status: status}); err != nil {
			return nil, err
		}
		path += "?status=" + url.QueryEscape(status)
	}
	var resp struct {
		Deals []Deal `json:"deals"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/deals", path, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Deals, nil
}

func (c *Client) GetDeal(ctx context.Context, dealID string) (Deal, error) {
	if err := c.checkID("deal id", dealID); err != nil {
		return Deal{}, err
	}
	var resp dealResponse
	path := "/api/deals/" + url.PathEscape(dealID)
	if err := c.do(ctx, http.MethodGet, "/api/deals/{id}", path, nil, &resp, true); err != nil {
		return Deal{}, err
	}
	return resp.Deal, nil
}

// ProposePrice records a counter-offer and returns the updated deal.
func (c *Client) ProposePrice(ctx context.Context, dealID string, price float64) (Deal, error) {
	if err := c.checkID("deal id", dealID); err != nil {
		return Deal{}, err
	}
	req := priceRequest{Price: price}
	if err := c.check(req); err != nil {
		return Deal{}, err
	}
	var resp dealResponse
	path := "/api/deals/" + url.PathEscape(dealID) + "/price"
	if err := c.do(ctx, http.MethodPut, "/api/deals/{id}/price", path, req, &resp, true); err != nil {
		return Deal{}, err
	}
	return resp.Deal, nil
}

func (c *Client) UpdateDealStatus(ctx context.Context, dealID, status string) (Deal, error) {
	if err := c.checkID("deal id", dealID); err != nil {
		return Deal{}, err
	}
	req := statusRequest{Status: status}
	if err := c.check(req); err != nil {
		return Deal{}, err
	}
	var resp dealResponse
	path := "/api/deals/" + url.PathEscape(dealID) + "/status"
	if err := c.do(ctx, http.MethodPut, "/api/deals/{id}/status", path, req, &resp, true); err != nil {
		return Deal{}, err
	}
	return resp.Deal, nil
}

// ParsePrice parses a user-entered price. Currency symbols and thousands
// separators are accepted; the result must be positive.
func ParsePrice(s string) (float64, error) {
	clean := strings.NewReplacer("$", "", ",", "", "_", "").Replace(s)
	p, err := strconv.ParseFloat(strings.TrimSpace(clean), 64)
	if err != nil || p <= 0 {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	return p, nil
}
