package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// ListDocuments returns document metadata for a deal. Contents are not fetched.
func (c *Client) ListDocuments(ctx context.Context, dealID string) ([]Document, error) {
	if err := c.checkID("deal id", dealID); err != nil {
		return nil, err
	}
	var resp struct {
		Documents []Document `json:"documents"`
	}
	path := "/api/documents/" + url.PathEscape(dealID)
	if err := c.do(ctx, http.MethodGet, "/api/documents/{dealId}", path, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// Analytics reports.
const (
	ReportDashboard  = "dashboard"
	ReportTimeline   = "deals/timeline"
	ReportEngagement = "user-engagement"
)

// Analytics fetches one analytics report and returns its "data" member undecoded.
func (c *Client) Analytics(ctx context.Context, report string) (json.RawMessage, error) {
	if err := c.validate.Var(report, "oneof=dashboard deals/timeline user-engagement"); err != nil {
		return nil, err
	}
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	path := "/api/analytics/" + report
	if err := c.do(ctx, http.MethodGet, path, path, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
