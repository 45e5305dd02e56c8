package graph

import (
	"context"
	"fmt"
	"log/slog"
)

// Seed documents for local development: four NSE-listed companies with one
// FY24 annual filing each.
var (
	seedCompanies = []map[string]any{
		{"_key": "reliance", "name": "Reliance Industries Limited", "nse_symbol": "RELIANCE"},
		{"_key": "tcs", "name": "Tata Consultancy Services", "nse_symbol": "TCS"},
		{"_key": "infosys", "name": "Infosys Limited", "nse_symbol": "INFY"},
		{"_key": "hdfc", "name": "HDFC Bank", "nse_symbol": "HDFCBANK"},
	}

	seedFilings = []map[string]any{
		{"_key": "reliance_fy24_annual", "nse_symbol": "RELIANCE", "type": "annual", "period": "FY24", "pdf_url": "/data/filings/reliance_fy24.pdf"},
		{"_key": "tcs_fy24_annual", "nse_symbol": "TCS", "type": "annual", "period": "FY24", "pdf_url": "/data/filings/tcs_fy24.pdf"},
		{"_key": "infosys_fy24_annual", "nse_symbol": "INFY", "type": "annual", "period": "FY24", "pdf_url": "/data/filings/infosys_fy24.pdf"},
		{"_key": "hdfc_fy24_annual", "nse_symbol": "HDFCBANK", "type": "annual", "period": "FY24", "pdf_url": "/data/filings/hdfc_fy24.pdf"},
	}

	seedEdges = []map[string]any{
		{"_key": "reliance_has_reliance_fy24_annual", "_from": "companies/reliance", "_to": "filings/reliance_fy24_annual"},
		{"_key": "tcs_has_tcs_fy24_annual", "_from": "companies/tcs", "_to": "filings/tcs_fy24_annual"},
		{"_key": "infosys_has_infosys_fy24_annual", "_from": "companies/infosys", "_to": "filings/infosys_fy24_annual"},
		{"_key": "hdfc_has_hdfc_fy24_annual", "_from": "companies/hdfc", "_to": "filings/hdfc_fy24_annual"},
	}
)

// Seed inserts the development dataset, skipping documents that already
// exist. Intended for local environments; gated by config.
func (c *Client) Seed(ctx context.Context) error {
	inserts := []struct {
		collection string
		docs       []map[string]any
	}{
		{"companies", seedCompanies},
		{"filings", seedFilings},
		{"company_has_filing", seedEdges},
	}

	for _, ins := range inserts {
		col, err := c.db.Collection(ctx, ins.collection)
		if err != nil {
			return fmt.Errorf("opening collection %q: %w", ins.collection, err)
		}
		for _, doc := range ins.docs {
			key := doc["_key"].(string)
			exists, err := col.DocumentExists(ctx, key)
			if err != nil {
				return fmt.Errorf("checking %s/%s: %w", ins.collection, key, err)
			}
			if exists {
				continue
			}
			if _, err := col.CreateDocument(ctx, doc); err != nil {
				return fmt.Errorf("seeding %s/%s: %w", ins.collection, key, err)
			}
		}
	}

	slog.Info("Seed data ensured",
		"companies", len(seedCompanies), "filings", len(seedFilings))
	return nil
}
