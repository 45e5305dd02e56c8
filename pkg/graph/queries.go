package graph

import (
	"context"
	"fmt"

	driver "github.com/arangodb/go-driver"
)

// ListCompanies returns every company document in the knowledge graph.
func (c *Client) ListCompanies(ctx context.Context) ([]map[string]any, error) {
	return c.queryAll(ctx, "FOR c IN companies RETURN c", nil)
}

// ListFilings returns the filings linked to a company via the
// company_has_filing edge collection.
func (c *Client) ListFilings(ctx context.Context, companyID string) ([]map[string]any, error) {
	query := `
	FOR c IN companies
	  FILTER c._key == @company_id
	  FOR f IN 1..1 OUTBOUND c company_has_filing
	    RETURN f
	`
	return c.queryAll(ctx, query, map[string]any{"company_id": companyID})
}

func (c *Client) queryAll(ctx context.Context, query string, bindVars map[string]any) ([]map[string]any, error) {
	cursor, err := c.db.Query(ctx, query, bindVars)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer cursor.Close()

	results := []map[string]any{}
	for cursor.HasMore() {
		var doc map[string]any
		if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
			return nil, fmt.Errorf("reading query result: %w", err)
		}
		results = append(results, doc)
	}
	return results, nil
}

// queryOne runs a query expected to return a single scalar.
func queryOne[T any](ctx context.Context, db driver.Database, query string, bindVars map[string]any) (T, error) {
	var out T
	cursor, err := db.Query(ctx, query, bindVars)
	if err != nil {
		return out, fmt.Errorf("executing query: %w", err)
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return out, nil
	}
	if _, err := cursor.ReadDocument(ctx, &out); err != nil {
		return out, fmt.Errorf("reading query result: %w", err)
	}
	return out, nil
}
