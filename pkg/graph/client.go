// Package graph is the ArangoDB collaborator surface: the knowledge-graph
// collections (companies, filings, metrics) queried by the read-only API
// endpoints, and the chats collection backing the chat metadata store.
// Query execution against the graph is otherwise owned by the agent's tool
// servers, not by this process.
package graph

import (
	"context"
	"fmt"

	driver "github.com/arangodb/go-driver"
	arangohttp "github.com/arangodb/go-driver/http"
)

// Collections managed by EnsureSchema.
var (
	documentCollections = []string{"companies", "filings", "metrics", "documents", "chats"}
	edgeCollections     = []string{"company_has_filing", "filing_has_metric", "subsidiary", "competitor"}
)

// Config holds the ArangoDB connection settings.
type Config struct {
	URL      string
	Database string
	Username string
	Password string
}

// Client wraps a connection to the finsight database.
type Client struct {
	db driver.Database
}

// Connect opens the database, creating it if it does not exist yet.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	conn, err := arangohttp.NewConnection(arangohttp.ConnectionConfig{
		Endpoints: []string{cfg.URL},
	})
	if err != nil {
		return nil, fmt.Errorf("creating arango connection: %w", err)
	}

	client, err := driver.NewClient(driver.ClientConfig{
		Connection:     conn,
		Authentication: driver.BasicAuthentication(cfg.Username, cfg.Password),
	})
	if err != nil {
		return nil, fmt.Errorf("creating arango client: %w", err)
	}

	exists, err := client.DatabaseExists(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("checking database %q: %w", cfg.Database, err)
	}

	var db driver.Database
	if exists {
		db, err = client.Database(ctx, cfg.Database)
	} else {
		db, err = client.CreateDatabase(ctx, cfg.Database, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", cfg.Database, err)
	}

	return &Client{db: db}, nil
}

// EnsureSchema creates the document and edge collections plus the
// persistent indexes used by the read endpoints. Idempotent.
func (c *Client) EnsureSchema(ctx context.Context) error {
	for _, name := range documentCollections {
		if err := c.ensureCollection(ctx, name, driver.CollectionTypeDocument); err != nil {
			return err
		}
	}
	for _, name := range edgeCollections {
		if err := c.ensureCollection(ctx, name, driver.CollectionTypeEdge); err != nil {
			return err
		}
	}
	return c.ensureIndexes(ctx)
}

func (c *Client) ensureCollection(ctx context.Context, name string, typ driver.CollectionType) error {
	exists, err := c.db.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection %q: %w", name, err)
	}
	if exists {
		return nil
	}
	_, err = c.db.CreateCollection(ctx, name, &driver.CreateCollectionOptions{Type: typ})
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", name, err)
	}
	return nil
}

func (c *Client) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		collection string
		fields     []string
	}{
		{"companies", []string{"name"}},
		{"companies", []string{"nse_symbol"}},
		{"filings", []string{"nse_symbol"}},
		{"filings", []string{"period", "type"}},
	}
	for _, idx := range indexes {
		col, err := c.db.Collection(ctx, idx.collection)
		if err != nil {
			return fmt.Errorf("opening collection %q: %w", idx.collection, err)
		}
		if _, _, err := col.EnsurePersistentIndex(ctx, idx.fields, nil); err != nil {
			return fmt.Errorf("ensuring index on %s%v: %w", idx.collection, idx.fields, err)
		}
	}
	return nil
}

// Health pings the database (used by the gateway health check).
func (c *Client) Health(ctx context.Context) error {
	_, err := c.db.Info(ctx)
	return err
}
