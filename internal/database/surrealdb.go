package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
)

// SurrealDB implements the Database interface for SurrealDB
type SurrealDB struct {
	db     *surrealdb.DB
	config Config
}

// NewSurrealDB creates a new SurrealDB instance
func NewSurrealDB(cfg Config) *SurrealDB {
	return &SurrealDB{
		config: cfg,
	}
}

// Endpoint returns the websocket URL used to reach SurrealDB
func (c Config) Endpoint() string {
	scheme := "ws"
	if c.TLS {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%s", scheme, c.Host, c.Port)
}

// Connect establishes a connection to SurrealDB
func (s *SurrealDB) Connect(ctx context.Context) error {
	db, err := surrealdb.FromEndpointURLString(ctx, s.config.Endpoint())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	_, err = db.SignIn(ctx, &surrealdb.Auth{
		Username: s.config.User,
		Password: s.config.Password,
	})
	if err != nil {
		_ = db.Close(ctx)
		return fmt.Errorf("%w: signin failed: %v", ErrConnection, err)
	}

	if err := db.Use(ctx, s.config.Namespace, s.config.Database); err != nil {
		_ = db.Close(ctx)
		return fmt.Errorf("%w: use failed: %v", ErrConnection, err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SurrealDB) Close() error {
	if s.db != nil {
		return s.db.Close(context.Background())
	}
	return nil
}

// Ping checks the database connection
func (s *SurrealDB) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrConnection
	}
	if _, err := s.db.Version(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Query executes a query and returns one {status, result} map per statement
func (s *SurrealDB) Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
	if s.db == nil {
		return nil, ErrConnection
	}

	start := time.Now()
	output, err := s.run(ctx, query, vars)
	s.observe("query", start, err)
	return output, err
}

func (s *SurrealDB) run(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
	results, err := surrealdb.Query[interface{}](ctx, s.db, query, vars)
	if err != nil {
		return nil, classifyError(err.Error())
	}
	if results == nil {
		return nil, nil
	}

	output := make([]interface{}, 0, len(*results))
	for _, r := range *results {
		if r.Status != "OK" {
			if r.Error != nil {
				return nil, classifyError(r.Error.Message)
			}
			return nil, ErrQuery
		}
		output = append(output, map[string]interface{}{
			"status": r.Status,
			"result": r.Result,
		})
	}
	return output, nil
}

// QueryOne executes a query and returns a single result
func (s *SurrealDB) QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error) {
	results, err := s.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return FirstRecord(results)
}

// Execute runs a query without returning results
func (s *SurrealDB) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	_, err := s.Query(ctx, query, vars)
	return err
}

// BeginTx starts a new batched transaction
func (s *SurrealDB) BeginTx(ctx context.Context) (Transaction, error) {
	if s.db == nil {
		return nil, ErrConnection
	}
	return &SurrealTransaction{
		owner:   s,
		ctx:     ctx,
		builder: NewTxBuilder(),
	}, nil
}

func (s *SurrealDB) observe(op string, start time.Time, err error) {
	if s.config.Observer != nil {
		s.config.Observer(op, time.Since(start), err)
	}
}

// SurrealTransaction implements Transaction for SurrealDB
type SurrealTransaction struct {
	owner     *SurrealDB
	ctx       context.Context
	builder   *TxBuilder
	committed bool
}

// Execute queues a statement; nothing is sent until Commit
func (t *SurrealTransaction) Execute(_ context.Context, query string, vars map[string]interface{}) error {
	if t.committed {
		return fmt.Errorf("%w: transaction already committed", ErrQuery)
	}
	t.builder.Add(query, vars)
	return nil
}

// Commit sends all queued statements as one atomic block
func (t *SurrealTransaction) Commit() error {
	if t.committed {
		return nil
	}
	query, vars := t.builder.Build()
	if query == "" {
		t.committed = true
		return nil
	}

	start := time.Now()
	_, err := t.owner.run(t.ctx, query, vars)
	t.owner.observe("commit", start, err)
	if err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	t.committed = true
	return nil
}

// Rollback discards queued statements
func (t *SurrealTransaction) Rollback() error {
	t.builder = NewTxBuilder()
	return nil
}

// FirstRecord unwraps the first record of the first statement result.
// Scalar results are returned as-is.
func FirstRecord(results []interface{}) (interface{}, error) {
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	first := results[0]
	if resp, ok := first.(map[string]interface{}); ok {
		if status, ok := resp["status"].(string); ok && status == "OK" {
			if resultData, ok := resp["result"].([]interface{}); ok {
				if len(resultData) == 0 {
					return nil, ErrNotFound
				}
				return resultData[0], nil
			}
			if resp["result"] == nil {
				return nil, ErrNotFound
			}
			return resp["result"], nil
		}
	}
	return first, nil
}

// classifyError maps SurrealDB error text onto the package sentinels
func classifyError(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "already contains"), strings.Contains(lower, "already exists"):
		return fmt.Errorf("%w: %s", ErrDuplicate, msg)
	case strings.Contains(lower, "connection"), strings.Contains(lower, "websocket"):
		return fmt.Errorf("%w: %s", ErrConnection, msg)
	default:
		return fmt.Errorf("%w: %s", ErrQuery, msg)
	}
}
