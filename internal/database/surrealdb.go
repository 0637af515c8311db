package database

import (
	"context"
	"fmt"
	"strings"

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

// Connect establishes a connection to SurrealDB
func (s *SurrealDB) Connect(ctx context.Context) error {
	endpoint := fmt.Sprintf("ws://%s:%s", s.config.Host, s.config.Port)

	db, err := surrealdb.FromEndpointURLString(ctx, endpoint)
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

	results, err := surrealdb.Query[interface{}](ctx, s.db, query, vars)
	if err != nil {
		return nil, classify(err.Error())
	}
	if results == nil {
		return nil, nil
	}

	output := make([]interface{}, 0, len(*results))
	var firstErr error
	for _, r := range *results {
		if r.Status != "OK" {
			msg := ""
			if r.Error != nil {
				msg = r.Error.Message
			}
			// statements cancelled by a failed transaction all report an
			// error; the one carrying an abort reason takes precedence
			if strings.Contains(msg, abortPrefix) {
				return nil, classify(msg)
			}
			if firstErr == nil {
				firstErr = classify(msg)
			}
			continue
		}
		output = append(output, map[string]interface{}{
			"status": r.Status,
			"result": r.Result,
		})
	}
	if firstErr != nil {
		return nil, firstErr
	}

	return output, nil
}

// classify maps a SurrealDB error message onto the package sentinels
func classify(msg string) error {
	switch {
	case strings.Contains(msg, abortPrefix):
		return fmt.Errorf("%w: %s", ErrAborted, msg)
	case strings.Contains(msg, "already contains"), strings.Contains(msg, "already exists"):
		return fmt.Errorf("%w: %s", ErrDuplicate, msg)
	case msg == "":
		return ErrQuery
	}
	return fmt.Errorf("%w: %s", ErrQuery, msg)
}

// QueryOne executes a query and returns the first record of the first statement
func (s *SurrealDB) QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error) {
	results, err := s.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return firstRecord(results)
}

// firstRecord unwraps the {status: "OK", result: [...]} envelope
func firstRecord(results []interface{}) (interface{}, error) {
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
			// scalar results (RETURN, count) come back unwrapped
			if resp["result"] == nil {
				return nil, ErrNotFound
			}
			return resp["result"], nil
		}
	}

	return first, nil
}

// Execute runs a query without returning results
func (s *SurrealDB) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	_, err := s.Query(ctx, query, vars)
	return err
}

// BeginTx starts a batch transaction
func (s *SurrealDB) BeginTx(ctx context.Context) (Transaction, error) {
	if s.db == nil {
		return nil, ErrConnection
	}
	return &batchTx{db: s, ctx: ctx, builder: NewTxBuilder()}, nil
}

// batchTx queues statements and sends them as one BEGIN/COMMIT block
type batchTx struct {
	db        Database
	ctx       context.Context
	builder   *TxBuilder
	committed bool
}

func (t *batchTx) Execute(_ context.Context, query string, vars map[string]interface{}) error {
	t.builder.Add(query, vars)
	return nil
}

func (t *batchTx) Commit() error {
	if t.committed {
		return nil
	}
	if _, err := ExecuteTransaction(t.ctx, t.db, t.builder); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	t.committed = true
	return nil
}

func (t *batchTx) Rollback() error {
	t.builder = NewTxBuilder()
	return nil
}
