package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/forgo/rotativos/api/internal/database"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// isUniqueConstraintError checks if an error is a unique index violation
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, database.ErrDuplicate) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "already contains") ||
		strings.Contains(errStr, "already exists")
}

// createdRecord holds the server-assigned fields of a CREATE
type createdRecord struct {
	ID        string
	CreatedOn time.Time
	UpdatedOn time.Time
}

func extractCreatedRecord(result []interface{}) (*createdRecord, error) {
	rows := extractRecords(result)
	if len(rows) == 0 {
		return nil, errors.New("no result returned")
	}

	record := &createdRecord{ID: convertSurrealID(rows[0]["id"])}
	if t := getTime(rows[0], "created_on"); t != nil {
		record.CreatedOn = *t
	}
	if t := getTime(rows[0], "updated_on"); t != nil {
		record.UpdatedOn = *t
	}
	return record, nil
}

// convertSurrealID renders a SurrealDB record id as "table:id"
func convertSurrealID(id interface{}) string {
	if id == nil {
		return ""
	}
	if str, ok := id.(string); ok {
		return str
	}

	if rid, ok := id.(models.RecordID); ok {
		return fmt.Sprintf("%s:%v", rid.Table, rid.ID)
	}
	if rid, ok := id.(*models.RecordID); ok && rid != nil {
		return fmt.Sprintf("%s:%v", rid.Table, rid.ID)
	}

	// {"tb": "event", "id": {"String": "x"}} and similar
	if m, ok := id.(map[string]interface{}); ok {
		tb := ""
		if t, ok := m["tb"].(string); ok {
			tb = t
		} else if t, ok := m["Table"].(string); ok {
			tb = t
		}
		idPart := ""
		if idVal, ok := m["id"]; ok {
			idPart = extractIDValue(idVal)
		} else if idVal, ok := m["ID"]; ok {
			idPart = extractIDValue(idVal)
		}
		if tb != "" && idPart != "" {
			return tb + ":" + idPart
		}
	}

	return fmt.Sprintf("%v", id)
}

func extractIDValue(val interface{}) string {
	if str, ok := val.(string); ok {
		return str
	}
	if m, ok := val.(map[string]interface{}); ok {
		if s, ok := m["String"].(string); ok {
			return s
		}
	}
	return fmt.Sprintf("%v", val)
}

// getRecordID reads a record link field as "table:id"
func getRecordID(m map[string]interface{}, key string) string {
	return convertSurrealID(m[key])
}

// getRecordIDPtr reads an optional record link field
func getRecordIDPtr(m map[string]interface{}, key string) *string {
	if m[key] == nil {
		return nil
	}
	id := convertSurrealID(m[key])
	if id == "" {
		return nil
	}
	return &id
}

// parseTime parses time from various formats
func parseTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
	case models.CustomDateTime:
		return t.Time
	case *models.CustomDateTime:
		if t != nil {
			return t.Time
		}
	}
	return time.Time{}
}

// formatTime renders t for a <datetime> cast
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// extractRecords flattens the {status, result} envelopes of every statement
// into plain rows
func extractRecords(result []interface{}) []map[string]interface{} {
	rows := make([]map[string]interface{}, 0)
	for _, res := range result {
		if resp, ok := res.(map[string]interface{}); ok {
			if resultData, ok := resp["result"].([]interface{}); ok {
				for _, item := range resultData {
					if data, ok := item.(map[string]interface{}); ok {
						rows = append(rows, data)
					}
				}
				continue
			}
			if _, hasStatus := resp["status"]; hasStatus {
				if data, ok := resp["result"].(map[string]interface{}); ok {
					rows = append(rows, data)
				}
				continue
			}
			rows = append(rows, resp)
		}
	}
	return rows
}

// WithTransaction executes a function within a transaction context
// If the function returns an error, the transaction is rolled back
func WithTransaction(ctx context.Context, db database.Database, fn func(tx database.Transaction) error) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// extractCountValue converts various numeric types to int
func extractCountValue(v interface{}) int {
	switch c := v.(type) {
	case float64:
		return int(c)
	case float32:
		return int(c)
	case int:
		return c
	case int64:
		return int(c)
	case uint64:
		return int(c)
	case int32:
		return int(c)
	case uint32:
		return int(c)
	}
	return 0
}

// queryCount runs a "SELECT count() AS count ... GROUP ALL" style query
func queryCount(ctx context.Context, db database.Database, query string, vars map[string]interface{}) (int, error) {
	result, err := db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	if data, ok := result.(map[string]interface{}); ok {
		return getInt(data, "count"), nil
	}
	return extractCountValue(result), nil
}

// getString extracts a string value from a map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// getStringPtr extracts an optional string value from a map
func getStringPtr(m map[string]interface{}, key string) *string {
	if v, ok := m[key].(string); ok && v != "" {
		return &v
	}
	return nil
}

// getInt extracts an int value from a map
func getInt(m map[string]interface{}, key string) int {
	return extractCountValue(m[key])
}

// getIntPtr extracts an optional int value from a map
func getIntPtr(m map[string]interface{}, key string) *int {
	if m[key] == nil {
		return nil
	}
	switch m[key].(type) {
	case float64, float32, int, int64, uint64, int32, uint32:
		v := extractCountValue(m[key])
		return &v
	}
	return nil
}

// getFloat extracts a float value from a map
func getFloat(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int, int64, uint64, int32, uint32:
		return float64(extractCountValue(v))
	}
	return 0
}

// getBool extracts a bool value from a map
func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

// getTime extracts a time value from a map
func getTime(m map[string]interface{}, key string) *time.Time {
	if m[key] == nil {
		return nil
	}
	t := parseTime(m[key])
	if t.IsZero() {
		return nil
	}
	return &t
}

// getMap extracts a nested object from a map
func getMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

// getIntMap extracts an object of counters, such as weekend uses per month
func getIntMap(m map[string]interface{}, key string) map[string]int {
	out := make(map[string]int)
	for k, v := range getMap(m, key) {
		out[k] = extractCountValue(v)
	}
	return out
}

// ptrToNone unwraps an optional value. Queries bind it as `$x ?? NONE` so a
// nil pointer leaves the field unset rather than NULL.
func ptrToNone[T any](v *T) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
