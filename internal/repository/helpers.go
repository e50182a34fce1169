package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// isUniqueConstraintError checks if an error is a unique constraint violation
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, database.ErrDuplicate) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unique") ||
		strings.Contains(errStr, "duplicate") ||
		strings.Contains(errStr, "already exists") ||
		strings.Contains(errStr, "already contains")
}

// convertSurrealID converts a SurrealDB ID (which may be a complex object) to a string
func convertSurrealID(id interface{}) string {
	switch v := id.(type) {
	case string:
		return v
	case models.RecordID:
		return fmt.Sprintf("%s:%v", v.Table, v.ID)
	case *models.RecordID:
		if v != nil {
			return fmt.Sprintf("%s:%v", v.Table, v.ID)
		}
		return ""
	case map[string]interface{}:
		tb, _ := v["tb"].(string)
		if tb == "" {
			tb, _ = v["Table"].(string)
		}
		idVal, ok := v["id"]
		if !ok {
			idVal = v["ID"]
		}
		idPart := extractIDValue(idVal)
		if tb != "" && idPart != "" {
			return tb + ":" + idPart
		}
		return idPart
	}
	return fmt.Sprintf("%v", id)
}

// extractIDValue extracts the ID value which may be nested
func extractIDValue(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]interface{}:
		if s, ok := v["String"].(string); ok {
			return s
		}
	}
	return fmt.Sprintf("%v", val)
}

// normalizeValue flattens driver types into JSON-friendly values:
// record IDs become "table:id" and datetimes become time.Time.
func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case models.RecordID, *models.RecordID:
		return convertSurrealID(t)
	case models.CustomDateTime:
		return t.Time
	case *models.CustomDateTime:
		if t == nil {
			return nil
		}
		return t.Time
	case map[string]interface{}:
		if _, hasTB := t["tb"]; hasTB && len(t) == 2 {
			if _, hasID := t["id"]; hasID {
				return convertSurrealID(t)
			}
		}
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalizeValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	}
	return v
}

// rowMap normalizes one SurrealDB row and renames record link fields
// (database name -> json name) so it unmarshals into a model.
func rowMap(raw interface{}, links map[string]string) (map[string]interface{}, error) {
	if raw == nil {
		return nil, database.ErrNotFound
	}
	data, ok := normalizeValue(raw).(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}
	for from, to := range links {
		if v, ok := data[from]; ok {
			data[to] = v
			delete(data, from)
		}
	}
	return data, nil
}

// decodeRow converts a SurrealDB row into T
func decodeRow[T any](raw interface{}, links map[string]string) (*T, map[string]interface{}, error) {
	data, err := rowMap(raw, links)
	if err != nil {
		return nil, nil, err
	}
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, nil, err
	}
	var out T
	if err := json.Unmarshal(jsonBytes, &out); err != nil {
		return nil, nil, err
	}
	return &out, data, nil
}

// statementRows returns the rows of statement i in a multi-statement result
func statementRows(results []interface{}, i int) []interface{} {
	if i >= len(results) {
		return nil
	}
	if resp, ok := results[i].(map[string]interface{}); ok {
		if _, hasStatus := resp["status"]; hasStatus {
			if rows, ok := resp["result"].([]interface{}); ok {
				return rows
			}
			if resp["result"] == nil {
				return nil
			}
			return []interface{}{resp["result"]}
		}
	}
	return []interface{}{results[i]}
}

// decodeRows converts every row of the first statement into T
func decodeRows[T any](results []interface{}, links map[string]string) ([]*T, error) {
	rows := statementRows(results, 0)
	out := make([]*T, 0, len(rows))
	for _, row := range rows {
		item, _, err := decodeRow[T](row, links)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// queryOne runs a query expected to return one row, returning nil, nil when none is found
func queryOne[T any](ctx context.Context, db database.Database, query string, vars map[string]interface{}, links map[string]string) (*T, map[string]interface{}, error) {
	result, err := db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	item, data, err := decodeRow[T](result, links)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return item, data, nil
}

// queryMany runs a query and decodes the rows of its first statement
func queryMany[T any](ctx context.Context, db database.Database, query string, vars map[string]interface{}, links map[string]string) ([]*T, error) {
	result, err := db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return decodeRows[T](result, links)
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
	case uint32:
		return int(c)
	}
	return 0
}

// extractInt64 converts a numeric value to int64
func extractInt64(v interface{}) int64 {
	switch c := v.(type) {
	case float64:
		return int64(c)
	case int:
		return int64(c)
	case int64:
		return c
	case uint64:
		return int64(c)
	}
	return 0
}

// groupCounts reads `SELECT field, count() ... GROUP BY field` rows
func groupCounts(results []interface{}, field string) map[string]int {
	out := make(map[string]int)
	for _, row := range statementRows(results, 0) {
		m, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		key, _ := m[field].(string)
		out[key] = extractCountValue(m["count"])
	}
	return out
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

// optional passes nil for absent values so the query's NONE checks apply
func optional[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

// formatTime formats a time for a <datetime> cast
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// createdID pulls the id of the record returned by a CREATE
func createdID(results []interface{}) (string, time.Time, error) {
	rows := statementRows(results, 0)
	if len(rows) == 0 {
		return "", time.Time{}, errors.New("no result returned")
	}
	data, ok := normalizeValue(rows[0]).(map[string]interface{})
	if !ok {
		return "", time.Time{}, errors.New("unexpected result format")
	}
	created, _ := data["created_on"].(time.Time)
	return convertSurrealID(data["id"]), created, nil
}

// setClause builds a SET list that only names the fields that have values,
// so optional fields stay NONE instead of NULL.
type setClause struct {
	parts []string
	vars  map[string]interface{}
}

func newSetClause(vars map[string]interface{}) *setClause {
	if vars == nil {
		vars = make(map[string]interface{})
	}
	return &setClause{vars: vars}
}

// set binds field = $field
func (s *setClause) set(field string, value interface{}) {
	s.parts = append(s.parts, field+" = $"+field)
	s.vars[field] = value
}

// setTime binds field = <datetime>$field
func (s *setClause) setTime(field string, t time.Time) {
	s.parts = append(s.parts, field+" = <datetime>$"+field)
	s.vars[field] = formatTime(t)
}

// expr appends a raw assignment such as "updated_on = time::now()"
func (s *setClause) expr(assignment string) {
	s.parts = append(s.parts, assignment)
}

func (s *setClause) String() string { return strings.Join(s.parts, ", ") }

// setIfPresent binds field only when p is non-nil
func setIfPresent[T any](s *setClause, field string, p *T) {
	if p != nil {
		s.set(field, *p)
	}
}

// setOrClear binds a non-empty *p and clears the field to NONE for an empty one.
// A nil p leaves the field untouched.
func setOrClear(s *setClause, field string, p *string) {
	if p == nil {
		return
	}
	if *p == "" {
		s.expr(field + " = NONE")
		return
	}
	s.set(field, *p)
}

// setNullable binds field when p is non-nil and clears it to NONE otherwise
func setNullable[T any](s *setClause, field string, p *T) {
	if p == nil {
		s.expr(field + " = NONE")
		return
	}
	s.set(field, *p)
}

// setNullableTime is setNullable for datetimes
func setNullableTime(s *setClause, field string, t *time.Time) {
	if t == nil {
		s.expr(field + " = NONE")
		return
	}
	s.setTime(field, *t)
}

// stringsOrEmpty keeps arrays as [] rather than NONE
func stringsOrEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// toObject converts a struct into a plain map for storage as a nested object
func toObject(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
