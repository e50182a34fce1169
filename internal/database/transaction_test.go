package database

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestTxBuilder_NamespacesVariables(t *testing.T) {
	tb := NewTxBuilder()
	m1 := tb.Add("UPDATE $id SET status = $status", map[string]interface{}{"id": "bids:1", "status": "accepted"})
	m2 := tb.Add("UPDATE $id SET status = $status", map[string]interface{}{"id": "bids:2", "status": "rejected"})

	query, vars := tb.Build()

	if !strings.HasPrefix(query, "BEGIN TRANSACTION;\n") || !strings.HasSuffix(query, "COMMIT TRANSACTION;") {
		t.Fatalf("query not wrapped in transaction: %q", query)
	}
	if m1["id"] == m2["id"] {
		t.Fatalf("expected distinct variable names, got %q twice", m1["id"])
	}
	if vars[m1["status"]] != "accepted" || vars[m2["status"]] != "rejected" {
		t.Errorf("unexpected vars: %v", vars)
	}
	if strings.Contains(query, "$id ") || strings.Contains(query, "$status;") {
		t.Errorf("original variable names left in query: %q", query)
	}
}

func TestTxBuilder_PrefixVariableNames(t *testing.T) {
	tb := NewTxBuilder()
	m := tb.Add("SELECT * FROM bids WHERE id = $id AND product IN $id_list", map[string]interface{}{
		"id":      "bids:1",
		"id_list": []string{"products:1"},
	})

	query, _ := tb.Build()
	if !strings.Contains(query, "$"+m["id_list"]) {
		t.Errorf("expected %s in query, got %q", m["id_list"], query)
	}
	if !strings.Contains(query, "$"+m["id"]+" AND") {
		t.Errorf("expected %s in query, got %q", m["id"], query)
	}
}

func TestTxBuilder_EmptyBuild(t *testing.T) {
	query, vars := NewTxBuilder().Build()
	if query != "" || vars != nil {
		t.Errorf("expected empty build, got %q %v", query, vars)
	}
}

type recordingDB struct {
	Database
	executed string
	vars     map[string]interface{}
}

func (r *recordingDB) Execute(_ context.Context, query string, vars map[string]interface{}) error {
	r.executed = query
	r.vars = vars
	return nil
}

func TestAtomicBatch_Execute(t *testing.T) {
	db := &recordingDB{}
	batch := NewAtomicBatch().
		Add("UPDATE type::record($id) SET status = 'sold'", map[string]interface{}{"id": "products:1"}).
		Add("UPDATE type::record($id) SET status = 'completed'", map[string]interface{}{"id": "escrow_transactions:1"})

	if batch.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", batch.Len())
	}
	if err := batch.Execute(context.Background(), db); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if strings.Count(db.executed, "UPDATE") != 2 {
		t.Errorf("expected two statements, got %q", db.executed)
	}
	if len(db.vars) != 2 {
		t.Errorf("expected 2 vars, got %v", db.vars)
	}
}

func TestFirstRecord(t *testing.T) {
	rec := map[string]interface{}{"id": "products:1"}
	got, err := FirstRecord([]interface{}{map[string]interface{}{"status": "OK", "result": []interface{}{rec}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.(map[string]interface{})["id"] != "products:1" {
		t.Errorf("unexpected record %v", got)
	}

	if _, err := FirstRecord([]interface{}{map[string]interface{}{"status": "OK", "result": []interface{}{}}}); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := FirstRecord(nil); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for nil results, got %v", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"Database index `profiles_username` already contains 'alice'", ErrDuplicate},
		{"websocket: close sent", ErrConnection},
		{"Parse error: unexpected token", ErrQuery},
	}
	for _, tt := range tests {
		err := classifyError(tt.msg)
		if !errors.Is(err, tt.want) {
			t.Errorf("classifyError(%q) = %v, want %v", tt.msg, err, tt.want)
		}
	}
}

func TestConfig_Endpoint(t *testing.T) {
	if got := (Config{Host: "db", Port: "8000"}).Endpoint(); got != "ws://db:8000" {
		t.Errorf("Endpoint() = %q", got)
	}
	if got := (Config{Host: "db", Port: "443", TLS: true}).Endpoint(); got != "wss://db:443" {
		t.Errorf("Endpoint() = %q", got)
	}
}
