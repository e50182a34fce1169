package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// TxBuilder builds atomic transaction queries with automatic variable namespacing,
// so statements written independently can share a block without clashing.
//
// Two statements that both use $product become $v1_product and $v2_product.
type TxBuilder struct {
	statements []string
	vars       map[string]interface{}
	varCounter int
}

// NewTxBuilder creates a new transaction builder
func NewTxBuilder() *TxBuilder {
	return &TxBuilder{
		statements: make([]string, 0),
		vars:       make(map[string]interface{}),
	}
}

// Add appends a statement, renaming its variables. It returns the mapping
// from original to namespaced variable names.
func (tb *TxBuilder) Add(query string, vars map[string]interface{}) map[string]string {
	// Longest names first so $id never rewrites part of $id_list.
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	varMapping := make(map[string]string, len(names))
	newQuery := query
	for _, name := range names {
		tb.varCounter++
		newName := fmt.Sprintf("v%d_%s", tb.varCounter, name)
		newQuery = strings.ReplaceAll(newQuery, "$"+name, "$"+newName)
		tb.vars[newName] = vars[name]
		varMapping[name] = newName
	}

	tb.statements = append(tb.statements, newQuery)
	return varMapping
}

// Len returns the number of queued statements
func (tb *TxBuilder) Len() int {
	return len(tb.statements)
}

// Build returns the complete transaction query and merged variables
func (tb *TxBuilder) Build() (string, map[string]interface{}) {
	if len(tb.statements) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("BEGIN TRANSACTION;\n")
	for _, stmt := range tb.statements {
		sb.WriteString(stmt)
		if !strings.HasSuffix(strings.TrimSpace(stmt), ";") {
			sb.WriteString(";")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("COMMIT TRANSACTION;")

	return sb.String(), tb.vars
}

// AtomicBatch collects statements that must succeed or fail together
type AtomicBatch struct {
	builder *TxBuilder
}

// NewAtomicBatch creates a new atomic batch
func NewAtomicBatch() *AtomicBatch {
	return &AtomicBatch{builder: NewTxBuilder()}
}

// Add adds a query to the batch
func (ab *AtomicBatch) Add(query string, vars map[string]interface{}) *AtomicBatch {
	ab.builder.Add(query, vars)
	return ab
}

// Execute runs all queries as a single transaction
func (ab *AtomicBatch) Execute(ctx context.Context, db Database) error {
	query, vars := ab.builder.Build()
	if query == "" {
		return nil
	}
	return db.Execute(ctx, query, vars)
}

// Len returns the number of queries in the batch
func (ab *AtomicBatch) Len() int {
	return ab.builder.Len()
}
