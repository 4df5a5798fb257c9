package database

import (
	"fmt"
	"time"
)

// TableCreator handles the creation of the lead log schema.
type TableCreator struct{}

// NewTableCreator creates a new TableCreator.
func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

// CreateSchema executes all necessary queries to build the tables and indexes.
// Every statement is idempotent.
func (tc *TableCreator) CreateSchema(db *DB) error {
	start := time.Now()
	for _, tableSQL := range tables {
		if _, err := db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	db.CheckAndLogSlowQuery("SCHEMA_CREATE", time.Since(start))
	return nil
}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS leads (id TEXT PRIMARY KEY, provider TEXT NOT NULL, form_id TEXT NOT NULL DEFAULT '', attribution TEXT NOT NULL, created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
	`CREATE TABLE IF NOT EXISTS pii_risks (id TEXT PRIMARY KEY, page_url TEXT NOT NULL DEFAULT '', created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_leads_provider ON leads(provider)`,
	`CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_pii_risks_created_at ON pii_risks(created_at)`,
}
