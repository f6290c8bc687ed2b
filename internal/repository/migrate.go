package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	"github.com/joseph-ayodele/drmparse/internal/common"
)

const parseJobsTable = "parse_jobs"

var textType = map[string]string{dialect.Postgres: "text"}

var (
	// ParseJobsColumns holds the columns for the "parse_jobs" table.
	ParseJobsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "source_path", Type: field.TypeString, SchemaType: textType},
		{Name: "content_hash", Type: field.TypeString, Size: 64},
		{Name: "status", Type: field.TypeString, Size: 16},
		{Name: "model_name", Type: field.TypeString, Nullable: true},
		{Name: "extracted_json", Type: field.TypeString, Nullable: true, SchemaType: textType},
		{Name: "uniqueness_key", Type: field.TypeString, Size: 64, Nullable: true},
		{Name: "error_message", Type: field.TypeString, Nullable: true, SchemaType: textType},
		{Name: "started_at", Type: field.TypeString, Size: 40},
		{Name: "finished_at", Type: field.TypeString, Size: 40, Nullable: true},
	}
	// ParseJobsTable holds the schema information for the "parse_jobs" table.
	ParseJobsTable = &schema.Table{
		Name:       parseJobsTable,
		Columns:    ParseJobsColumns,
		PrimaryKey: []*schema.Column{ParseJobsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "parsejob_uniqueness_key",
				Unique:  false,
				Columns: []*schema.Column{ParseJobsColumns[6]},
			},
			{
				Name:    "parsejob_content_hash",
				Unique:  false,
				Columns: []*schema.Column{ParseJobsColumns[2]},
			},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		ParseJobsTable,
	}
)

// Migrate creates or updates the parse_jobs table and its indexes.
func (db *DB) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(db.Driver)
	if err != nil {
		return fmt.Errorf("%w: migrate: %v", common.ErrDatabase, err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		db.logger.Error("migration failed", "error", err)
		return fmt.Errorf("%w: migrate: %v", common.ErrDatabase, err)
	}
	db.logger.Info("database migrated", "tables", len(Tables))
	return nil
}
