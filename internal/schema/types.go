package schema

import (
	"strings"
	"time"

	"github.com/byerlikaya/SmartRAG-sub011/internal/dialect"
)

// Status reports the outcome of analyzing one database.
type Status int

const (
	StatusReady Status = iota
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "READY"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Column describes one table column.
type Column struct {
	Name         string
	Type         string
	Nullable     bool
	MaxLength    int // 0 when not applicable or unknown
	IsPrimaryKey bool
	IsForeignKey bool
}

// ForeignKey maps a local column to a referenced table.column. Referenced
// tables in a different database stay as literal strings.
type ForeignKey struct {
	Column           string
	ReferencedTable  string
	ReferencedColumn string
}

// Table describes one analyzed table.
type Table struct {
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
	RowCount    int64
	SampleRows  []string // pre-formatted text lines
}

// Column looks a column up case-insensitively.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// DatabaseSchema is the cached analysis of one configured database.
type DatabaseSchema struct {
	ID           string
	Dialect      dialect.Dialect
	DatabaseName string
	Tables       []Table
	Status       Status
	Error        string
	Summary      string // one-line AI-generated business summary, optional
	AnalyzedAt   time.Time
}

// Table looks a table up case-insensitively, returning the schema's exact
// entry.
func (s *DatabaseSchema) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].Name, name) {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// TableNames lists the analyzed table names in order.
func (s *DatabaseSchema) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i := range s.Tables {
		names[i] = s.Tables[i].Name
	}
	return names
}

// CrossDatabaseMapping is an operator-configured column alias between two
// independent databases, used when FK discovery cannot cross them.
type CrossDatabaseMapping struct {
	SourceDatabase string
	SourceTable    string
	SourceColumn   string
	TargetDatabase string
	TargetTable    string
	TargetColumn   string
}
