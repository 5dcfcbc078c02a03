package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byerlikaya/SmartRAG-sub011/internal/config"
	"github.com/byerlikaya/SmartRAG-sub011/internal/dialect"
	"github.com/byerlikaya/SmartRAG-sub011/internal/executor"
	"github.com/byerlikaya/SmartRAG-sub011/internal/intent"
	"github.com/byerlikaya/SmartRAG-sub011/internal/schema"
)

func crmResult() executor.DbResult {
	return executor.DbResult{
		DatabaseID: "crm",
		SQL:        "SELECT Id, Name, CustomerId FROM Orders",
		Columns:    []string{"Id", "Name", "CustomerId"},
		Rows: [][]string{
			{"1", "Widget order", "10"},
			{"2", "Gadget order", "11"},
		},
		RowCount: 2,
		Success:  true,
	}
}

func billingResult() executor.DbResult {
	return executor.DbResult{
		DatabaseID: "billing",
		SQL:        "SELECT CustomerId, Total FROM Invoices",
		Columns:    []string{"CustomerId", "Total"},
		Rows: [][]string{
			{"10", "99.50"},
			{"10", "12.00"},
			{"12", "5.00"},
		},
		RowCount: 3,
		Success:  true,
	}
}

func TestDiscoverJoinPrefersMapping(t *testing.T) {
	mappings := []schema.CrossDatabaseMapping{{
		SourceDatabase: "crm", SourceTable: "Orders", SourceColumn: "Id",
		TargetDatabase: "billing", TargetTable: "Invoices", TargetColumn: "Total",
	}}
	plan := discoverJoin([]executor.DbResult{crmResult(), billingResult()}, mappings)
	require.NotNil(t, plan)
	assert.Equal(t, "mapping", plan.source)
	assert.Equal(t, "Id", plan.leftCol)
	assert.Equal(t, "Total", plan.rightCol)
}

func TestDiscoverJoinFallsBackToCommonIDColumn(t *testing.T) {
	plan := discoverJoin([]executor.DbResult{crmResult(), billingResult()}, nil)
	require.NotNil(t, plan)
	assert.Equal(t, "common_id", plan.source)
	assert.Equal(t, "CustomerId", plan.leftCol)
	assert.Equal(t, "CustomerId", plan.rightCol)
}

func TestInnerJoinOnCommonColumn(t *testing.T) {
	results := []executor.DbResult{crmResult(), billingResult()}
	plan := discoverJoin(results, nil)
	require.NotNil(t, plan)

	joined := innerJoin(results, plan)
	require.NotNil(t, joined)
	assert.Equal(t, "crm", joined.LeftDatabase)
	assert.Equal(t, "billing", joined.RightDatabase)

	// Only CustomerId 10 appears on both sides; each row joins at most once.
	require.Len(t, joined.Rows, 1)
	assert.Equal(t, []string{"1", "Widget order", "10", "10", "99.50"}, joined.Rows[0])

	// The shared column name is qualified on the right side.
	assert.Equal(t, []string{"Id", "Name", "CustomerId", "billing.CustomerId", "Total"}, joined.Columns)
}

func TestInnerJoinNeverExceedsInputRowCounts(t *testing.T) {
	left := executor.DbResult{
		DatabaseID: "a", Success: true, RowCount: 1,
		Columns: []string{"CustomerId"},
		Rows:    [][]string{{"42"}},
	}
	right := executor.DbResult{
		DatabaseID: "b", Success: true, RowCount: 3,
		Columns: []string{"CustomerId", "Total"},
		Rows:    [][]string{{"42", "1.00"}, {"42", "2.00"}, {"42", "3.00"}},
	}
	joined := innerJoin([]executor.DbResult{left, right},
		&joinPlan{left: 0, right: 1, leftCol: "CustomerId", rightCol: "CustomerId"})
	require.NotNil(t, joined)
	assert.Len(t, joined.Rows, 1, "duplicate keys must not fan the join out past the smaller input")
}

func TestInnerJoinNormalizesKeys(t *testing.T) {
	left := executor.DbResult{
		DatabaseID: "a", Success: true, RowCount: 1,
		Columns: []string{"UserId"},
		Rows:    [][]string{{" 10 "}},
	}
	right := executor.DbResult{
		DatabaseID: "b", Success: true, RowCount: 1,
		Columns: []string{"UserId", "Email"},
		Rows:    [][]string{{"10.0", "a@example.com"}},
	}
	joined := innerJoin([]executor.DbResult{left, right},
		&joinPlan{left: 0, right: 1, leftCol: "UserId", rightCol: "UserId"})
	require.NotNil(t, joined)
	assert.Len(t, joined.Rows, 1, "whitespace and numeric formatting must not break the join")
}

func TestValueOverlapJoinRequiresMinimumIntersection(t *testing.T) {
	left := executor.DbResult{
		DatabaseID: "a", Success: true,
		Columns: []string{"BuyerId"},
		Rows:    [][]string{{"x1"}, {"x2"}, {"x3"}},
	}
	right := executor.DbResult{
		DatabaseID: "b", Success: true,
		Columns: []string{"ClientId"},
		Rows:    [][]string{{"x1"}, {"x2"}, {"y9"}},
	}
	plan := valueOverlapJoin([]executor.DbResult{left, right})
	require.NotNil(t, plan)
	assert.Equal(t, "value_overlap", plan.source)

	right.Rows = [][]string{{"x1"}, {"y8"}, {"y9"}}
	assert.Nil(t, valueOverlapJoin([]executor.DbResult{left, right}),
		"a single shared value is not enough")
}

func TestValueOverlapJoinIgnoresNonIDColumns(t *testing.T) {
	left := executor.DbResult{
		DatabaseID: "a", Success: true,
		Columns: []string{"City"},
		Rows:    [][]string{{"Berlin"}, {"Paris"}, {"Oslo"}},
	}
	right := executor.DbResult{
		DatabaseID: "b", Success: true,
		Columns: []string{"City"},
		Rows:    [][]string{{"Berlin"}, {"Paris"}, {"Rome"}},
	}
	assert.Nil(t, valueOverlapJoin([]executor.DbResult{left, right}),
		"shared descriptive values do not make rows the same entity")
}

func TestValueOverlapJoinPrefersLargestIntersection(t *testing.T) {
	left := executor.DbResult{
		DatabaseID: "a", Success: true,
		Columns: []string{"OrderId", "BuyerId"},
		Rows:    [][]string{{"1", "10"}, {"2", "11"}, {"3", "12"}},
	}
	// OrderId overlaps in two values, BuyerId/ClientId in three.
	right := executor.DbResult{
		DatabaseID: "b", Success: true,
		Columns: []string{"OrderId", "ClientId"},
		Rows:    [][]string{{"1", "10"}, {"2", "11"}, {"9", "12"}},
	}
	plan := valueOverlapJoin([]executor.DbResult{left, right})
	require.NotNil(t, plan)
	assert.Equal(t, "BuyerId", plan.leftCol)
	assert.Equal(t, "ClientId", plan.rightCol)
}

func TestMergeEmitsHintsWhenJoinImpossible(t *testing.T) {
	a := executor.DbResult{
		DatabaseID: "a", Success: true, RowCount: 1,
		Columns: []string{"OrderId", "Amount"},
		Rows:    [][]string{{"1", "10"}},
	}
	b := executor.DbResult{
		DatabaseID: "b", Success: true, RowCount: 1,
		Columns: []string{"TicketId", "Subject"},
		Rows:    [][]string{{"900", "refund"}},
	}
	m := NewMerger(emptyRegistry(), nil)
	out := m.Merge(context.Background(), &intent.Intent{}, []executor.DbResult{a, b})

	assert.Nil(t, out.Joined)
	require.NotEmpty(t, out.Hints)
	assert.Contains(t, out.Hints[0], "OrderId")
}

func TestBuildRetryQuerySelectsDescriptiveColumns(t *testing.T) {
	registry := emptyRegistry()
	registry.Put(&schema.DatabaseSchema{
		ID:      "billing",
		Dialect: dialect.SQLite,
		Status:  schema.StatusReady,
		Tables: []schema.Table{{
			Name: "Customers",
			Columns: []schema.Column{
				{Name: "Id", Type: "INTEGER", IsPrimaryKey: true},
				{Name: "CustomerId", Type: "INTEGER"},
				{Name: "Code", Type: "VARCHAR", MaxLength: 4},
				{Name: "FullName", Type: "VARCHAR", MaxLength: 120},
				{Name: "City", Type: "TEXT"},
			},
		}},
	})
	m := NewMerger(registry, nil)

	q, ok := m.buildRetryQuery("billing", []executor.DbResult{crmResult()})
	require.True(t, ok)
	assert.Equal(t, "billing", q.DatabaseID)
	assert.Contains(t, q.SQL, `WHERE CustomerId IN (10, 11)`)
	assert.Contains(t, q.SQL, "FullName")
	assert.Contains(t, q.SQL, "City")
	assert.NotContains(t, q.SQL, "Code", "short text columns are not descriptive")
}

func TestBuildRetryQueryFollowsOperatorMapping(t *testing.T) {
	// The mapped columns share no name or prefix, so only the mapping can
	// relate them.
	registry := schema.NewRegistry([]config.DatabaseConfig{{
		Name: "billing", ConnectionString: "billing.db", Dialect: "sqlite", Enabled: true,
		Mappings: []config.MappingConfig{{
			SourceDatabase: "crm", SourceTable: "Orders", SourceColumn: "BuyerRef",
			TargetDatabase: "billing", TargetTable: "Customers", TargetColumn: "CustomerId",
		}},
	}})
	registry.Put(&schema.DatabaseSchema{
		ID:      "billing",
		Dialect: dialect.SQLite,
		Status:  schema.StatusReady,
		Tables: []schema.Table{{
			Name: "Customers",
			Columns: []schema.Column{
				{Name: "Id", Type: "INTEGER", IsPrimaryKey: true},
				{Name: "CustomerId", Type: "INTEGER"},
				{Name: "FullName", Type: "VARCHAR", MaxLength: 120},
			},
		}},
	})
	m := NewMerger(registry, nil)

	src := executor.DbResult{
		DatabaseID: "crm", Success: true, RowCount: 2,
		Columns: []string{"Id", "BuyerRef"},
		Rows:    [][]string{{"1", "10"}, {"2", "11"}},
	}
	q, ok := m.buildRetryQuery("billing", []executor.DbResult{src})
	require.True(t, ok)
	assert.Contains(t, q.SQL, "WHERE CustomerId IN (10, 11)")
	assert.Contains(t, q.SQL, "FullName")
}

func TestBuildRetryQuerySkipsUnreachableTarget(t *testing.T) {
	registry := emptyRegistry()
	registry.Put(&schema.DatabaseSchema{ID: "billing", Status: schema.StatusFailed, Error: "down"})
	m := NewMerger(registry, nil)

	_, ok := m.buildRetryQuery("billing", []executor.DbResult{crmResult()})
	assert.False(t, ok)
}

func TestEvidenceFormat(t *testing.T) {
	out := &Outcome{Results: []executor.DbResult{crmResult()}}
	evidence := out.Evidence()

	assert.Contains(t, evidence, "=== Database: crm ===")
	assert.Contains(t, evidence, "📊 Total rows: 2 | Columns: Id, Name, CustomerId")
	assert.Contains(t, evidence, "Id\tName\tCustomerId")
	assert.Contains(t, evidence, "1\tWidget order\t10")
}

func TestEvidenceReplacesJoinedInputs(t *testing.T) {
	out := &Outcome{
		Results: []executor.DbResult{crmResult(), billingResult()},
		Joined: &JoinedTable{
			LeftDatabase: "crm", RightDatabase: "billing",
			LeftColumn: "CustomerId", RightColumn: "CustomerId",
			Columns: []string{"Id", "Name", "CustomerId", "billing.CustomerId", "Total"},
			Rows:    [][]string{{"1", "Widget order", "10", "10", "99.50"}},
		},
	}
	evidence := out.Evidence()

	assert.Contains(t, evidence, "=== Joined: crm + billing (on CustomerId) ===")
	assert.NotContains(t, evidence, "=== Database: crm ===",
		"inputs folded into the join must not repeat")
	assert.NotContains(t, evidence, "=== Database: billing ===")
}

func TestNumericValuesFiltersAndCaps(t *testing.T) {
	rows := [][]string{{"3"}, {"1"}, {"abc"}, {"1"}, {""}, {"2"}}
	assert.Equal(t, []string{"1", "2", "3"}, numericValues(rows, 0))
}

func emptyRegistry() *schema.Registry {
	return schema.NewRegistry([]config.DatabaseConfig{{
		Name: "billing", ConnectionString: "billing.db", Dialect: "sqlite", Enabled: true,
	}})
}
