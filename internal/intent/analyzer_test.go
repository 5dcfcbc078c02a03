package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byerlikaya/SmartRAG-sub011/internal/config"
	"github.com/byerlikaya/SmartRAG-sub011/internal/conversation"
	"github.com/byerlikaya/SmartRAG-sub011/internal/dialect"
	"github.com/byerlikaya/SmartRAG-sub011/internal/llm"
	"github.com/byerlikaya/SmartRAG-sub011/internal/schema"
)

type stubProvider struct {
	reply   string
	prompts []string
}

func (s *stubProvider) GenerateResponse(ctx context.Context, prompt string, history []llm.Message) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, nil
}

func (s *stubProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, nil
}

func (s *stubProvider) GenerateEmbeddingsBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func (s *stubProvider) Name() string { return "stub" }

func twoDatabaseRegistry() *schema.Registry {
	registry := schema.NewRegistry([]config.DatabaseConfig{
		{Name: "crm", ConnectionString: "crm.db", Dialect: "sqlite", Enabled: true},
		{Name: "hr", ConnectionString: "hr.db", Dialect: "sqlite", Enabled: true},
	})
	registry.Put(&schema.DatabaseSchema{
		ID: "crm", Dialect: dialect.SQLite, Status: schema.StatusReady,
		Tables: []schema.Table{{Name: "Customers"}},
	})
	registry.Put(&schema.DatabaseSchema{
		ID: "hr", Dialect: dialect.SQLite, Status: schema.StatusReady,
		Tables: []schema.Table{{Name: "Employees"}},
	})
	return registry
}

func TestAnalyzeParsesStructuredReply(t *testing.T) {
	provider := &stubProvider{reply: `{"databases":[{"database":"crm","tables":["customers"],"purpose":"list customers","priority":1}],"confidence":0.9}`}
	a := NewAnalyzer(provider, twoDatabaseRegistry())

	in, err := a.Analyze(context.Background(), "list all customers", nil)
	require.NoError(t, err)
	require.Len(t, in.Databases, 1)
	assert.Equal(t, "crm", in.Databases[0].DatabaseID)
	assert.Equal(t, []string{"Customers"}, in.Databases[0].Tables, "table casing comes from the schema")
	assert.Equal(t, DatabaseOnly, in.Strategy)
	assert.InDelta(t, 0.9, in.Confidence, 1e-9)
}

func TestAnalyzeRelocatesTablesToOwningDatabase(t *testing.T) {
	// The AI puts Employees under crm; the table lives in hr.
	provider := &stubProvider{reply: `{"databases":[{"database":"crm","tables":["Customers","Employees"],"purpose":"staff and customers","priority":1}],"confidence":0.8}`}
	a := NewAnalyzer(provider, twoDatabaseRegistry())

	in, err := a.Analyze(context.Background(), "which employee serves which customer", nil)
	require.NoError(t, err)
	require.Len(t, in.Databases, 2)

	assert.Equal(t, "crm", in.Databases[0].DatabaseID)
	assert.Equal(t, []string{"Customers"}, in.Databases[0].Tables)

	assert.Equal(t, "hr", in.Databases[1].DatabaseID)
	assert.Equal(t, []string{"Employees"}, in.Databases[1].Tables)
	assert.Equal(t, 2, in.Databases[1].Priority, "relocated targets run after explicit ones")
}

func TestAnalyzeDropsUnknownTables(t *testing.T) {
	provider := &stubProvider{reply: `{"databases":[{"database":"crm","tables":["Nonexistent"],"purpose":"x","priority":1}],"confidence":0.9}`}
	a := NewAnalyzer(provider, twoDatabaseRegistry())

	in, err := a.Analyze(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Empty(t, in.Databases, "a target with no surviving tables is removed")
	assert.Equal(t, DocumentOnly, in.Strategy, "high confidence without targets falls back to documents")
}

func TestAnalyzeNoAnswerMarker(t *testing.T) {
	provider := &stubProvider{reply: "I checked everything. " + NoAnswerMarker}
	a := NewAnalyzer(provider, twoDatabaseRegistry())

	in, err := a.Analyze(context.Background(), "what color is the wind", nil)
	require.NoError(t, err)
	assert.True(t, in.NoAnswer)
	assert.Empty(t, in.Databases)
}

func TestAnalyzeUnparseableReplyFallsBack(t *testing.T) {
	provider := &stubProvider{reply: "sorry, I cannot answer in the requested format"}
	a := NewAnalyzer(provider, twoDatabaseRegistry())

	in, err := a.Analyze(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, DocumentOnly, in.Strategy)
	assert.Empty(t, in.Databases)
}

func TestAnalyzeIncludesHistoryInPrompt(t *testing.T) {
	provider := &stubProvider{reply: `{"databases":[],"confidence":0.1}`}
	a := NewAnalyzer(provider, twoDatabaseRegistry())

	history := []conversation.Turn{{Role: conversation.RoleUser, Text: "tell me about the crm"}}
	_, err := a.Analyze(context.Background(), "and the orders?", history)
	require.NoError(t, err)
	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "tell me about the crm")
}

func TestAnalyzeFlagsNonEnglishHint(t *testing.T) {
	provider := &stubProvider{reply: `{"databases":[{"database":"crm","tables":["Customers"],"purpose":"müşteri listesi","priority":1}],"confidence":0.9}`}
	a := NewAnalyzer(provider, twoDatabaseRegistry())

	in, err := a.Analyze(context.Background(), "müşterileri listele", nil)
	require.NoError(t, err)
	require.Len(t, in.Databases, 1)
	assert.True(t, in.Databases[0].NonEnglishHint)
}

func TestSelectStrategy(t *testing.T) {
	assert.Equal(t, DatabaseOnly, selectStrategy(0.9, true))
	assert.Equal(t, DocumentOnly, selectStrategy(0.9, false))
	assert.Equal(t, Hybrid, selectStrategy(0.5, true))
	assert.Equal(t, Hybrid, selectStrategy(0.3, false))
	assert.Equal(t, DocumentOnly, selectStrategy(0.1, true))
}
