package intent

// Strategy selects which sources a query should hit.
type Strategy string

const (
	DatabaseOnly Strategy = "database_only"
	DocumentOnly Strategy = "document_only"
	Hybrid       Strategy = "hybrid"
)

// NoAnswerMarker is the explicit negation the AI may return at any stage;
// it is preserved so downstream can fast-fail.
const NoAnswerMarker = "[NO_ANSWER_FOUND]"

// DatabaseQueryIntent targets one database with a required table set.
type DatabaseQueryIntent struct {
	DatabaseID string
	Tables     []string
	Purpose    string
	Priority   int

	// NonEnglishHint marks a purpose or identifier carrying characters
	// forbidden in English SQL; the generator echoes this in its retry
	// prompt. The purpose itself is kept, it is a hint, not SQL.
	NonEnglishHint bool
}

// Intent is the validated plan of which sources to consult.
type Intent struct {
	Query      string
	Databases  []DatabaseQueryIntent
	Confidence float64
	Strategy   Strategy
	NoAnswer   bool
}
