package store

import "time"

// SecretStorage discriminates where a secret field actually lives.
type SecretStorage string

const (
	SecretNone      SecretStorage = "none"
	SecretKeychain  SecretStorage = "keychain"
	SecretPlaintext SecretStorage = "plaintext"
)

// ConnectionProfile is a named, persisted connection target.
type ConnectionProfile struct {
	Name              string
	Backend           string
	Database          string
	Host              string
	Port              int
	Username          string
	SSLMode           string
	Extras            string
	PasswordStorage   SecretStorage
	PasswordPlaintext string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastUsedAt        *time.Time
}

// LlmSettings is the singleton LLM configuration row.
type LlmSettings struct {
	Provider        string
	Model           string
	APIKeyStorage   SecretStorage
	APIKeyPlaintext string
	UpdatedAt       time.Time
}

// SavedQuery is a user-named, reusable SQL statement.
type SavedQuery struct {
	ID             int64
	Name           string
	SQL            string
	Description    string
	ConnectionName string
	Tags           []string
	UsageCount     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SubmittedBy distinguishes who generated the SQL of a HistoryEntry.
type SubmittedBy string

const (
	SubmittedByUser SubmittedBy = "user"
	SubmittedByLLM  SubmittedBy = "llm"
)

// HistoryStatus is the outcome of one executed statement.
type HistoryStatus string

const (
	HistorySuccess   HistoryStatus = "success"
	HistoryError     HistoryStatus = "error"
	HistoryCancelled HistoryStatus = "cancelled"
)

// HistoryEntry is one row of query_history.
type HistoryEntry struct {
	ID              int64
	ConnectionName  string
	SubmittedBy     SubmittedBy
	SQL             string
	Status          HistoryStatus
	ExecutionTimeMs *int64
	RowCount        *int
	ErrorMessage    string
	SavedQueryID    *int64
	CreatedAt       time.Time
}

const (
	historyRetentionDays = 90
	historyRetentionRows = 5000
)
