package model

// AIMode selects which capability subset a tenant's orchestration advertises.
type AIMode string

const (
	AIModeFull    AIMode = "full"
	AIModeMinimal AIMode = "minimal"
)

// TenantAIConfig is the per-tenant AI configuration supplied to every
// orchestration call. A missing credential is a configuration error; the core
// never falls back to a shared key.
type TenantAIConfig struct {
	TenantID string `json:"tenant_id"`

	Provider    string  `json:"provider"` // openai|anthropic
	APIKey      string  `json:"-"`
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`

	CompanyName string `json:"company_name"`
	Mode        AIMode `json:"mode"`
	Enabled     bool   `json:"enabled"`

	// AllowedActions restricts which widget actions this tenant may execute.
	// Empty means all known action types.
	AllowedActions []ActionType `json:"allowed_actions,omitempty"`

	// Retrieval credentials for the tenant's knowledge index.
	RetrievalAPIKey    string `json:"-"`
	RetrievalIndexHost string `json:"-"`

	// CalendarCredential authorizes best-effort sync of booked appointments
	// to the tenant's external calendar. Empty disables sync; the local
	// event row is authoritative either way.
	CalendarCredential string `json:"-"`
}

// ActionAllowed reports whether the tenant may execute the given action type.
func (c TenantAIConfig) ActionAllowed(t ActionType) bool {
	if t == ActionNone {
		return true
	}
	if len(c.AllowedActions) == 0 {
		return true
	}
	for _, a := range c.AllowedActions {
		if a == t {
			return true
		}
	}
	return false
}

// RetrievedPassage is one scored passage returned by knowledge retrieval.
// TenantID on every passage is a hard isolation boundary.
type RetrievedPassage struct {
	Content  string  `json:"content"`
	TenantID string  `json:"tenant_id"`
	FileName string  `json:"file_name,omitempty"`
	FileType string  `json:"file_type,omitempty"`
	Sheet    string  `json:"sheet,omitempty"`
	WholeRow bool    `json:"whole_row,omitempty"`
	Score    float64 `json:"score"`
}

// MeetingProposal is the structured output of the transcript extractor.
type MeetingProposal struct {
	Agreed          bool     `json:"agreed"`
	Title           string   `json:"title"`
	Date            string   `json:"date"` // YYYY-MM-DD, resolved against the call date
	Time            string   `json:"time"` // HH:MM 24h
	DurationMinutes int      `json:"duration_minutes"`
	Attendees       []string `json:"attendees,omitempty"`
	Notes           string   `json:"notes,omitempty"`
	Confidence      float64  `json:"confidence"`
}
