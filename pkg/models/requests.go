package models

// ── Collaborator requests ────────────────────────────────────

// IntentRequest is the input to the intent resolver.
type IntentRequest struct {
	Text               string        `json:"text"`
	LastSuggestion     string        `json:"last_suggestion,omitempty"`
	RecentConversation []ChatMessage `json:"recent_conversation,omitempty"`
	ProbeCount         int           `json:"probe_count,omitempty"`
	ThreadContext      string        `json:"thread_context,omitempty"`
}

// DiscoveryQuery is one catalog search. Zero values are omitted on the wire.
type DiscoveryQuery struct {
	Query            string   `json:"query"`
	Limit            int      `json:"limit"`
	Location         string   `json:"location,omitempty"`
	PartnerID        string   `json:"partner_id,omitempty"`
	ExcludePartnerID string   `json:"exclude_partner_id,omitempty"`
	BudgetMax        float64  `json:"budget_max,omitempty"`
	ExperienceTag    string   `json:"experience_tag,omitempty"`
	ExperienceTags   []string `json:"experience_tags,omitempty"`
}

// CompositeRequest asks for a multi-category experience. SearchQueries are
// resolved in order, one fetch per category.
type CompositeRequest struct {
	ExperienceName string             `json:"experience_name"`
	SearchQueries  []string           `json:"search_queries"`
	BundleOptions  []BundleOptionSpec `json:"bundle_options,omitempty"`
	Location       string             `json:"location,omitempty"`
	Time           string             `json:"time,omitempty"`
	Date           string             `json:"date,omitempty"`
	BudgetMax      float64            `json:"budget_max,omitempty"`
	Limit          int                `json:"limit"`
}

// RefineRequest asks for alternatives in one category of a shown bundle.
type RefineRequest struct {
	BundleID  string  `json:"bundle_id,omitempty"`
	Category  string  `json:"category"`
	Query     string  `json:"query,omitempty"`
	BudgetMax float64 `json:"budget_max,omitempty"`
	Limit     int     `json:"limit"`
	Location  string  `json:"location,omitempty"`
}
