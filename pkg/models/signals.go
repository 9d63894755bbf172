package models

import "time"

// ── Auxiliary signals ────────────────────────────────────────

type Weather struct {
	Description string                 `json:"description"`
	Temp        float64                `json:"temp"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

type Occasion struct {
	Name  string `json:"name"`
	Date  string `json:"date,omitempty"`
	Venue string `json:"venue,omitempty"`
	URL   string `json:"url,omitempty"`
}

type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// ── Orchestration / standing intents ────────────────────────

type OrchestrationHandle struct {
	InstanceID     string `json:"instance_id"`
	StatusQueryURI string `json:"status_query_uri,omitempty"`
}

type StandingIntentRequest struct {
	Description          string `json:"description"`
	ApprovalTimeoutHours int    `json:"approval_timeout_hours"`
	Platform             string `json:"platform,omitempty"`
	ThreadID             string `json:"thread_id,omitempty"`
}

type StandingIntent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ── Orders ───────────────────────────────────────────────────

type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type OrderStatus struct {
	OrderID       string      `json:"order_id"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status"`
	Items         []OrderItem `json:"items"`
	UpdatedAt     time.Time   `json:"updated_at,omitempty"`
}
