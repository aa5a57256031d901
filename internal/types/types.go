package types

import "time"

// ProductType classifies a product into one of the fixed live-stream categories.
type ProductType string

const (
	ProductTypeFruit      ProductType = "fruit"
	ProductTypeVegetable  ProductType = "vegetable"
	ProductTypeMeat       ProductType = "meat"
	ProductTypeGrain      ProductType = "grain"
	ProductTypeHandicraft ProductType = "handicraft"
	ProductTypeProcessed  ProductType = "processed"
)

// ProductTypes lists every valid category tag, used for boundary validation.
var ProductTypes = []ProductType{
	ProductTypeFruit,
	ProductTypeVegetable,
	ProductTypeMeat,
	ProductTypeGrain,
	ProductTypeHandicraft,
	ProductTypeProcessed,
}

// Valid reports whether t is one of the fixed categories. The empty value is
// allowed everywhere a product type is optional.
func (t ProductType) Valid() bool {
	for _, known := range ProductTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Session is one live-stream run. It owns its products and conversations;
// deleting a session cascades to both.
type Session struct {
	ID            string         `json:"id"`
	HostName      string         `json:"host_name"`
	LiveTheme     string         `json:"live_theme"`
	Products      []Product      `json:"products"`
	Conversations []Conversation `json:"conversations"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Product belongs to exactly one session. Attributes is an arbitrarily nested
// map serialized as JSON text in storage; it is never nil when returned to
// callers.
type Product struct {
	ID          int64          `json:"id"`
	SessionID   string         `json:"session_id"`
	Name        string         `json:"product_name"`
	Price       float64        `json:"price"`
	Unit        string         `json:"unit"`
	ProductType ProductType    `json:"product_type,omitempty"`
	Attributes  map[string]any `json:"attributes"`
}

// NewProduct is the boundary form of a product at session creation time.
// Origin carries the legacy top-level origin aliases the route layer folds in;
// it lands in Attributes["origin"] unless the map already has one.
type NewProduct struct {
	Name        string         `json:"name"`
	Price       float64        `json:"price"`
	Unit        string         `json:"unit"`
	ProductType ProductType    `json:"product_type"`
	Attributes  map[string]any `json:"attributes"`
	Origin      string         `json:"origin,omitempty"`
}

// ProductRef identifies a product within a session by id or, failing that,
// by name. A zero ref matches nothing.
type ProductRef struct {
	ID   int64  `json:"product_id,omitempty"`
	Name string `json:"product_name,omitempty"`
}

// Conversation is one user message / assistant response pair. Append-only.
type Conversation struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	UserMessage string    `json:"user_message"`
	AIResponse  string    `json:"ai_response"`
	AudioURL    string    `json:"audio_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProductInfoEntry is one row of the append-only attribute disclosure log.
type ProductInfoEntry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	ProductID int64     `json:"product_id,omitempty"`
	Name      string    `json:"product_name,omitempty"`
	Key       string    `json:"info_key"`
	Value     string    `json:"info_value"`
	CreatedAt time.Time `json:"created_at"`
}

// BulletScreen is one queued spectator message.
type BulletScreen struct {
	ID          int64      `json:"id"`
	SessionID   string     `json:"session_id"`
	Username    string     `json:"username"`
	Message     string     `json:"message"`
	Category    string     `json:"category"`
	Priority    int        `json:"priority"`
	Processed   bool       `json:"is_processed"`
	Confidence  float64    `json:"confidence_score"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// BlacklistType distinguishes banned usernames from banned message patterns.
type BlacklistType string

const (
	BlacklistUsername BlacklistType = "username"
	BlacklistMessage  BlacklistType = "message"
)

// BlacklistEntry is a per-session ban rule.
type BlacklistEntry struct {
	ID        int64         `json:"id"`
	SessionID string        `json:"session_id"`
	Pattern   string        `json:"pattern"`
	Type      BlacklistType `json:"type"`
	CreatedAt time.Time     `json:"created_at"`
}

// WhitelistEntry is one curated FAQ pattern for a session. ProductTypes is a
// comma-separated list of applicable categories; empty means always applicable.
type WhitelistEntry struct {
	ID           int64      `json:"id"`
	SessionID    string     `json:"session_id"`
	Pattern      string     `json:"pattern"`
	Answer       string     `json:"answer"`
	Priority     int        `json:"priority"`
	ProductTypes string     `json:"product_types,omitempty"`
	HitCount     int        `json:"hit_count"`
	LastHitAt    *time.Time `json:"last_hit_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// FAQTemplate is a global, category-scoped answer template. The answer text
// contains {name}-style placeholders filled in at instantiation time.
type FAQTemplate struct {
	ID             int64       `json:"id"`
	ProductType    ProductType `json:"product_type"`
	Pattern        string      `json:"pattern"`
	AnswerTemplate string      `json:"answer_template"`
	Placeholder    string      `json:"placeholder"`
	Priority       int         `json:"priority"`
	Active         bool        `json:"is_active"`
}

// CachedAnswer is the payload returned on a QA cache hit.
type CachedAnswer struct {
	Answer   string `json:"answer"`
	AudioURL string `json:"audio_url,omitempty"`
}

// FAQStats aggregates whitelist hit telemetry.
type FAQStats struct {
	TotalFAQs     int     `json:"total_faqs"`
	TotalHits     int     `json:"total_hits"`
	AvgHits       float64 `json:"avg_hits"`
	MaxHits       int     `json:"max_hits,omitempty"`
	UsedFAQs      int     `json:"used_faqs,omitempty"`
	UnusedFAQs    int     `json:"unused_faqs,omitempty"`
	TotalSessions int     `json:"total_sessions,omitempty"`
}

// HotFAQ is one high-traffic whitelist entry in a statistics report.
type HotFAQ struct {
	Pattern      string     `json:"pattern"`
	Answer       string     `json:"answer"`
	HitCount     int        `json:"hit_count"`
	LastHitAt    *time.Time `json:"last_hit_at,omitempty"`
	ProductTypes string     `json:"product_types,omitempty"`
	HostName     string     `json:"host_name,omitempty"`
	LiveTheme    string     `json:"live_theme,omitempty"`
}

// FAQStatistics is the full statistics report for one session, or globally
// when SessionID is empty.
type FAQStatistics struct {
	SessionID  string   `json:"session_id,omitempty"`
	Statistics FAQStats `json:"statistics"`
	HotFAQs    []HotFAQ `json:"hot_faqs"`
	UnusedFAQs []HotFAQ `json:"unused_faqs,omitempty"`
}

// FAQRecommendation is a QA cache entry with enough repeat hits to be worth
// promoting into a curated whitelist entry.
type FAQRecommendation struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	HitCount   int       `json:"hit_count"`
	LastUsedAt time.Time `json:"last_used_at"`
}
