package store

import (
	"context"

	"github.com/streamstall/liveassist/internal/types"
)

// Store is the repository surface consumed by the route layer. Every method
// returns a well-defined value under any internal fault; degradable faults
// (malformed stored attributes, unreadable overlay files) are logged and
// absorbed rather than surfaced.
type Store interface {
	// Sessions and conversations.
	CreateSession(ctx context.Context, id, hostName, liveTheme string, products []types.NewProduct) error
	GetSession(ctx context.Context, id string) (*types.Session, error)
	SaveConversation(ctx context.Context, sessionID, userMessage, aiResponse, audioURL string) error

	// Product supplemental info.
	SaveProductInfo(ctx context.Context, sessionID string, ref types.ProductRef, key string, value any) error
	GetProductInfo(ctx context.Context, sessionID string, ref types.ProductRef) (map[string]any, error)

	// Spectator message queue.
	AddBulletScreen(ctx context.Context, sessionID, username, message, category string, priority int) (int64, error)
	PendingBulletScreens(ctx context.Context, sessionID string, limit int) ([]types.BulletScreen, error)
	MarkBulletScreensProcessed(ctx context.Context, ids []int64) error

	// Moderation.
	IsBlacklisted(ctx context.Context, sessionID, username, message string) (bool, error)
	CheckSensitiveWords(message string) (bool, []string)

	// Curated FAQ resolution and instantiation.
	ResolveFAQ(ctx context.Context, sessionID, message string) (string, bool, error)
	FAQTemplates(ctx context.Context, productType types.ProductType) ([]types.FAQTemplate, error)
	ApplyFAQTemplates(ctx context.Context, sessionID string, productType types.ProductType, values map[string]string) (int, error)

	// QA cache.
	CachedAnswer(ctx context.Context, sessionID, question, origin string) (*types.CachedAnswer, error)
	CacheAnswer(ctx context.Context, sessionID, question, answer, audioURL, origin string) error

	// Telemetry.
	FAQStatistics(ctx context.Context, sessionID string) (*types.FAQStatistics, error)
	FAQRecommendations(ctx context.Context, sessionID string, minHitCount int) ([]types.FAQRecommendation, error)

	Backend() string
	Close() error
}

var _ Store = (*SQLStore)(nil)
