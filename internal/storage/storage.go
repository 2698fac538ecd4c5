package storage

import (
	"context"

	"kestrel/internal/storage/models"
)

// Storage defines the interface for data persistence
type Storage interface {
	// Subscription operations
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	GetSubscription(ctx context.Context, id int64) (*models.Subscription, error)
	GetSubscriptionByName(ctx context.Context, name string) (*models.Subscription, error)
	GetAllSubscriptions(ctx context.Context) ([]*models.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *models.Subscription) error
	DeleteSubscription(ctx context.Context, id int64) error
	GetDueSubscriptions(ctx context.Context) ([]*models.Subscription, error) // Subscriptions due for auto-update

	// Delay history operations
	RecordDelay(ctx context.Context, rec *models.DelayRecord) error
	GetLatestDelay(ctx context.Context, nodeName string) (*models.DelayRecord, error)
	GetDelayHistory(ctx context.Context, nodeName string, limit int) ([]*models.DelayRecord, error)

	// Settings operations
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	GetAllSettings(ctx context.Context) (map[string]string, error)

	// Close closes the storage connection
	Close() error
}
