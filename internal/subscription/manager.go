package subscription

import (
	"context"
	"time"

	"kestrel/internal/storage"
	pkgerrors "kestrel/pkg/errors"
)

// Manager manages subscriptions and their updates
type Manager struct {
	storage storage.Storage
	fetcher *Fetcher
	decoder *Decoder
}

// NewManager creates a new subscription manager
func NewManager(store storage.Storage) *Manager {
	return &Manager{
		storage: store,
		fetcher: NewFetcher(DefaultFetcherConfig()),
		decoder: NewDecoder(),
	}
}

// UpdateResult represents the result of a subscription update
type UpdateResult struct {
	SubscriptionID int64
	Name           string
	NodeCount      int
	Err            error
	UpdatedAt      time.Time
}

// Update refreshes one subscription: fetch, decode, cache the node URIs.
func (m *Manager) Update(ctx context.Context, id int64) (*UpdateResult, error) {
	sub, err := m.storage.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{
		SubscriptionID: sub.ID,
		Name:           sub.Name,
		UpdatedAt:      time.Now(),
	}

	content, err := m.fetcher.Fetch(ctx, sub.URL)
	if err != nil {
		return nil, &pkgerrors.SubscriptionError{Name: sub.Name, URL: sub.URL, Err: err}
	}

	uris, err := m.decoder.Decode(content)
	if err != nil {
		return nil, &pkgerrors.SubscriptionError{Name: sub.Name, URL: sub.URL, Err: err}
	}

	sub.NodeURIs = uris
	now := time.Now()
	sub.LastUpdated = &now
	if sub.AutoUpdate {
		next := now.Add(time.Duration(sub.UpdateInterval) * time.Second)
		sub.NextUpdate = &next
	}

	if err := m.storage.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	result.NodeCount = len(uris)
	return result, nil
}

// UpdateByName refreshes a subscription looked up by name.
func (m *Manager) UpdateByName(ctx context.Context, name string) (*UpdateResult, error) {
	sub, err := m.storage.GetSubscriptionByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return m.Update(ctx, sub.ID)
}

// UpdateAllDue refreshes every subscription due for auto-update. One failed
// subscription does not stop the others.
func (m *Manager) UpdateAllDue(ctx context.Context) ([]*UpdateResult, error) {
	subs, err := m.storage.GetDueSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*UpdateResult, 0, len(subs))
	for _, sub := range subs {
		result, err := m.Update(ctx, sub.ID)
		if err != nil {
			results = append(results, &UpdateResult{
				SubscriptionID: sub.ID,
				Name:           sub.Name,
				Err:            err,
				UpdatedAt:      time.Now(),
			})
			continue
		}
		results = append(results, result)
	}

	return results, nil
}
