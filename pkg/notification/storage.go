package notification

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStore persists web push subscriptions to a JSON file.
type SubscriptionStore struct {
	filePath string
	mu       sync.RWMutex
}

// NewSubscriptionStore creates a file-backed subscription store.
func NewSubscriptionStore(filePath string) *SubscriptionStore {
	return &SubscriptionStore{filePath: filePath}
}

func (s *SubscriptionStore) load() ([]Subscription, error) {
	file, err := os.Open(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Subscription{}, nil
		}
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()

	var subscriptions []Subscription
	if err := json.NewDecoder(file).Decode(&subscriptions); err != nil {
		// A corrupted file is treated as empty rather than blocking sends
		return []Subscription{}, nil
	}
	return subscriptions, nil
}

func (s *SubscriptionStore) save(subscriptions []Subscription) error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return err
	}

	tempFile := s.filePath + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(subscriptions); err != nil {
		_ = os.Remove(tempFile)
		return err
	}
	return os.Rename(tempFile, s.filePath)
}

// Add registers a subscription, updating in place if the endpoint is
// already known.
func (s *SubscriptionStore) Add(sub Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subscriptions, err := s.load()
	if err != nil {
		return err
	}

	for i, existing := range subscriptions {
		if existing.Endpoint == sub.Endpoint {
			sub.ID = existing.ID
			sub.CreatedAt = existing.CreatedAt
			sub.Active = true
			subscriptions[i] = sub
			return s.save(subscriptions)
		}
	}

	if sub.ID == "" {
		sub.ID = fmt.Sprintf("sub_%s", uuid.New().String())
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	sub.Active = true

	subscriptions = append(subscriptions, sub)
	return s.save(subscriptions)
}

// List returns all active subscriptions.
func (s *SubscriptionStore) List() ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subscriptions, err := s.load()
	if err != nil {
		return nil, err
	}

	active := make([]Subscription, 0, len(subscriptions))
	for _, sub := range subscriptions {
		if sub.Active {
			active = append(active, sub)
		}
	}
	return active, nil
}

// Remove deactivates a subscription by endpoint.
func (s *SubscriptionStore) Remove(endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subscriptions, err := s.load()
	if err != nil {
		return err
	}

	changed := false
	for i, sub := range subscriptions {
		if sub.Endpoint == endpoint && sub.Active {
			subscriptions[i].Active = false
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save(subscriptions)
}
