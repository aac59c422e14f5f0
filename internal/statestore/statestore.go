// Package statestore keeps short-lived OAuth CSRF state. A durable
// database-backed tier is preferred; when it is unavailable the store
// falls back to a process-local tier behind the same interface, so
// callers never know which tier served a value.
//
// The local tier does not survive process restarts and is not shared
// between instances. Single-instance deployments only.
package statestore

import (
	"log"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Store holds one-time values with a TTL.
type Store interface {
	// Put saves value under key for ttl.
	Put(key, value string, ttl time.Duration) error

	// Take retrieves and removes the value for key. Expired or missing
	// keys report ok=false.
	Take(key string) (value string, ok bool)
}

// oauthState is the durable tier's table.
type oauthState struct {
	Key       string    `gorm:"primaryKey;size:64"`
	Value     string    `gorm:"type:text"`
	ExpiresAt time.Time `gorm:"index"`
}

func (oauthState) TableName() string {
	return "oauth_states"
}

// MemoryStore is the process-local TTL tier.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Put(key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Opportunistic sweep keeps the map from growing between requests.
	now := time.Now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}

	m.entries[key] = memoryEntry{value: value, expiresAt: now.Add(ttl)}
	return nil
}

func (m *MemoryStore) Take(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", false
	}
	delete(m.entries, key)
	if time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.value, true
}

// DurableStore persists state rows in the database.
type DurableStore struct {
	db *gorm.DB
}

func NewDurableStore(db *gorm.DB) (*DurableStore, error) {
	if err := db.AutoMigrate(&oauthState{}); err != nil {
		return nil, err
	}
	return &DurableStore{db: db}, nil
}

func (d *DurableStore) Put(key, value string, ttl time.Duration) error {
	// Replace any stale row with the same key.
	d.db.Where("key = ?", key).Delete(&oauthState{})
	return d.db.Create(&oauthState{
		Key:       key,
		Value:     value,
		ExpiresAt: time.Now().Add(ttl),
	}).Error
}

func (d *DurableStore) Take(key string) (string, bool) {
	var row oauthState
	if err := d.db.Where("key = ?", key).First(&row).Error; err != nil {
		return "", false
	}
	d.db.Where("key = ?", key).Delete(&oauthState{})
	if time.Now().After(row.ExpiresAt) {
		return "", false
	}
	return row.Value, true
}

// TwoTier prefers the durable tier and falls back to the local tier when
// the durable one errors or misses.
type TwoTier struct {
	durable Store
	local   Store
}

// NewTwoTier builds the two-tier store. durable may be nil, in which
// case everything is served from the local tier.
func NewTwoTier(durable Store) *TwoTier {
	return &TwoTier{durable: durable, local: NewMemoryStore()}
}

func (t *TwoTier) Put(key, value string, ttl time.Duration) error {
	if t.durable != nil {
		if err := t.durable.Put(key, value, ttl); err == nil {
			return nil
		} else {
			log.Printf("State store: durable tier unavailable, using local tier: %v", err)
		}
	}
	return t.local.Put(key, value, ttl)
}

func (t *TwoTier) Take(key string) (string, bool) {
	if t.durable != nil {
		if value, ok := t.durable.Take(key); ok {
			return value, true
		}
	}
	return t.local.Take(key)
}
