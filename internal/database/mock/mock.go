// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// MockGallery is a mock implementation of database.GalleryWriter
type MockGallery struct {
	mu         sync.RWMutex
	identities map[int64]*database.Identity
	nextID     int64

	// Error injection
	LookupError error
	AllError    error
	CountError  error
	EnrollError error
	DeleteError error
}

// NewMockGallery creates a new mock gallery
func NewMockGallery() *MockGallery {
	return &MockGallery{
		identities: make(map[int64]*database.Identity),
		nextID:     1,
	}
}

// AddIdentity adds an identity to the mock store, keeping its ID
func (m *MockGallery) AddIdentity(identity database.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[identity.ID] = &identity
	if identity.ID >= m.nextID {
		m.nextID = identity.ID + 1
	}
}

// Lookup retrieves an identity by ID
func (m *MockGallery) Lookup(ctx context.Context, id int64) (*database.Identity, error) {
	if m.LookupError != nil {
		return nil, m.LookupError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	identity, ok := m.identities[id]
	if !ok {
		return nil, nil
	}
	cp := *identity
	return &cp, nil
}

// All returns every identity ordered by ID
func (m *MockGallery) All(ctx context.Context) ([]database.Identity, error) {
	if m.AllError != nil {
		return nil, m.AllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]database.Identity, 0, len(m.identities))
	for _, identity := range m.identities {
		result = append(result, *identity)
	}
	slices.SortFunc(result, func(a, b database.Identity) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result, nil
}

// Count returns the number of identities
func (m *MockGallery) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.identities), nil
}

// FindByName returns identities whose normalized name matches
func (m *MockGallery) FindByName(ctx context.Context, name string) ([]database.Identity, error) {
	all, err := m.All(ctx)
	if err != nil {
		return nil, err
	}
	want := database.NormalizePersonName(name)
	var result []database.Identity
	for _, identity := range all {
		if database.NormalizePersonName(identity.DisplayName) == want {
			result = append(result, identity)
		}
	}
	return result, nil
}

// Enroll stores a new identity
func (m *MockGallery) Enroll(ctx context.Context, identity *database.Identity) error {
	if m.EnrollError != nil {
		return m.EnrollError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	identity.ID = m.nextID
	m.nextID++
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now()
	}
	cp := *identity
	m.identities[identity.ID] = &cp
	return nil
}

// Delete removes an identity
func (m *MockGallery) Delete(ctx context.Context, id int64) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.identities, id)
	return nil
}

// MockLedger is a mock implementation of database.LedgerWriter
type MockLedger struct {
	mu     sync.RWMutex
	events []database.AttendanceEvent
	names  map[int64]string
	nextID int64

	// Error injection
	MostRecentError   error
	AppendError       error
	ListError         error
	CountError        error
	DeleteBeforeError error

	// AppendDelay slows Append down to widen race windows in concurrency tests
	AppendDelay time.Duration
}

// NewMockLedger creates a new mock ledger
func NewMockLedger() *MockLedger {
	return &MockLedger{
		names:  make(map[int64]string),
		nextID: 1,
	}
}

// SetName sets the display name returned by List for an identity
func (m *MockLedger) SetName(identityID int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[identityID] = name
}

// Events returns a copy of every stored event in insertion order
func (m *MockLedger) Events() []database.AttendanceEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.events)
}

// MostRecent returns the latest event for an identity
func (m *MockLedger) MostRecent(ctx context.Context, identityID int64) (*database.AttendanceEvent, error) {
	if m.MostRecentError != nil {
		return nil, m.MostRecentError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *database.AttendanceEvent
	for i := range m.events {
		e := &m.events[i]
		if e.IdentityID != identityID {
			continue
		}
		if latest == nil || e.Timestamp.After(latest.Timestamp) {
			latest = e
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

// Append stores an event
func (m *MockLedger) Append(ctx context.Context, event *database.AttendanceEvent) error {
	if m.AppendError != nil {
		return m.AppendError
	}
	if m.AppendDelay > 0 {
		time.Sleep(m.AppendDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = m.nextID
	m.nextID++
	m.events = append(m.events, *event)
	return nil
}

// List returns events matching the filter, newest first
func (m *MockLedger) List(ctx context.Context, filter database.AttendanceFilter) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []database.AttendanceRecord
	for _, e := range m.events {
		if filter.IdentityID != 0 && e.IdentityID != filter.IdentityID {
			continue
		}
		if !filter.Since.IsZero() && e.Timestamp.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && !e.Timestamp.Before(filter.Until) {
			continue
		}
		result = append(result, database.AttendanceRecord{AttendanceEvent: e, DisplayName: m.names[e.IdentityID]})
	}
	slices.SortFunc(result, func(a, b database.AttendanceRecord) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Count returns the number of events
func (m *MockLedger) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events), nil
}

// DeleteBefore removes events older than cutoff
func (m *MockLedger) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteBeforeError != nil {
		return 0, m.DeleteBeforeError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.events[:0]
	var removed int64
	for _, e := range m.events {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return removed, nil
}

// Compile-time interface checks
var (
	_ database.GalleryWriter = (*MockGallery)(nil)
	_ database.LedgerWriter  = (*MockLedger)(nil)
)
