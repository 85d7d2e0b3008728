package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc       func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc    func(ctx context.Context, email string) (*models.User, error)
	CreateFunc        func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateProfileFunc func(ctx context.Context, id string, profile models.Profile) (*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, id string, profile models.Profile) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, id, profile)
	}
	return nil, models.ErrNotFound
}

// MockSecurityEventRepository records created events in memory
type MockSecurityEventRepository struct {
	mu               sync.Mutex
	Events           []*models.SecurityEvent
	CreateErr        error
	DeleteBeforeFunc func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *MockSecurityEventRepository) Create(ctx context.Context, event *models.SecurityEvent) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockSecurityEventRepository) List(ctx context.Context, kind models.SecurityEventKind, limit, offset int) ([]*models.SecurityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.SecurityEvent, 0)
	for i := len(m.Events) - 1; i >= 0; i-- {
		if kind == "" || m.Events[i].Kind == kind {
			out = append(out, m.Events[i])
		}
	}
	if offset >= len(out) {
		return []*models.SecurityEvent{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockSecurityEventRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteBeforeFunc != nil {
		return m.DeleteBeforeFunc(ctx, cutoff)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.Events[:0]
	var deleted int64
	for _, e := range m.Events {
		if e.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.Events = kept
	return deleted, nil
}

// Kinds returns the kinds of all recorded events in emission order
func (m *MockSecurityEventRepository) Kinds() []models.SecurityEventKind {
	m.mu.Lock()
	defer m.mu.Unlock()

	kinds := make([]models.SecurityEventKind, 0, len(m.Events))
	for _, e := range m.Events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// MockLockoutNotifier records lockout notifications
type MockLockoutNotifier struct {
	mu         sync.Mutex
	Recipients []string
	Err        error
}

func (m *MockLockoutNotifier) NotifyLockout(ctx context.Context, email string, lockout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Recipients = append(m.Recipients, email)
	return m.Err
}

// Count returns the number of notifications sent so far
func (m *MockLockoutNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Recipients)
}

// MockObjectStore keeps uploaded objects in memory
type MockObjectStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string
	PutErr  error
}

func (m *MockObjectStore) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	if m.PutErr != nil {
		return "", m.PutErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Objects == nil {
		m.Objects = make(map[string][]byte)
		m.Types = make(map[string]string)
	}
	m.Objects[key] = body
	m.Types[key] = contentType
	return "https://cdn.example.test/" + key, nil
}
