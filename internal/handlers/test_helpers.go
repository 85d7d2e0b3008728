package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/services"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds user claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID, email, role string) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Type:   auth.TokenTypeAccess,
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc         func(ctx context.Context, meta services.RequestMeta, email, password string) (*services.AuthResponse, error)
	LockoutStatusFunc func(ctx context.Context, clientIP, email string) (models.LockoutDecision, error)
	Message           string
	LogoutCalls       []services.RequestMeta
}

func (m *MockAuthService) Login(ctx context.Context, meta services.RequestMeta, email, password string) (*services.AuthResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, meta, email, password)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) Logout(_ context.Context, meta services.RequestMeta) {
	m.LogoutCalls = append(m.LogoutCalls, meta)
}

func (m *MockAuthService) LockoutStatus(ctx context.Context, clientIP, email string) (models.LockoutDecision, error) {
	if m.LockoutStatusFunc != nil {
		return m.LockoutStatusFunc(ctx, clientIP, email)
	}
	return models.NewLockoutDecision(0, 5), nil
}

func (m *MockAuthService) LockoutMessage() string {
	return m.Message
}

// MockRegistrationService implements RegistrationService for testing
type MockRegistrationService struct {
	CreateUserFunc func(ctx context.Context, meta services.RequestMeta, input services.NewUserInput) (*models.User, error)
}

func (m *MockRegistrationService) CreateUser(ctx context.Context, meta services.RequestMeta, input services.NewUserInput) (*models.User, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, meta, input)
	}
	return &models.User{ID: "user-1", Email: input.Email, Role: "user"}, nil
}

// MockUserService implements UserService for testing
type MockUserService struct {
	GetUserByIDFunc   func(ctx context.Context, id string) (*models.User, error)
	UpdateProfileFunc func(ctx context.Context, meta services.RequestMeta, id string, profile models.Profile) (*models.User, error)
}

func (m *MockUserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetUserByIDFunc != nil {
		return m.GetUserByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserService) UpdateProfile(ctx context.Context, meta services.RequestMeta, id string, profile models.Profile) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, meta, id, profile)
	}
	return nil, models.ErrNotFound
}

// MockUploader implements Uploader for testing
type MockUploader struct {
	UploadFunc   func(ctx context.Context, meta services.RequestMeta, req services.UploadRequest) (*models.UploadResult, error)
	Unconfigured bool
	Requests     []services.UploadRequest
}

func (m *MockUploader) Upload(ctx context.Context, meta services.RequestMeta, req services.UploadRequest) (*models.UploadResult, error) {
	m.Requests = append(m.Requests, req)
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, meta, req)
	}
	return &models.UploadResult{Category: req.Category}, nil
}

func (m *MockUploader) StorageConfigured() bool {
	return !m.Unconfigured
}

// MockEventLister implements EventLister for testing
type MockEventLister struct {
	RecentFunc func(ctx context.Context, kind models.SecurityEventKind, limit, offset int) ([]*models.SecurityEvent, error)
}

func (m *MockEventLister) Recent(ctx context.Context, kind models.SecurityEventKind, limit, offset int) ([]*models.SecurityEvent, error) {
	if m.RecentFunc != nil {
		return m.RecentFunc(ctx, kind, limit, offset)
	}
	return []*models.SecurityEvent{}, nil
}

// MockEventEmitter records emitted security events for testing
type MockEventEmitter struct {
	mu      sync.Mutex
	Kinds   []models.SecurityEventKind
	Details []models.EventDetails
}

func (m *MockEventEmitter) Emit(_ context.Context, kind models.SecurityEventKind, _ services.RequestMeta, details models.EventDetails) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Kinds = append(m.Kinds, kind)
	m.Details = append(m.Details, details)
}
