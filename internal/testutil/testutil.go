package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/database"
	"github.com/hugh/tubelink/internal/database/models"
	"github.com/hugh/tubelink/internal/store"
	"github.com/hugh/tubelink/pkg/crypto"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestPassword is the primary password given to users created by CreateTestUser.
const TestPassword = "testpassword123"

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A unique shared-cache name keeps every connection of the pool on the
	// same in-memory database.
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CreateTestEncryptor returns an encryptor with a throwaway key
func CreateTestEncryptor(t *testing.T) *crypto.Encryptor {
	t.Helper()

	enc, err := crypto.NewEncryptor("")
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}
	return enc
}

// CreateTestUser creates a user who can log in with TestPassword
func CreateTestUser(t *testing.T, s *store.Store) *models.User {
	t.Helper()

	user := CreateTestGoogleOnlyUser(t, s)

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if err := s.SetCredentialPassword(context.Background(), user.ID, string(hash)); err != nil {
		t.Fatalf("failed to create credential account: %v", err)
	}

	return user
}

// CreateTestGoogleOnlyUser creates a user without a credential account
func CreateTestGoogleOnlyUser(t *testing.T, s *store.Store) *models.User {
	t.Helper()

	user := &models.User{
		Email:         "test-" + uuid.New().String()[:8] + "@example.com",
		Name:          "Test User",
		EmailVerified: true,
	}

	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// LinkGoogleAccount stores provider tokens for the user
func LinkGoogleAccount(t *testing.T, s *store.Store, userID uuid.UUID, access, refresh string, expiresAt time.Time) {
	t.Helper()

	err := s.UpsertProviderAccount(context.Background(), models.ProviderGoogle, store.ProviderTokens{
		UserID:       userID,
		AccountID:    "google-" + userID.String()[:8],
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    &expiresAt,
	})
	if err != nil {
		t.Fatalf("failed to link google account: %v", err)
	}
}

// RawAccount loads an Account row without decrypting it
func RawAccount(t *testing.T, db *gorm.DB, userID uuid.UUID, provider string) (*models.Account, bool) {
	t.Helper()

	var acct models.Account
	err := db.Where("user_id = ? AND provider_id = ?", userID, provider).First(&acct).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false
	}
	if err != nil {
		t.Fatalf("failed to load account: %v", err)
	}
	return &acct, true
}

// AuthenticatedRequest creates an HTTP request with a bearer session token
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB        *gorm.DB
	Encryptor *crypto.Encryptor
	Store     *store.Store
	User      *models.User
}

// NewTestContext creates a complete test setup with DB, store and a user
// holding a credential account.
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	enc := CreateTestEncryptor(t)
	s := store.New(db, enc)
	user := CreateTestUser(t, s)

	return &TestSetup{
		DB:        db,
		Encryptor: enc,
		Store:     s,
		User:      user,
	}
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
