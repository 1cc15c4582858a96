package handlers_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/auth"
	"github.com/hugh/tubelink/internal/connection"
	"github.com/hugh/tubelink/internal/database/models"
	"github.com/hugh/tubelink/internal/provider"
	"github.com/hugh/tubelink/internal/testutil"
	"github.com/hugh/tubelink/pkg/util"
	"golang.org/x/crypto/bcrypt"
)

type sentMail struct {
	To, Subject, Body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fixture struct {
	*testutil.TestSetup
	Sessions *auth.SessionManager
	Auth     *auth.Service
	Mailer   *recordingMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tc := testutil.NewTestContext(t)
	sessions := auth.NewSessionManager(tc.Store, "session-secret", 7*24*time.Hour, 24*time.Hour)
	mailer := &recordingMailer{}
	svc := auth.NewService(tc.Store, sessions, auth.Options{
		RevokeDelegationOnRemove: true,
		DelegationCost:           bcrypt.MinCost,
		Mailer:                   mailer,
		Logger:                   util.DiscardLogger(),
	})

	return &fixture{TestSetup: tc, Sessions: sessions, Auth: svc, Mailer: mailer}
}

func (f *fixture) token(t *testing.T, user *models.User, kind auth.SessionKind) string {
	t.Helper()
	issued, err := f.Sessions.Issue(context.Background(), user, kind, auth.RequestMeta{})
	if err != nil {
		t.Fatalf("issuing session: %v", err)
	}
	return issued.Token
}

// fakeConnections stands in for the connection service.
type fakeConnections struct {
	mu           sync.Mutex
	status       connection.Status
	result       connection.Result
	err          error
	connected    []uuid.UUID
	disconnected []uuid.UUID
	synced       []uuid.UUID
}

func (f *fakeConnections) Status(_ context.Context, _ uuid.UUID) (*connection.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	st := f.status
	return &st, nil
}

func (f *fakeConnections) Connect(_ context.Context, userID uuid.UUID) (*connection.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = append(f.connected, userID)
	if f.err != nil {
		return nil, f.err
	}
	res := f.result
	return &res, nil
}

func (f *fakeConnections) Disconnect(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, userID)
	return f.err
}

func (f *fakeConnections) Sync(_ context.Context, userID uuid.UUID) (*connection.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, userID)
	if f.err != nil {
		return nil, f.err
	}
	res := f.result
	return &res, nil
}

// fakeAuthorizer is a canned Google authorization-code flow.
type fakeAuthorizer struct {
	profile     provider.Profile
	exchangeErr error
	codes       []string
}

func (f *fakeAuthorizer) AuthCodeURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + state
}

func (f *fakeAuthorizer) Exchange(_ context.Context, code string) (*provider.Token, error) {
	f.codes = append(f.codes, code)
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &provider.Token{
		AccessToken:  "google-access",
		RefreshToken: "google-refresh",
		Expiry:       time.Now().Add(time.Hour),
		Scope:        "openid email",
	}, nil
}

func (f *fakeAuthorizer) UserInfo(_ context.Context, _ string) (*provider.Profile, error) {
	p := f.profile
	return &p, nil
}

func strPtr(s string) *string { return &s }
