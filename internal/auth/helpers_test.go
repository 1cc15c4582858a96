package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hugh/tubelink/internal/auth"
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

func (m *recordingMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

type authFixture struct {
	*testutil.TestSetup
	Sessions *auth.SessionManager
	Service  *auth.Service
	Mailer   *recordingMailer
}

func newAuthFixture(t *testing.T) *authFixture {
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

	return &authFixture{TestSetup: tc, Sessions: sessions, Service: svc, Mailer: mailer}
}

func (f *authFixture) ownerSession(t *testing.T) *auth.Session {
	t.Helper()
	issued, err := f.Sessions.Issue(context.Background(), f.User, auth.OwnerSession, auth.RequestMeta{})
	if err != nil {
		t.Fatalf("issuing owner session: %v", err)
	}
	return issued.Session
}
