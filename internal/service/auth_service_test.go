package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/peakscape/tours-api/internal/apperr"
	"github.com/peakscape/tours-api/internal/domain"
	"github.com/peakscape/tours-api/internal/query"
	"github.com/peakscape/tours-api/pkg/config"
	"github.com/peakscape/tours-api/pkg/events"
)

// ---------- Mocks ----------

type mockUserRepo struct {
	nextID int64
	byID   map[int64]*domain.User

	createErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{nextID: 1, byID: make(map[int64]*domain.User)}
}

func (m *mockUserRepo) CreateWithPassword(_ context.Context, req *domain.SignupRequest, hash string) (*domain.User, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, u := range m.byID {
		if u.Email == req.Email {
			return nil, apperr.NewConflict("duplicate")
		}
	}
	user := &domain.User{
		ID:           m.nextID,
		Name:         req.Name,
		Email:        req.Email,
		Role:         req.Role,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	m.nextID++
	m.byID[user.ID] = user
	return user, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range m.byID {
		if u.Email == email && u.Active {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := m.byID[id]
	if !ok || !u.Active {
		return nil, nil
	}
	clone := *u
	return &clone, nil
}

func (m *mockUserRepo) FindByResetToken(_ context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	for _, u := range m.byID {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash &&
			u.ResetTokenExpires != nil && u.ResetTokenExpires.After(now) && u.Active {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) SetResetToken(_ context.Context, id int64, tokenHash string, expires time.Time) error {
	u := m.byID[id]
	u.ResetTokenHash = &tokenHash
	u.ResetTokenExpires = &expires
	return nil
}

func (m *mockUserRepo) ClearResetToken(_ context.Context, id int64) error {
	u := m.byID[id]
	u.ResetTokenHash = nil
	u.ResetTokenExpires = nil
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id int64, hash string, changedAt time.Time) error {
	u := m.byID[id]
	u.PasswordHash = hash
	u.PasswordChangedAt = &changedAt
	u.ResetTokenHash = nil
	u.ResetTokenExpires = nil
	return nil
}

func (m *mockUserRepo) UpdateMe(_ context.Context, id int64, req *domain.UpdateMeRequest) (*domain.User, error) {
	return m.byID[id], nil
}

func (m *mockUserRepo) Deactivate(_ context.Context, id int64) error {
	m.byID[id].Active = false
	return nil
}

func (m *mockUserRepo) Get(ctx context.Context, id int64, _ []string) (*domain.User, error) {
	return m.FindByID(ctx, id)
}

func (m *mockUserRepo) Update(_ context.Context, id int64, _ *domain.UserPatch) (*domain.User, error) {
	return m.byID[id], nil
}

func (m *mockUserRepo) Delete(_ context.Context, id int64) error {
	delete(m.byID, id)
	return nil
}

func (m *mockUserRepo) List(context.Context, query.Query) ([]domain.User, error) { return nil, nil }

type mockMailer struct {
	welcomeTo  string
	resetTo    string
	lastURL    string
	sendErr    error
	resetCalls int
}

func (m *mockMailer) SendWelcomeEmail(toEmail, _ string) error {
	m.welcomeTo = toEmail
	return m.sendErr
}

func (m *mockMailer) SendPasswordResetEmail(toEmail, _, resetURL string) error {
	m.resetTo = toEmail
	m.lastURL = resetURL
	m.resetCalls++
	return m.sendErr
}

// ---------- Setup ----------

func testConfig() *config.Config {
	return &config.Config{
		Env: "development",
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret",
			TokenTTL:        time.Hour,
			CookieTTL:       time.Hour,
			ResetTokenTTL:   10 * time.Minute,
			HashMemory:      8 * 1024,
			HashIterations:  1,
			HashParallelism: 1,
		},
		API: config.APIConfig{MaxPageSize: 500, BaseURL: "http://localhost:8080"},
	}
}

func newTestAuthService(repo *mockUserRepo, mail *mockMailer) *authService {
	return &authService{
		users:    repo,
		mailer:   mail,
		eventBus: events.NoopPublisher{},
		config:   testConfig(),
		now:      time.Now,
	}
}

func signupUser(t *testing.T, svc *authService, email, password string) *domain.User {
	t.Helper()
	user, _, err := svc.Signup(context.Background(), &domain.SignupRequest{
		Name:            "Test User",
		Email:           email,
		Password:        password,
		PasswordConfirm: password,
	})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	return user
}

// ---------- Tests ----------

func TestSignup_Success(t *testing.T) {
	repo := newMockUserRepo()
	mail := &mockMailer{}
	svc := newTestAuthService(repo, mail)

	user, token, err := svc.Signup(context.Background(), &domain.SignupRequest{
		Name:            "Test User",
		Email:           "Test@Example.COM",
		Password:        "pass12345",
		PasswordConfirm: "pass12345",
	})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if token == "" {
		t.Fatal("Expected a session token")
	}
	if user.Email != "test@example.com" {
		t.Fatalf("Expected normalized email, got %q", user.Email)
	}
	if user.Role != domain.RoleUser {
		t.Fatalf("Expected default role user, got %q", user.Role)
	}
	if user.PasswordHash == "pass12345" || user.PasswordHash == "" {
		t.Fatal("Password must be stored hashed")
	}
	if valid, _ := argon2id.ComparePasswordAndHash("pass12345", user.PasswordHash); !valid {
		t.Fatal("Stored hash does not verify the password")
	}
	if mail.welcomeTo != "test@example.com" {
		t.Fatalf("Expected welcome mail, got %q", mail.welcomeTo)
	}
}

func TestSignup_ConfirmMismatchPersistsNothing(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockMailer{})

	_, _, err := svc.Signup(context.Background(), &domain.SignupRequest{
		Name:            "Test User",
		Email:           "test@example.com",
		Password:        "pass12345",
		PasswordConfirm: "different1",
	})
	if !apperr.IsKind(err, apperr.Validation) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if len(repo.byID) != 0 {
		t.Fatal("No account may be created on validation failure")
	}
}

func TestSignup_WelcomeMailFailureIsNotFatal(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockMailer{sendErr: errors.New("smtp down")})

	if _, _, err := svc.Signup(context.Background(), &domain.SignupRequest{
		Name:            "Test User",
		Email:           "test@example.com",
		Password:        "pass12345",
		PasswordConfirm: "pass12345",
	}); err != nil {
		t.Fatalf("Signup must succeed despite mail failure, got %v", err)
	}
}

func TestLogin_SameErrorForMissingUserAndWrongPassword(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockMailer{})
	signupUser(t, svc, "test@example.com", "pass12345")

	_, _, errMissing := svc.Login(context.Background(), &domain.LoginRequest{
		Email: "nobody@example.com", Password: "pass12345",
	})
	_, _, errWrong := svc.Login(context.Background(), &domain.LoginRequest{
		Email: "test@example.com", Password: "wrongpass1",
	})

	if !apperr.IsKind(errMissing, apperr.Auth) || !apperr.IsKind(errWrong, apperr.Auth) {
		t.Fatalf("Expected auth errors, got %v / %v", errMissing, errWrong)
	}
	if errMissing.Error() != errWrong.Error() {
		t.Fatalf("Credential errors must be indistinguishable: %q vs %q", errMissing, errWrong)
	}
}

func TestLogin_Success(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockMailer{})
	signupUser(t, svc, "test@example.com", "pass12345")

	user, token, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email: "test@example.com", Password: "pass12345",
	})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if token == "" || user.Email != "test@example.com" {
		t.Fatalf("Unexpected login result: token=%q user=%+v", token, user)
	}
}

func TestVerifyToken_Lifecycle(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockMailer{})
	created := signupUser(t, svc, "test@example.com", "pass12345")
	_, token, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email: "test@example.com", Password: "pass12345",
	})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	user, err := svc.VerifyToken(context.Background(), token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("Expected user %d, got %d", created.ID, user.ID)
	}

	if _, err := svc.VerifyToken(context.Background(), "not-a-token"); !apperr.IsKind(err, apperr.Auth) {
		t.Fatalf("Expected auth error for garbage token, got %v", err)
	}

	// Deleted account: token still cryptographically valid, must be refused.
	repo.byID[created.ID].Active = false
	if _, err := svc.VerifyToken(context.Background(), token); !apperr.IsKind(err, apperr.Auth) {
		t.Fatalf("Expected auth error for deactivated account, got %v", err)
	}
}

func TestVerifyToken_RejectsTokenIssuedBeforePasswordChange(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockMailer{})
	created := signupUser(t, svc, "test@example.com", "pass12345")

	// Token issued two minutes ago; password changed now.
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	oldToken, err := svc.signToken(created.ID)
	if err != nil {
		t.Fatalf("signToken failed: %v", err)
	}
	svc.now = time.Now

	changedAt := time.Now()
	repo.byID[created.ID].PasswordChangedAt = &changedAt

	if _, err := svc.VerifyToken(context.Background(), oldToken); !apperr.IsKind(err, apperr.Auth) {
		t.Fatalf("Expected stale token to be refused, got %v", err)
	}
}

func TestUpdatePassword_FreshTokenSurvivesItsOwnChange(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockMailer{})
	created := signupUser(t, svc, "test@example.com", "pass12345")

	_, token, err := svc.UpdatePassword(context.Background(), created.ID, &domain.UpdatePasswordRequest{
		PasswordCurrent: "pass12345",
		Password:        "newpass123",
		PasswordConfirm: "newpass123",
	})
	if err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}

	// The token issued by the change itself must not be judged stale.
	if _, err := svc.VerifyToken(context.Background(), token); err != nil {
		t.Fatalf("Fresh token rejected after its own password change: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email: "test@example.com", Password: "pass12345",
	}); !apperr.IsKind(err, apperr.Auth) {
		t.Fatalf("Old password must stop working, got %v", err)
	}
}

func TestUpdatePassword_WrongCurrentPassword(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockMailer{})
	created := signupUser(t, svc, "test@example.com", "pass12345")

	_, _, err := svc.UpdatePassword(context.Background(), created.ID, &domain.UpdatePasswordRequest{
		PasswordCurrent: "wrongpass1",
		Password:        "newpass123",
		PasswordConfirm: "newpass123",
	})
	if !apperr.IsKind(err, apperr.Auth) {
		t.Fatalf("Expected auth error, got %v", err)
	}
}

func TestForgotPassword_StoresDigestNotToken(t *testing.T) {
	repo := newMockUserRepo()
	mail := &mockMailer{}
	svc := newTestAuthService(repo, mail)
	created := signupUser(t, svc, "test@example.com", "pass12345")

	if err := svc.ForgotPassword(context.Background(), "test@example.com"); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}

	stored := repo.byID[created.ID]
	if stored.ResetTokenHash == nil || stored.ResetTokenExpires == nil {
		t.Fatal("Expected reset token fields to be set")
	}
	rawToken := mail.lastURL[strings.LastIndex(mail.lastURL, "/")+1:]
	if rawToken == *stored.ResetTokenHash {
		t.Fatal("The raw token must never be stored")
	}
	if hashResetToken(rawToken) != *stored.ResetTokenHash {
		t.Fatal("Stored digest must match the mailed token")
	}
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	svc := newTestAuthService(newMockUserRepo(), &mockMailer{})

	if err := svc.ForgotPassword(context.Background(), "nobody@example.com"); !apperr.IsKind(err, apperr.NotFound) {
		t.Fatalf("Expected not found, got %v", err)
	}
}

func TestForgotPassword_DeliveryFailureClearsToken(t *testing.T) {
	repo := newMockUserRepo()
	mail := &mockMailer{sendErr: errors.New("smtp down")}
	svc := newTestAuthService(repo, mail)
	created := signupUser(t, svc, "test@example.com", "pass12345")

	err := svc.ForgotPassword(context.Background(), "test@example.com")
	if !apperr.IsKind(err, apperr.Internal) {
		t.Fatalf("Expected internal error, got %v", err)
	}
	if !errors.Is(err, mail.sendErr) {
		t.Fatalf("Expected delivery error as cause, got %v", err)
	}

	stored := repo.byID[created.ID]
	if stored.ResetTokenHash != nil || stored.ResetTokenExpires != nil {
		t.Fatal("Undelivered reset token must be cleared")
	}
}

func TestResetPassword_FullFlow(t *testing.T) {
	repo := newMockUserRepo()
	mail := &mockMailer{}
	svc := newTestAuthService(repo, mail)
	signupUser(t, svc, "test@example.com", "pass12345")

	if err := svc.ForgotPassword(context.Background(), "test@example.com"); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	rawToken := mail.lastURL[strings.LastIndex(mail.lastURL, "/")+1:]

	user, token, err := svc.ResetPassword(context.Background(), rawToken, &domain.ResetPasswordRequest{
		Password:        "newpass123",
		PasswordConfirm: "newpass123",
	})
	if err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if token == "" {
		t.Fatal("Expected a fresh session token")
	}
	if user.ResetTokenHash != nil {
		t.Fatal("Reset token must be cleared after use")
	}

	// Token is single use.
	if _, _, err := svc.ResetPassword(context.Background(), rawToken, &domain.ResetPasswordRequest{
		Password:        "anotherpass1",
		PasswordConfirm: "anotherpass1",
	}); !apperr.IsKind(err, apperr.InvalidOrExpired) {
		t.Fatalf("Expected invalid-or-expired on reuse, got %v", err)
	}

	if _, _, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email: "test@example.com", Password: "newpass123",
	}); err != nil {
		t.Fatalf("Login with new password failed: %v", err)
	}
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	repo := newMockUserRepo()
	mail := &mockMailer{}
	svc := newTestAuthService(repo, mail)
	signupUser(t, svc, "test@example.com", "pass12345")

	if err := svc.ForgotPassword(context.Background(), "test@example.com"); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	rawToken := mail.lastURL[strings.LastIndex(mail.lastURL, "/")+1:]

	// Jump past the token's lifetime.
	svc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }

	_, _, err := svc.ResetPassword(context.Background(), rawToken, &domain.ResetPasswordRequest{
		Password:        "newpass123",
		PasswordConfirm: "newpass123",
	})
	if !apperr.IsKind(err, apperr.InvalidOrExpired) {
		t.Fatalf("Expected invalid-or-expired, got %v", err)
	}
}
