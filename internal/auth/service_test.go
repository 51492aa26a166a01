package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/friendline/internal/model"
	"github.com/hitoshi/friendline/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn    func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	createFn      func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) DeleteByID(_ context.Context, _ string) error {
	return nil
}

func (m *mockUserRepo) SearchByName(_ context.Context, _ string, _ int) ([]*model.User, error) {
	return nil, nil
}

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

// testConfig はテストを高速化するため最小コストのbcryptを使う。
var testConfig = ServiceConfig{SessionMaxAge: 86400, BcryptCost: bcrypt.MinCost}

func validInput() RegisterInput {
	return RegisterInput{
		Email:     "Alice@Example.com",
		Password:  "correct-horse",
		FirstName: "Alice",
		LastName:  "Smith",
		Location:  " Tokyo ",
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != code {
		t.Errorf("error = %v, want %s", err, code)
	}
}

// --- Register ---

func TestRegister_CreatesUserWithHashedPassword(t *testing.T) {
	var created *model.User
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	svc := NewService(userRepo, &mockSessionRepo{}, testConfig)

	user, err := svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if created == nil || created.ID != user.ID {
		t.Fatal("user should be persisted")
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email = %q, want lower-cased", user.Email)
	}
	if user.Location != "Tokyo" {
		t.Errorf("location = %q, want trimmed", user.Location)
	}
	if user.PasswordHash == "correct-horse" {
		t.Fatal("password must not be stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct-horse")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestRegister_DuplicateEmail_ReturnsEmailTaken(t *testing.T) {
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			return repository.ErrDuplicate
		},
	}
	svc := NewService(userRepo, &mockSessionRepo{}, testConfig)

	_, err := svc.Register(context.Background(), validInput())
	assertCode(t, err, model.ErrCodeEmailTaken)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *RegisterInput)
	}{
		{"メールアドレスなし", func(in *RegisterInput) { in.Email = "" }},
		{"不正なメールアドレス", func(in *RegisterInput) { in.Email = "not-an-email" }},
		{"表示名付きのメールアドレス", func(in *RegisterInput) { in.Email = "Alice <a@example.com>" }},
		{"短いパスワード", func(in *RegisterInput) { in.Password = "short" }},
		{"長すぎるパスワード", func(in *RegisterInput) { in.Password = strings.Repeat("p", 73) }},
		{"名なし", func(in *RegisterInput) { in.FirstName = "  " }},
		{"姓なし", func(in *RegisterInput) { in.LastName = "" }},
		{"長すぎる名", func(in *RegisterInput) { in.FirstName = strings.Repeat("a", 51) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userRepo := &mockUserRepo{
				createFn: func(ctx context.Context, user *model.User) error {
					t.Fatal("Create should not be called")
					return nil
				},
			}
			svc := NewService(userRepo, &mockSessionRepo{}, testConfig)

			in := validInput()
			tt.mutate(&in)
			_, err := svc.Register(context.Background(), in)
			assertCode(t, err, model.ErrCodeValidationFailed)
		})
	}
}

// --- Login ---

func registeredUser(t *testing.T, password string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash: %v", err)
	}
	return &model.User{ID: "user-1", Email: "alice@example.com", PasswordHash: string(hash)}
}

func TestLogin_ValidCredentials_CreatesSession(t *testing.T) {
	user := registeredUser(t, "correct-horse")
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return user, nil
		},
	}
	var saved *model.Session
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			saved = session
			return nil
		},
	}
	svc := NewService(userRepo, sessionRepo, testConfig)

	session, got, err := svc.Login(context.Background(), "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if got.ID != user.ID || session.UserID != user.ID {
		t.Errorf("session/user mismatch: %+v %+v", session, got)
	}
	if saved == nil || saved.ID != session.ID {
		t.Fatal("session should be persisted")
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64", len(session.ID))
	}
	wantExpiry := time.Now().Add(86400 * time.Second)
	if d := session.ExpiresAt.Sub(wantExpiry); d > time.Minute || d < -time.Minute {
		t.Errorf("ExpiresAt = %v, want about %v", session.ExpiresAt, wantExpiry)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	user := registeredUser(t, "correct-horse")

	tests := []struct {
		name     string
		email    string
		password string
		found    *model.User
	}{
		{"パスワード不一致", "alice@example.com", "wrong-password", user},
		{"未登録のメールアドレス", "bob@example.com", "correct-horse", nil},
		{"空の入力", "", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userRepo := &mockUserRepo{
				findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
					return tt.found, nil
				},
			}
			sessionRepo := &mockSessionRepo{
				createFn: func(ctx context.Context, session *model.Session) error {
					t.Fatal("session must not be created")
					return nil
				},
			}
			svc := NewService(userRepo, sessionRepo, testConfig)

			_, _, err := svc.Login(context.Background(), tt.email, tt.password)
			assertCode(t, err, model.ErrCodeInvalidCredentials)
		})
	}
}

// --- Logout / GetCurrentUser ---

func TestLogout_DeletesSession(t *testing.T) {
	var deletedSessionID string
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedSessionID = id
			return nil
		},
	}
	svc := NewService(&mockUserRepo{}, sessionRepo, testConfig)

	if err := svc.Logout(context.Background(), "session-to-delete"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if deletedSessionID != "session-to-delete" {
		t.Errorf("deleted session ID = %q, want %q", deletedSessionID, "session-to-delete")
	}
}

func TestLogout_EmptySessionID_ReturnsError(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockSessionRepo{}, testConfig)

	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

func TestGetCurrentUser_ValidSession_ReturnsUser(t *testing.T) {
	userID := "user-id-123"
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "user@example.com"}, nil
		},
	}
	svc := NewService(userRepo, sessionRepo, testConfig)

	user, err := svc.GetCurrentUser(context.Background(), "session-valid")
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if user.ID != userID {
		t.Errorf("user ID = %q, want %q", user.ID, userID)
	}
}

func TestGetCurrentUser_Unauthenticated(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		session   *model.Session
	}{
		{"空のセッションID", "", nil},
		{"期限切れまたは存在しないセッション", "gone", nil},
		{"削除済みユーザー", "orphan", &model.Session{ID: "orphan", UserID: "deleted"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessionRepo := &mockSessionRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
					return tt.session, nil
				},
			}
			svc := NewService(&mockUserRepo{}, sessionRepo, testConfig)

			_, err := svc.GetCurrentUser(context.Background(), tt.sessionID)
			if !errors.Is(err, ErrUnauthenticated) {
				t.Errorf("error = %v, want ErrUnauthenticated", err)
			}
		})
	}
}

func TestGenerateSessionID_Unique(t *testing.T) {
	a, err := generateSessionID()
	if err != nil {
		t.Fatalf("generateSessionID() error = %v", err)
	}
	b, _ := generateSessionID()
	if a == b {
		t.Error("session IDs should differ")
	}
}
