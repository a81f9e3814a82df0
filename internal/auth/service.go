package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"konsult.org/internal/ids"
)

// Service orchestrates the register/login/refresh/logout flows. It owns no
// state beyond its collaborators; the repository is injected so tests can
// run against the in-memory implementation.
type Service struct {
	repo    Repository
	issuer  *TokenIssuer
	refresh *RefreshTokenStore
	now     func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the session controller.
func NewService(repo Repository, issuer *TokenIssuer, opts ...ServiceOption) *Service {
	s := &Service{
		repo:    repo,
		issuer:  issuer,
		refresh: NewRefreshTokenStore(repo),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput carries the registration payload.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Session is the result of a successful register or login.
type Session struct {
	Account      *Account
	AccessToken  string
	RefreshToken string
}

// TokenPair is the result of a successful refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Register creates an account with the default role and opens a session.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	account := &Account{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         RoleConsultant,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}
	return s.openSession(ctx, account)
}

// Login authenticates credentials and opens a session. A missing account
// and a wrong password fail identically so callers cannot enumerate emails.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !VerifyPassword(account.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, ErrAccountInactive
	}
	return s.openSession(ctx, account)
}

// openSession mints a token pair, persists the refresh token (revoking any
// previous one) and stamps last_login_at.
func (s *Service) openSession(ctx context.Context, account *Account) (*Session, error) {
	accessToken, _, err := s.issuer.IssueAccessToken(account.ID)
	if err != nil {
		return nil, err
	}
	refreshToken, _, err := s.issuer.IssueRefreshToken(account.ID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	account.LastLoginAt = &now
	if err := s.repo.Save(ctx, account); err != nil {
		return nil, err
	}
	if err := s.refresh.Save(ctx, account.ID, refreshToken); err != nil {
		return nil, err
	}
	account.CurrentRefreshToken = refreshToken
	return &Session{Account: account, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh exchanges a refresh token for a new pair, rotating the stored
// value. Presenting a superseded token fails exactly like a forged one.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return TokenPair{}, ErrTokenInvalid
	}
	claims, err := s.issuer.VerifyRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if !s.refresh.IsCurrent(ctx, claims.Subject, refreshToken) {
		return TokenPair{}, ErrTokenInvalid
	}

	accessToken, _, err := s.issuer.IssueAccessToken(claims.Subject)
	if err != nil {
		return TokenPair{}, err
	}
	newRefreshToken, _, err := s.issuer.IssueRefreshToken(claims.Subject)
	if err != nil {
		return TokenPair{}, err
	}
	// One-time use: storing the new value also revokes the token just spent.
	if err := s.refresh.Save(ctx, claims.Subject, newRefreshToken); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: accessToken, RefreshToken: newRefreshToken}, nil
}

// Logout clears the stored refresh token. Calling it twice is not an error.
func (s *Service) Logout(ctx context.Context, account *Account) error {
	if account == nil {
		return ErrTokenInvalid
	}
	return s.refresh.Clear(ctx, account.ID)
}

// Profile reloads the caller's account. Serialization strips the password
// hash via Account.View like every other account-returning path.
func (s *Service) Profile(ctx context.Context, account *Account) (*Account, error) {
	if account == nil {
		return nil, ErrTokenInvalid
	}
	fresh, err := s.repo.FindByID(ctx, account.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	return fresh, nil
}

// Authenticate resolves an access token into an account. Used by the HTTP
// layer ahead of Logout and Profile.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Account, error) {
	claims, err := s.issuer.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	account, err := s.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, ErrAccountInactive
	}
	return account, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
