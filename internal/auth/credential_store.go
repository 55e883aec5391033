package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/rosterd/internal/database"
	"github.com/charlesng35/rosterd/internal/models"
	"github.com/charlesng35/rosterd/internal/services"
	"github.com/charlesng35/rosterd/pkg/crypto"
	apperrors "github.com/charlesng35/rosterd/pkg/errors"
	"github.com/charlesng35/rosterd/pkg/logger"
	"github.com/charlesng35/rosterd/pkg/metrics"
	"github.com/charlesng35/rosterd/pkg/validator"
)

// TokenType is the scheme clients send tokens with.
const TokenType = "bearer"

// Token is a signed access token and the instant it stops being valid.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type credentialsInput struct {
	Username string `json:"username" validate:"required,notblank,max=64"`
	Password string `json:"password" validate:"required"`
}

// CredentialStore registers users, checks their passwords and issues tokens.
type CredentialStore struct {
	db         *gorm.DB
	jwt        *JWTService
	audit      *services.AuditService
	bcryptCost int
	dummyHash  string
	log        *zap.Logger
	now        func() time.Time
}

// CredentialOption customises a CredentialStore.
type CredentialOption func(*CredentialStore)

// WithBcryptCost overrides the bcrypt work factor.
func WithBcryptCost(cost int) CredentialOption {
	return func(s *CredentialStore) {
		if cost > 0 {
			s.bcryptCost = cost
		}
	}
}

// WithAuditService records registrations in the audit trail.
func WithAuditService(audit *services.AuditService) CredentialOption {
	return func(s *CredentialStore) {
		s.audit = audit
	}
}

// NewCredentialStore constructs a CredentialStore.
func NewCredentialStore(db *gorm.DB, jwtService *JWTService, opts ...CredentialOption) (*CredentialStore, error) {
	if db == nil {
		return nil, errors.New("credential store: db is required")
	}
	if jwtService == nil {
		return nil, errors.New("credential store: jwt service is required")
	}

	store := &CredentialStore{
		db:  db,
		jwt: jwtService,
		log: logger.WithModule("auth"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}

	// Compared against for unknown usernames so the response time does not
	// reveal whether an account exists.
	dummy, err := crypto.HashPasswordWithCost("rosterd-dummy-password", store.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("credential store: prepare dummy hash: %w", err)
	}
	store.dummyHash = dummy

	return store, nil
}

// Register stores a new credential with a bcrypt hash of password.
func (s *CredentialStore) Register(ctx context.Context, username, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	input := credentialsInput{Username: strings.TrimSpace(username), Password: password}
	if err := validator.ValidateStruct(input); err != nil {
		return nil, apperrors.NewValidation(validator.Message(err))
	}
	if crypto.PasswordTooLong(input.Password) {
		return nil, apperrors.NewValidation(fmt.Sprintf("password must be at most %d bytes", crypto.MaxPasswordBytes))
	}

	hashed, err := crypto.HashPasswordWithCost(input.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("credential store: hash password: %w", err)
	}

	user := &models.User{
		Username: input.Username,
		Password: hashed,
		IsActive: true,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.ErrDuplicateUsername
		}
		return nil, apperrors.ErrStoreUnavailable.WithInternal(fmt.Errorf("credential store: create user: %w", err))
	}

	s.audit.Record(ctx, services.AuditEntry{
		Username: user.Username,
		Action:   services.AuditActionUserRegister,
		Resource: user.ID,
		Result:   "success",
	})
	s.log.Info("user registered", zap.String("username", user.Username))

	return user, nil
}

// Authenticate verifies the password of an active user. Unknown users,
// inactive users and wrong passwords all yield ErrInvalidCredentials.
func (s *CredentialStore) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.Lookup(ctx, strings.TrimSpace(username))
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		metrics.AuthAttempts.WithLabelValues("error").Inc()
		return nil, err
	}

	if user == nil {
		crypto.VerifyPassword(s.dummyHash, password)
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	if !crypto.VerifyPassword(user.Password, password) || !user.IsActive {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()

	loginAt := s.now()
	if err := s.db.WithContext(ctx).Model(user).Update("last_login_at", loginAt).Error; err != nil {
		s.log.Warn("record last login failed", zap.String("username", user.Username), zap.Error(err))
	} else {
		user.LastLoginAt = &loginAt
	}

	return user, nil
}

// IssueToken mints a token whose subject is username.
func (s *CredentialStore) IssueToken(username string) (Token, error) {
	signed, expiresAt, err := s.jwt.GenerateAccessToken(username)
	if err != nil {
		return Token{}, fmt.Errorf("credential store: issue token: %w", err)
	}
	return Token{AccessToken: signed, TokenType: TokenType, ExpiresAt: expiresAt}, nil
}

// VerifyToken returns the token subject. Every failure, whatever its cause, is
// reported as ErrInvalidToken with the cause attached for logging.
func (s *CredentialStore) VerifyToken(token string) (string, error) {
	claims, err := s.jwt.ValidateAccessToken(strings.TrimSpace(token))
	if err != nil {
		return "", apperrors.ErrInvalidToken.WithInternal(err)
	}
	return claims.Subject, nil
}

// Login authenticates and issues a token in one step.
func (s *CredentialStore) Login(ctx context.Context, username, password string) (*models.User, Token, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, Token{}, err
	}

	token, err := s.IssueToken(user.Username)
	if err != nil {
		return nil, Token{}, err
	}
	return user, token, nil
}

// Lookup loads a credential by username. Missing users yield ErrNotFound.
func (s *CredentialStore) Lookup(ctx context.Context, username string) (*models.User, error) {
	ctx = ensureContext(ctx)

	if username == "" {
		return nil, apperrors.ErrNotFound
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.ErrStoreUnavailable.WithInternal(fmt.Errorf("credential store: lookup user: %w", err))
	}
	return &user, nil
}

// SetActive enables or disables a credential. Disabled users cannot log in and
// their outstanding tokens stop authorizing.
func (s *CredentialStore) SetActive(ctx context.Context, username string, active bool) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", strings.TrimSpace(username)).
		Update("is_active", active)
	if result.Error != nil {
		return apperrors.ErrStoreUnavailable.WithInternal(fmt.Errorf("credential store: update active state: %w", result.Error))
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete removes a credential. Tokens issued to it stop authorizing.
func (s *CredentialStore) Delete(ctx context.Context, username string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("username = ?", strings.TrimSpace(username)).
		Delete(&models.User{})
	if result.Error != nil {
		return apperrors.ErrStoreUnavailable.WithInternal(fmt.Errorf("credential store: delete user: %w", result.Error))
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
