package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/viewstate"
	"github.com/ecorvi/schmng-api/pkg/docstore"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FetchByID(ctx context.Context, id string) (*models.User, error)
	Set(ctx context.Context, user models.User) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
}

type profileRepository interface {
	FindByEmail(ctx context.Context, t models.PersonType, email string) (*models.Person, error)
	Create(ctx context.Context, p models.Person) (string, error)
}

type jobEnqueuer interface {
	Enqueue(jobType string, payload interface{}) (string, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	ResetTokenExpiry  time.Duration
	Issuer            string
	AppURL            string
}

// AuthService provides authentication use cases.
type AuthService struct {
	repo      authUserRepository
	profiles  profileRepository
	jobs      jobEnqueuer
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, profiles profileRepository, queue jobEnqueuer, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = viewstate.NewValidator()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	if config.ResetTokenExpiry <= 0 {
		config.ResetTokenExpiry = time.Hour
	}
	return &AuthService{
		repo:      repo,
		profiles:  profiles,
		jobs:      queue,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates a user and returns an access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := viewstate.Validate(s.validator, req, "invalid login payload"); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, gatewayError(err, "user not found")
	}

	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	issuedAt := s.now()
	accessToken, err := s.signToken(user, models.TokenPurposeAccess, issuedAt, s.config.AccessTokenExpiry, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, issuedAt); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	return &models.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
		User:        user.Info(),
	}, nil
}

// Register creates an account. For non-admin roles a person profile is created under the
// account uid unless one with the same email already exists.
func (s *AuthService) Register(ctx context.Context, session models.Session, req models.RegisterRequest) (*models.UserInfo, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	if err := viewstate.Validate(s.validator, req, "invalid registration payload"); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return nil, gatewayError(err, "user not found")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	now := s.now()
	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Set(ctx, user); err != nil {
		return nil, gatewayError(err, "user not found")
	}

	if personType, ok := user.Role.PersonType(); ok && s.profiles != nil {
		if err := s.ensureProfile(ctx, personType, user); err != nil {
			s.logger.Warn("failed to create profile for account", zap.String("uid", user.ID), zap.Error(err))
		}
	}

	info := user.Info()
	return &info, nil
}

func (s *AuthService) ensureProfile(ctx context.Context, t models.PersonType, user models.User) error {
	if _, err := s.profiles.FindByEmail(ctx, t, user.Email); err == nil {
		return nil
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return err
	}
	first, last, _ := strings.Cut(user.FullName, " ")
	_, err := s.profiles.Create(ctx, models.Person{
		ID:        user.ID,
		Type:      t,
		FirstName: first,
		LastName:  strings.TrimSpace(last),
		Email:     user.Email,
	})
	return err
}

// Me returns the account behind the session.
func (s *AuthService) Me(ctx context.Context, session models.Session) (*models.UserInfo, error) {
	user, err := s.repo.FetchByID(ctx, session.UserID)
	if err != nil {
		return nil, gatewayError(err, "user not found")
	}
	info := user.Info()
	return &info, nil
}

// ChangePassword changes the caller's password after checking the old one.
func (s *AuthService) ChangePassword(ctx context.Context, session models.Session, req models.ChangePasswordRequest) error {
	if err := viewstate.Validate(s.validator, req, "invalid change password payload"); err != nil {
		return err
	}

	user, err := s.repo.FetchByID(ctx, session.UserID)
	if err != nil {
		return gatewayError(err, "user not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "old password does not match")
	}

	return s.storePassword(ctx, user.ID, req.NewPassword)
}

// SendPasswordResetEmail queues a reset link. Unknown emails succeed silently so the
// response does not reveal which accounts exist.
func (s *AuthService) SendPasswordResetEmail(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := viewstate.Validate(s.validator, req, "invalid forgot password payload"); err != nil {
		return err
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return gatewayError(err, "user not found")
	}
	if !user.Active {
		return nil
	}

	token, err := s.signToken(user, models.TokenPurposeReset, s.now(), s.config.ResetTokenExpiry, passwordFingerprint(user.PasswordHash))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reset token")
	}

	payload := PasswordResetMail{
		Email:     user.Email,
		Name:      user.FullName,
		Link:      s.resetLink(token),
		ExpiresIn: s.config.ResetTokenExpiry.String(),
	}
	if s.jobs == nil {
		return appErrors.Clone(appErrors.ErrInternal, "mail queue not configured")
	}
	if _, err := s.jobs.Enqueue(JobPasswordResetMail, payload); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue reset mail")
	}
	s.logger.Info("password reset mail queued", zap.String("uid", user.ID))
	return nil
}

// ConfirmPasswordReset sets a new password using a reset token. A token stops working once
// the password it was issued for has changed.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, req models.ConfirmResetPasswordRequest) error {
	if err := viewstate.Validate(s.validator, req, "invalid reset password payload"); err != nil {
		return err
	}
	claims, err := s.parseToken(req.Token, models.TokenPurposeReset)
	if err != nil {
		return err
	}
	user, err := s.repo.FetchByID(ctx, claims.UserID)
	if err != nil {
		return gatewayError(err, "user not found")
	}
	if claims.ID != passwordFingerprint(user.PasswordHash) {
		return appErrors.Clone(appErrors.ErrUnauthorized, "reset token already used")
	}
	return s.storePassword(ctx, user.ID, req.NewPassword)
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	return s.parseToken(tokenString, models.TokenPurposeAccess)
}

func (s *AuthService) storePassword(ctx context.Context, id, password string) error {
	newHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, id, string(newHash), s.now()); err != nil {
		return gatewayError(err, "user not found")
	}
	return nil
}

func (s *AuthService) parseToken(tokenString, purpose string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.Purpose != purpose {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token not valid for this use")
	}
	return claims, nil
}

func (s *AuthService) signToken(user *models.User, purpose string, issuedAt time.Time, ttl time.Duration, jti string) (string, error) {
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Email:    user.Email,
		FullName: user.FullName,
		Purpose:  purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
}

func (s *AuthService) resetLink(token string) string {
	base := strings.TrimRight(s.config.AppURL, "/")
	return base + "/reset-password?token=" + url.QueryEscape(token)
}

func passwordFingerprint(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}
