package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"tokostore/internal/apperrors"
	"tokostore/internal/config"
	"tokostore/internal/models"
	"tokostore/internal/repositories"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var errInvalidCredentials = apperrors.Unauthorized("invalid credentials")

// Claims is the identity carried by a valid access token.
type Claims struct {
	UserID   string
	Username string
	Role     models.Role
}

// TokenPair is what a successful login, registration or refresh hands back.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is the user together with freshly issued tokens.
type AuthResult struct {
	User *models.User `json:"user"`
	TokenPair
}

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	Name     *string
}

// ProfileUpdate carries optional profile changes. Nil fields are left alone.
type ProfileUpdate struct {
	Email    *string
	Username *string
	Name     *string
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo   repositories.UserRepository
	tokenRepo  repositories.RefreshTokenRepository
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, tokenRepo repositories.RefreshTokenRepository, cfg config.AuthConfig) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		jwtSecret:  []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
}

// RegisterUser creates a USER account and logs it in.
func (s *AuthService) RegisterUser(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	user, err := s.createUser(ctx, in, models.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

// CreateAdmin creates the first administrator. It refuses once any admin exists.
func (s *AuthService) CreateAdmin(ctx context.Context, in RegisterInput) (*models.User, error) {
	exists, err := s.userRepo.AdminExists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Conflict("admin user already exists")
	}
	return s.createUser(ctx, in, models.RoleAdmin)
}

func (s *AuthService) createUser(ctx context.Context, in RegisterInput, role models.Role) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.ensureFree(ctx, "", &email, &in.Username); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	user := &models.User{
		Email:    email,
		Username: in.Username,
		Name:     in.Name,
		Password: string(hashedPassword),
		Role:     role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "role": role}).Info("user registered")
	return user, nil
}

// ensureFree checks that email and username are not used by anyone but selfID.
func (s *AuthService) ensureFree(ctx context.Context, selfID string, email, username *string) error {
	if email != nil {
		existing, err := s.userRepo.GetByEmail(ctx, *email)
		if err != nil && apperrors.KindOf(err) != apperrors.KindNotFound {
			return err
		}
		if existing != nil && existing.ID != selfID {
			return apperrors.Conflict("email '%s' already registered", *email)
		}
	}
	if username != nil {
		existing, err := s.userRepo.GetByUsername(ctx, *username)
		if err != nil && apperrors.KindOf(err) != apperrors.KindNotFound {
			return err
		}
		if existing != nil && existing.ID != selfID {
			return apperrors.Conflict("username '%s' already taken", *username)
		}
	}
	return nil
}

// LoginUser authenticates by email and password.
func (s *AuthService) LoginUser(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	return s.issue(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued. A token can be rotated once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if _, err := s.parse(refreshToken, tokenTypeRefresh); err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}
	stored, err := s.tokenRepo.GetByToken(ctx, refreshToken)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return nil, apperrors.Unauthorized("invalid refresh token")
		}
		return nil, err
	}
	if stored.Revoked || !stored.ExpiresAt.After(s.now()) || stored.User == nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}
	if err := s.tokenRepo.Revoke(ctx, stored.ID); err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return nil, apperrors.Unauthorized("invalid refresh token")
		}
		return nil, err
	}

	result, err := s.issue(ctx, stored.User)
	if err != nil {
		return nil, err
	}
	return &result.TokenPair, nil
}

// Logout revokes every refresh token of the user.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.tokenRepo.RevokeAllForUser(ctx, userID)
}

func (s *AuthService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// UpdateProfile applies the non-nil fields of in to the user's profile.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		in.Email = &email
	}
	if err := s.ensureFree(ctx, user.ID, in.Email, in.Username); err != nil {
		return nil, err
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.Username != nil {
		user.Username = *in.Username
	}
	if in.Name != nil {
		user.Name = in.Name
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CleanupTokens deletes expired and revoked refresh tokens.
func (s *AuthService) CleanupTokens(ctx context.Context) (int64, error) {
	removed, err := s.tokenRepo.DeleteStale(ctx, s.now())
	if err != nil {
		return 0, err
	}
	logrus.WithField("removed", removed).Info("refresh tokens cleaned up")
	return removed, nil
}

// ValidateToken parses and validates an access token.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, tokenTypeAccess)
	if err != nil {
		logrus.WithError(err).Debug("token validation failed")
		return nil, apperrors.Unauthorized("invalid or expired token")
	}
	userID, _ := claims["user_id"].(string)
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	if userID == "" {
		return nil, apperrors.Unauthorized("invalid or expired token")
	}
	return &Claims{UserID: userID, Username: username, Role: models.Role(role)}, nil
}

func (s *AuthService) parse(tokenString, wantType string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if typ, _ := claims["typ"].(string); typ != wantType {
		return nil, errors.Errorf("expected %s token, got %q", wantType, typ)
	}
	return claims, nil
}

// issue signs an access token and persists a new refresh token for user.
func (s *AuthService) issue(ctx context.Context, user *models.User) (*AuthResult, error) {
	now := s.now()
	access, err := s.sign(jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     string(user.Role),
		"typ":      tokenTypeAccess,
		"exp":      now.Add(s.accessTTL).Unix(),
		"iat":      now.Unix(),
	})
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(s.refreshTTL)
	refresh, err := s.sign(jwt.MapClaims{
		"user_id": user.ID,
		"typ":     tokenTypeRefresh,
		"jti":     uuid.New().String(),
		"exp":     expiresAt.Unix(),
		"iat":     now.Unix(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.tokenRepo.Create(ctx, &models.RefreshToken{
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, err
	}

	return &AuthResult{User: user, TokenPair: TokenPair{AccessToken: access, RefreshToken: refresh}}, nil
}

func (s *AuthService) sign(claims jwt.MapClaims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate token")
	}
	return signed, nil
}
