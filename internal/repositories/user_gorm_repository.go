package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tokostore/internal/models"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	return translate(r.db.WithContext(ctx).Create(user).Error, "user")
}

// Update saves the mutable profile fields of user.
func (r *GORMUserRepository) Update(ctx context.Context, user *models.User) error {
	res := r.db.WithContext(ctx).Model(user).Select("Email", "Username", "Name", "Password", "Role").Updates(user)
	if res.Error != nil {
		return translate(res.Error, "user")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "user")
	}
	return nil
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", email)
}

// GetByUsername retrieves a user by their username from the database.
func (r *GORMUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "username = ?", username)
}

// AdminExists reports whether any administrator account exists.
func (r *GORMUserRepository) AdminExists(ctx context.Context) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error
	if err != nil {
		return false, translate(err, "user")
	}
	return count > 0, nil
}

func (r *GORMUserRepository) first(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, query, arg).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

// GORMRefreshTokenRepository is a GORM implementation of RefreshTokenRepository.
type GORMRefreshTokenRepository struct {
	db *gorm.DB
}

func NewGORMRefreshTokenRepository(db *gorm.DB) *GORMRefreshTokenRepository {
	return &GORMRefreshTokenRepository{db: db}
}

func (r *GORMRefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	return translate(r.db.WithContext(ctx).Create(token).Error, "refresh token")
}

func (r *GORMRefreshTokenRepository) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	if err := r.db.WithContext(ctx).Preload("User").First(&rt, "token = ?", token).Error; err != nil {
		return nil, translate(err, "refresh token")
	}
	return &rt, nil
}

// Revoke marks one token revoked. Revoking an already revoked token is an error
// so a token can be rotated at most once.
func (r *GORMRefreshTokenRepository) Revoke(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("id = ? AND revoked = ?", id, false).
		Update("revoked", true)
	if res.Error != nil {
		return translate(res.Error, "refresh token")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "refresh token")
	}
	return nil
}

func (r *GORMRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
	return translate(err, "refresh token")
}

func (r *GORMRefreshTokenRepository) DeleteStale(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("revoked = ? OR expires_at < ?", true, now).Delete(&models.RefreshToken{})
	if res.Error != nil {
		return 0, translate(res.Error, "refresh token")
	}
	return res.RowsAffected, nil
}
