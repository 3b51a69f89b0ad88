package repository

import (
	"context"

	"github.com/hamdan-dev/tazkir/internal/database"
	"github.com/hamdan-dev/tazkir/internal/models"
)

const userColumns = `user_id, user_name, language, timezone, is_active, is_banned, created_at`

// UserRepository is the user directory: language, timezone, and account flags
// the scheduler consults before delivering.
type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreate upserts the user on first contact, keeping the stored name
// fresh.
func (r *UserRepository) GetOrCreate(ctx context.Context, userID int64, userName, language string) (*models.User, error) {
	if language != models.LangArabic {
		language = models.LangEnglish
	}
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO users (user_id, user_name, language) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET user_name = EXCLUDED.user_name
		 RETURNING `+userColumns,
		userID, userName, language,
	).Scan(&user.UserID, &user.UserName, &user.Language, &user.Timezone,
		&user.IsActive, &user.IsBanned, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) Get(ctx context.Context, userID int64) (*models.User, error) {
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1`,
		userID,
	).Scan(&user.UserID, &user.UserName, &user.Language, &user.Timezone,
		&user.IsActive, &user.IsBanned, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) SetLanguage(ctx context.Context, userID int64, language string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET language = $2 WHERE user_id = $1`, userID, language)
	return err
}

func (r *UserRepository) SetTimezone(ctx context.Context, userID int64, timezone string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET timezone = $2 WHERE user_id = $1`, userID, timezone)
	return err
}
