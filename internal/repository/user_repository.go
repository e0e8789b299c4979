package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cp-duel/cp-duel-backend/internal/models"
	"github.com/cp-duel/cp-duel-backend/pkg/database"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, username, email, password_hash, avatar_url, is_verified,
	cf_handle, rating, games_played, games_won, current_game_id,
	solved_problems, created_at, updated_at
`

// Create 새 사용자 생성
func (r *UserRepository) Create(username, email, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	user, err := r.scanUser(r.db.QueryRow(query, username, email, passwordHash))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// FindByID ID로 사용자 찾기
func (r *UserRepository) FindByID(id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.findOne(query, id)
}

// FindByEmail 이메일로 사용자 찾기
func (r *UserRepository) FindByEmail(email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.findOne(query, email)
}

// FindByUsername 사용자명으로 찾기
func (r *UserRepository) FindByUsername(username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.findOne(query, username)
}

// FindByHandle 검증된 Codeforces 핸들로 사용자 찾기
func (r *UserRepository) FindByHandle(handle string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE cf_handle = $1 AND is_verified = true`
	return r.findOne(query, handle)
}

// SetVerification 핸들 검증 완료: 핸들, 레이팅, 해결 문제 집합 저장
func (r *UserRepository) SetVerification(id, handle string, rating int, solved []models.SolvedProblem) error {
	data, err := json.Marshal(solved)
	if err != nil {
		return fmt.Errorf("failed to marshal solved problems: %w", err)
	}

	query := `
		UPDATE users
		SET cf_handle = $1,
		    is_verified = true,
		    rating = $2,
		    solved_problems = $3,
		    updated_at = NOW()
		WHERE id = $4
	`

	if _, err := r.db.Exec(query, handle, rating, data, id); err != nil {
		return fmt.Errorf("failed to set verification: %w", err)
	}

	return nil
}

// SetCurrentGame 세션 포인터 설정
func (r *UserRepository) SetCurrentGame(userID, gameID string) error {
	query := `UPDATE users SET current_game_id = $1, updated_at = NOW() WHERE id = $2`

	if _, err := r.db.Exec(query, gameID, userID); err != nil {
		return fmt.Errorf("failed to set current game: %w", err)
	}

	return nil
}

// ClearCurrentGame 세션 포인터 해제
func (r *UserRepository) ClearCurrentGame(userID string) error {
	query := `UPDATE users SET current_game_id = NULL, updated_at = NOW() WHERE id = $1`

	if _, err := r.db.Exec(query, userID); err != nil {
		return fmt.Errorf("failed to clear current game: %w", err)
	}

	return nil
}

// ApplyGameResult 게임 결과 반영: 전적 증가 + 세션 포인터 해제를 한 문장으로
func (r *UserRepository) ApplyGameResult(userID string, won bool) error {
	wonInc := 0
	if won {
		wonInc = 1
	}

	query := `
		UPDATE users
		SET games_played = games_played + 1,
		    games_won = games_won + $1,
		    current_game_id = NULL,
		    updated_at = NOW()
		WHERE id = $2
	`

	if _, err := r.db.Exec(query, wonInc, userID); err != nil {
		return fmt.Errorf("failed to apply game result: %w", err)
	}

	return nil
}

// Leaderboard 검증된 사용자 상위 목록 (레이팅, 승수 순)
func (r *UserRepository) Leaderboard(limit int) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE is_verified = true
		ORDER BY rating DESC, games_won DESC
		LIMIT $1
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (r *UserRepository) findOne(query string, arg interface{}) (*models.User, error) {
	user, err := r.scanUser(r.db.QueryRow(query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

func (r *UserRepository) scanUser(row scanner) (*models.User, error) {
	user := &models.User{}
	var solved []byte

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.IsVerified,
		&user.Handle,
		&user.Rating,
		&user.GamesPlayed,
		&user.GamesWon,
		&user.CurrentGameID,
		&solved,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(solved) > 0 {
		if err := json.Unmarshal(solved, &user.SolvedProblems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal solved problems: %w", err)
		}
	}

	return user, nil
}
