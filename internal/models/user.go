package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // JSON에서 숨김
	AvatarURL    *string   `json:"avatarUrl,omitempty" db:"avatar_url"`
	IsVerified   bool      `json:"isVerified" db:"is_verified"`
	Handle       *string   `json:"handle,omitempty" db:"cf_handle"`
	Rating       int       `json:"rating" db:"rating"`
	GamesPlayed  int       `json:"gamesPlayed" db:"games_played"`
	GamesWon     int       `json:"gamesWon" db:"games_won"`
	// CurrentGameID 세션 포인터: 진행 중(waiting/active) 게임 참조, 없으면 nil
	CurrentGameID  *string         `json:"currentGameId,omitempty" db:"current_game_id"`
	SolvedProblems []SolvedProblem `json:"solvedProblems,omitempty" db:"solved_problems"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}

// SolvedProblem 사용자가 Codeforces에서 이미 해결한 문제 (값 복사본)
type SolvedProblem struct {
	ContestID int       `json:"contestId"`
	Index     string    `json:"index"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	SolvedAt  time.Time `json:"solvedAt"`
}

// SolvedKeySet (contestId+index) 키 집합으로 변환
func (u *User) SolvedKeySet() map[string]bool {
	keys := make(map[string]bool, len(u.SolvedProblems))
	for _, p := range u.SolvedProblems {
		keys[ProblemKey(p.ContestID, p.Index)] = true
	}
	return keys
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type VerifyHandleRequest struct {
	Handle string `json:"handle" binding:"required"`
}

// HashPassword 비밀번호 해싱
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword 비밀번호 검증
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}
