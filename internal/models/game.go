package models

import "time"

type GameStatus string

const (
	GameStatusWaiting   GameStatus = "waiting"
	GameStatusActive    GameStatus = "active"
	GameStatusCompleted GameStatus = "completed"
	GameStatusCancelled GameStatus = "cancelled"
)

// IsTerminal completed/cancelled 여부
func (s GameStatus) IsTerminal() bool {
	return s == GameStatusCompleted || s == GameStatusCancelled
}

type GameMode string

const (
	GameModeOnline GameMode = "online"
	GameModeFriend GameMode = "friend"
)

// WinThreshold 승리에 필요한 해결 문제 수
const WinThreshold = 5

type Game struct {
	ID      string     `json:"id" db:"id"`
	Player1 string     `json:"player1" db:"player1_id"`
	Player2 *string    `json:"player2,omitempty" db:"player2_id"`
	Mode    GameMode   `json:"mode" db:"mode"`
	Status  GameStatus `json:"status" db:"status"`
	// Problems 매치 시작 시 고정되는 문제 목록 (JSONB 저장)
	Problems []GameProblem `json:"problems" db:"problems"`
	// CurrentProblemIndex 가장 멀리 해금된 문제 인덱스 (단조 증가)
	CurrentProblemIndex int        `json:"currentProblemIndex" db:"current_problem_index"`
	Winner              *string    `json:"winner,omitempty" db:"winner_id"`
	StartTime           *time.Time `json:"startTime,omitempty" db:"start_time"`
	EndTime             *time.Time `json:"endTime,omitempty" db:"end_time"`
	Duration            int        `json:"duration" db:"duration"` // 분 단위
	// Version 낙관적 동시성 토큰: 모든 변경은 버전 일치 조건부 UPDATE로만 저장
	Version   int       `json:"-" db:"version"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// GameProblem 게임에 복사된 문제와 제출 이력
type GameProblem struct {
	ContestID int        `json:"contestId"`
	Index     string     `json:"index"`
	Name      string     `json:"name"`
	Rating    int        `json:"rating"`
	SolvedBy  *string    `json:"solvedBy,omitempty"`
	SolvedAt  *time.Time `json:"solvedAt,omitempty"`
	// Submissions 추가 전용: 판정과 무관하게 모든 제출을 기록
	Submissions []GameSubmission `json:"submissions"`
}

// GameSubmission 게임 내 제출 기록
type GameSubmission struct {
	UserID          string    `json:"userId"`
	Code            string    `json:"code"`
	Language        string    `json:"language"`
	Verdict         string    `json:"verdict"`
	SubmittedAt     time.Time `json:"submittedAt"`
	ExecutionTimeMs int64     `json:"executionTimeMs"`
	MemoryUsedKb    int64     `json:"memoryUsedKb"`
}

// HasPlayer 해당 사용자가 참가자인지 확인
func (g *Game) HasPlayer(userID string) bool {
	if g.Player1 == userID {
		return true
	}
	return g.Player2 != nil && *g.Player2 == userID
}

// OpponentOf 상대 플레이어 ID (없으면 nil)
func (g *Game) OpponentOf(userID string) *string {
	if g.Player1 == userID {
		return g.Player2
	}
	if g.Player2 != nil && *g.Player2 == userID {
		p1 := g.Player1
		return &p1
	}
	return nil
}

// SolvedCountBy 해당 플레이어가 해결한 문제 수
func (g *Game) SolvedCountBy(userID string) int {
	count := 0
	for _, p := range g.Problems {
		if p.SolvedBy != nil && *p.SolvedBy == userID {
			count++
		}
	}
	return count
}
