package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/cp-duel/cp-duel-backend/internal/models"
	"github.com/cp-duel/cp-duel-backend/pkg/database"
)

type GameRepository struct {
	db *database.DB
}

func NewGameRepository(db *database.DB) *GameRepository {
	return &GameRepository{db: db}
}

const gameColumns = `
	id, player1_id, player2_id, mode, status, problems,
	current_problem_index, winner_id, start_time, end_time,
	duration, version, created_at
`

// Create 새 게임 생성
func (r *GameRepository) Create(game *models.Game) error {
	problems, err := json.Marshal(game.Problems)
	if err != nil {
		return fmt.Errorf("failed to marshal problems: %w", err)
	}

	game.ID = uuid.NewString()

	query := `
		INSERT INTO games (id, player1_id, player2_id, mode, status, problems, start_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING version, created_at
	`

	err = r.db.QueryRow(query,
		game.ID,
		game.Player1,
		game.Player2,
		game.Mode,
		game.Status,
		problems,
		game.StartTime,
	).Scan(&game.Version, &game.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}

	return nil
}

// FindByID ID로 게임 찾기
func (r *GameRepository) FindByID(id string) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`

	game, err := r.scanGame(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find game: %w", err)
	}

	return game, nil
}

// FindWaiting FIFO 순서로 대기 중인 온라인 게임 찾기 (자기 자신 게임 제외)
func (r *GameRepository) FindWaiting(excludePlayerID string) (*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE status = 'waiting'
		  AND mode = 'online'
		  AND player1_id != $1
		ORDER BY created_at ASC
		LIMIT 1
	`

	game, err := r.scanGame(r.db.QueryRow(query, excludePlayerID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find waiting game: %w", err)
	}

	return game, nil
}

// Update 버전 일치 조건부 업데이트 (낙관적 동시성)
// 다른 요청이 먼저 저장한 경우 ErrVersionConflict 반환, 호출자가 재시도
func (r *GameRepository) Update(game *models.Game) error {
	problems, err := json.Marshal(game.Problems)
	if err != nil {
		return fmt.Errorf("failed to marshal problems: %w", err)
	}

	query := `
		UPDATE games
		SET player2_id = $1,
		    status = $2,
		    problems = $3,
		    current_problem_index = $4,
		    winner_id = $5,
		    start_time = $6,
		    end_time = $7,
		    duration = $8,
		    version = version + 1
		WHERE id = $9 AND version = $10
	`

	result, err := r.db.Exec(query,
		game.Player2,
		game.Status,
		problems,
		game.CurrentProblemIndex,
		game.Winner,
		game.StartTime,
		game.EndTime,
		game.Duration,
		game.ID,
		game.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	game.Version++

	return nil
}

// FindNonTerminalByPlayer 플레이어가 참가 중인 waiting/active 게임 목록
func (r *GameRepository) FindNonTerminalByPlayer(playerID string) ([]*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE (player1_id = $1 OR player2_id = $1)
		  AND status IN ('waiting', 'active')
		ORDER BY created_at ASC
	`

	return r.queryGames(query, playerID)
}

// FindCompletedByPlayer 플레이어의 완료된 게임 목록 (최신순)
func (r *GameRepository) FindCompletedByPlayer(playerID string, limit int) ([]*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE (player1_id = $1 OR player2_id = $1)
		  AND status = 'completed'
		ORDER BY created_at DESC
		LIMIT $2
	`

	return r.queryGames(query, playerID, limit)
}

func (r *GameRepository) queryGames(query string, args ...interface{}) ([]*models.Game, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		game, err := r.scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, game)
	}

	return games, rows.Err()
}

// scanner database/sql의 Row/Rows 공통 인터페이스
type scanner interface {
	Scan(dest ...interface{}) error
}

func (r *GameRepository) scanGame(row scanner) (*models.Game, error) {
	game := &models.Game{}
	var problems []byte

	err := row.Scan(
		&game.ID,
		&game.Player1,
		&game.Player2,
		&game.Mode,
		&game.Status,
		&problems,
		&game.CurrentProblemIndex,
		&game.Winner,
		&game.StartTime,
		&game.EndTime,
		&game.Duration,
		&game.Version,
		&game.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(problems) > 0 {
		if err := json.Unmarshal(problems, &game.Problems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal problems: %w", err)
		}
	}

	return game, nil
}
