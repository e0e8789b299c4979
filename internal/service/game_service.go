package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cp-duel/cp-duel-backend/internal/models"
	"github.com/cp-duel/cp-duel-backend/internal/repository"
	"github.com/cp-duel/cp-duel-backend/pkg/judge"
	"github.com/cp-duel/cp-duel-backend/pkg/logger"
)

// maxUpdateRetries 버전 충돌 시 재시도 횟수
const maxUpdateRetries = 3

// Notification 이벤트 이름
const (
	EventOpponentJoined = "opponent_joined"
	EventProblemSolved  = "problem_solved"
	EventGameEnded      = "game_ended"
	EventGameRequest    = "game_request"
)

// GameRepository 게임 레지스트리 (낙관적 동시성 업데이트 포함)
type GameRepository interface {
	Create(game *models.Game) error
	FindByID(id string) (*models.Game, error)
	FindWaiting(excludePlayerID string) (*models.Game, error)
	Update(game *models.Game) error
	FindNonTerminalByPlayer(playerID string) ([]*models.Game, error)
	FindCompletedByPlayer(playerID string, limit int) ([]*models.Game, error)
}

// UserStore 플레이어 세션 상태 및 전적
type UserStore interface {
	FindByID(id string) (*models.User, error)
	FindByHandle(handle string) (*models.User, error)
	SetCurrentGame(userID, gameID string) error
	ClearCurrentGame(userID string) error
	ApplyGameResult(userID string, won bool) error
}

// JudgeClient 외부 채점 서비스
type JudgeClient interface {
	Execute(ctx context.Context, req judge.ExecuteRequest) (*judge.ExecuteResponse, error)
}

// GameNotifier 실시간 알림 중계 (fire-and-forget, 전달 실패는 상태 전이에 영향 없음)
type GameNotifier interface {
	NotifyGame(gameID, event string, payload interface{})
	NotifyUser(userID, event string, payload interface{})
}

// GameService 매치 라이프사이클 엔진
// waiting → active → {completed, cancelled} 상태 머신을 관리
type GameService struct {
	gameRepo GameRepository
	userRepo UserStore
	selector *ProblemSelector
	judge    JudgeClient
	notifier GameNotifier
}

func NewGameService(
	gameRepo GameRepository,
	userRepo UserStore,
	selector *ProblemSelector,
	judgeClient JudgeClient,
	notifier GameNotifier,
) *GameService {
	return &GameService{
		gameRepo: gameRepo,
		userRepo: userRepo,
		selector: selector,
		judge:    judgeClient,
		notifier: notifier,
	}
}

// MatchResult 매치 요청 결과
type MatchResult struct {
	Waiting  bool         `json:"waiting,omitempty"`
	Game     *models.Game `json:"game"`
	Opponent *models.User `json:"opponent,omitempty"`
}

// FindOnline 온라인 매치 요청
// 대기 중인 게임이 있으면 player2로 참가하여 시작, 없으면 새 대기 게임 생성 (FIFO)
func (s *GameService) FindOnline(ctx context.Context, userID string) (*MatchResult, error) {
	user, err := s.requireMatchable(userID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		waiting, err := s.gameRepo.FindWaiting(userID)
		if err != nil {
			return nil, fmt.Errorf("failed to find waiting game: %w", err)
		}

		if waiting == nil {
			game := &models.Game{
				Player1:  userID,
				Mode:     models.GameModeOnline,
				Status:   models.GameStatusWaiting,
				Problems: []models.GameProblem{},
			}
			if err := s.gameRepo.Create(game); err != nil {
				return nil, fmt.Errorf("failed to create game: %w", err)
			}
			if err := s.userRepo.SetCurrentGame(userID, game.ID); err != nil {
				return nil, fmt.Errorf("failed to set current game: %w", err)
			}

			logger.Info("Waiting game created", "gameId", game.ID, "player", userID)

			return &MatchResult{Waiting: true, Game: game}, nil
		}

		host, err := s.userRepo.FindByID(waiting.Player1)
		if err != nil {
			return nil, fmt.Errorf("failed to load host: %w", err)
		}
		if host == nil {
			return nil, ErrUserNotFound
		}

		problems, err := s.selector.Select(ctx, user.SolvedKeySet(), host.SolvedKeySet())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProblemPoolUnavailable, err)
		}
		// 문제 없이 active로 전이하면 복구 불가능한 게임이 됨 - 참가 자체를 거부
		if len(problems) == 0 {
			return nil, ErrProblemPoolUnavailable
		}

		now := time.Now()
		joiner := userID
		waiting.Player2 = &joiner
		waiting.Status = models.GameStatusActive
		waiting.Problems = problems
		waiting.StartTime = &now

		if err := s.gameRepo.Update(waiting); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				// 다른 플레이어가 먼저 참가함 - 다음 대기 게임으로 재시도
				continue
			}
			return nil, fmt.Errorf("failed to join game: %w", err)
		}

		if err := s.userRepo.SetCurrentGame(waiting.Player1, waiting.ID); err != nil {
			return nil, fmt.Errorf("failed to set current game: %w", err)
		}
		if err := s.userRepo.SetCurrentGame(userID, waiting.ID); err != nil {
			return nil, fmt.Errorf("failed to set current game: %w", err)
		}

		s.notifyGame(waiting.ID, EventOpponentJoined, map[string]interface{}{
			"gameId": waiting.ID,
			"opponent": map[string]interface{}{
				"id":       user.ID,
				"username": user.Username,
				"handle":   user.Handle,
				"rating":   user.Rating,
			},
		})

		logger.Info("Players matched",
			"gameId", waiting.ID,
			"player1", waiting.Player1,
			"player2", userID,
			"problems", len(problems),
		)

		return &MatchResult{Game: waiting, Opponent: host}, nil
	}

	return nil, fmt.Errorf("failed to join game: %w", repository.ErrVersionConflict)
}

// CreateFriend 친구 초대 게임 생성 (바로 active로 시작)
func (s *GameService) CreateFriend(ctx context.Context, userID, friendHandle string) (*MatchResult, error) {
	if friendHandle == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.requireMatchable(userID)
	if err != nil {
		return nil, err
	}

	friend, err := s.userRepo.FindByHandle(friendHandle)
	if err != nil {
		return nil, fmt.Errorf("failed to find friend: %w", err)
	}
	if friend == nil {
		return nil, ErrFriendNotFound
	}
	if friend.ID == userID {
		return nil, ErrSelfInvite
	}
	if friend.CurrentGameID != nil {
		return nil, ErrAlreadyInGame
	}

	problems, err := s.selector.Select(ctx, user.SolvedKeySet(), friend.SolvedKeySet())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProblemPoolUnavailable, err)
	}
	if len(problems) == 0 {
		return nil, ErrProblemPoolUnavailable
	}

	now := time.Now()
	friendID := friend.ID
	game := &models.Game{
		Player1:   userID,
		Player2:   &friendID,
		Mode:      models.GameModeFriend,
		Status:    models.GameStatusActive,
		Problems:  problems,
		StartTime: &now,
	}
	if err := s.gameRepo.Create(game); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	if err := s.userRepo.SetCurrentGame(userID, game.ID); err != nil {
		return nil, fmt.Errorf("failed to set current game: %w", err)
	}
	if err := s.userRepo.SetCurrentGame(friendID, game.ID); err != nil {
		return nil, fmt.Errorf("failed to set current game: %w", err)
	}

	s.notifyUser(friendID, EventGameRequest, map[string]interface{}{
		"gameId": game.ID,
		"from": map[string]interface{}{
			"id":       user.ID,
			"username": user.Username,
			"handle":   user.Handle,
		},
	})

	logger.Info("Friend game created", "gameId", game.ID, "player1", userID, "player2", friendID)

	return &MatchResult{Game: game, Opponent: friend}, nil
}

// Current 현재 게임 조회 (pull 기반 상태 복구 경로)
func (s *GameService) Current(ctx context.Context, userID string) (*models.Game, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.CurrentGameID == nil {
		return nil, nil
	}

	game, err := s.gameRepo.FindByID(*user.CurrentGameID)
	if err != nil {
		return nil, fmt.Errorf("failed to find game: %w", err)
	}
	if game == nil {
		// 게임이 사라졌으면 포인터 정리
		if err := s.userRepo.ClearCurrentGame(userID); err != nil {
			logger.Warn("Failed to clear stale game pointer", "user", userID, "error", err)
		}
		return nil, nil
	}

	return game, nil
}

// SubmitResult 제출 결과
type SubmitResult struct {
	Result *judge.ExecuteResponse `json:"result"`
	Game   *models.Game           `json:"game"`
}

// Submit 솔루션 제출 및 판정 반영
// 채점은 한 번만 수행하고, 게임 기록 반영은 버전 충돌 시 최신 상태를 다시 읽어 재시도
func (s *GameService) Submit(ctx context.Context, userID string, problemIndex int, code, language string) (*SubmitResult, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.CurrentGameID == nil {
		return nil, ErrNoActiveGame
	}

	game, err := s.gameRepo.FindByID(*user.CurrentGameID)
	if err != nil {
		return nil, fmt.Errorf("failed to find game: %w", err)
	}
	if game == nil {
		return nil, ErrNoActiveGame
	}

	if err := checkSubmittable(game, problemIndex); err != nil {
		return nil, err
	}

	problem := game.Problems[problemIndex]
	result, err := s.judge.Execute(ctx, judge.ExecuteRequest{
		Code:      code,
		Language:  language,
		ContestID: problem.ContestID,
		Index:     problem.Index,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJudgeUnavailable, err)
	}

	for attempt := 0; ; attempt++ {
		accepted := s.applySubmission(game, userID, problemIndex, code, language, result)

		err := s.gameRepo.Update(game)
		if err == nil {
			s.afterSubmission(game, userID, problemIndex, accepted)
			return &SubmitResult{Result: result, Game: game}, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, fmt.Errorf("failed to save submission: %w", err)
		}
		if attempt+1 >= maxUpdateRetries {
			return nil, fmt.Errorf("failed to save submission: %w", err)
		}

		// 상대 제출과 경합 - 최신 상태로 전제조건 재검증 후 재적용
		game, err = s.gameRepo.FindByID(game.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload game: %w", err)
		}
		if game == nil {
			return nil, ErrNoActiveGame
		}
		if err := checkSubmittable(game, problemIndex); err != nil {
			return nil, err
		}
	}
}

// checkSubmittable 제출 전제조건 검증
func checkSubmittable(game *models.Game, problemIndex int) error {
	if game.Status != models.GameStatusActive {
		return ErrGameNotActive
	}
	if problemIndex < 0 || problemIndex >= len(game.Problems) {
		return ErrInvalidProblemIndex
	}
	if game.Problems[problemIndex].SolvedBy != nil {
		return ErrProblemAlreadySolved
	}
	return nil
}

// applySubmission 제출 기록과 (Accepted인 경우) 해결/승리 전이를 게임에 적용
func (s *GameService) applySubmission(
	game *models.Game,
	userID string,
	problemIndex int,
	code, language string,
	result *judge.ExecuteResponse,
) bool {
	now := time.Now()
	problem := &game.Problems[problemIndex]

	// 판정과 무관하게 제출은 항상 기록
	problem.Submissions = append(problem.Submissions, models.GameSubmission{
		UserID:          userID,
		Code:            code,
		Language:        language,
		Verdict:         result.Verdict,
		SubmittedAt:     now,
		ExecutionTimeMs: result.ExecutionTimeMs,
		MemoryUsedKb:    result.MemoryUsedKb,
	})

	if result.Verdict != judge.VerdictAccepted {
		return false
	}

	solver := userID
	problem.SolvedBy = &solver
	problem.SolvedAt = &now

	if problemIndex+1 > game.CurrentProblemIndex {
		game.CurrentProblemIndex = problemIndex + 1
	}

	if game.SolvedCountBy(userID) >= models.WinThreshold {
		winner := userID
		game.Winner = &winner
		game.Status = models.GameStatusCompleted
		game.EndTime = &now
		game.Duration = gameDuration(game.StartTime, now)
	}

	return true
}

// afterSubmission 저장 성공 후 전적 반영 및 알림 (상태 전이와 무관한 부수 효과)
func (s *GameService) afterSubmission(game *models.Game, userID string, problemIndex int, accepted bool) {
	if !accepted {
		return
	}

	s.notifyGame(game.ID, EventProblemSolved, map[string]interface{}{
		"gameId":       game.ID,
		"problemIndex": problemIndex,
		"problemName":  game.Problems[problemIndex].Name,
		"solvedBy":     userID,
	})

	if game.Status != models.GameStatusCompleted {
		return
	}

	s.applyResults(game, userID)

	s.notifyGame(game.ID, EventGameEnded, map[string]interface{}{
		"gameId": game.ID,
		"winner": userID,
		"reason": "threshold",
	})

	logger.Info("Game won by threshold",
		"gameId", game.ID,
		"winner", userID,
		"duration", game.Duration,
	)
}

// Leave 게임 이탈
// active면 상대가 즉시 승리(몰수), waiting이면 세션 포인터만 해제
func (s *GameService) Leave(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.CurrentGameID == nil {
		return ErrNoActiveGame
	}

	game, err := s.gameRepo.FindByID(*user.CurrentGameID)
	if err != nil {
		return fmt.Errorf("failed to find game: %w", err)
	}
	if game == nil {
		return s.userRepo.ClearCurrentGame(userID)
	}

	if game.Status == models.GameStatusActive {
		return s.forfeit(game, userID, "left")
	}

	return s.userRepo.ClearCurrentGame(userID)
}

// Cancel 자기 게임 취소
// active면 Leave와 동일한 몰수 처리, 아니면 cancelled로 전이 (전적 변화 없음)
func (s *GameService) Cancel(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.CurrentGameID == nil {
		return ErrNoActiveGame
	}

	game, err := s.gameRepo.FindByID(*user.CurrentGameID)
	if err != nil {
		return fmt.Errorf("failed to find game: %w", err)
	}
	if game == nil {
		return s.userRepo.ClearCurrentGame(userID)
	}

	if game.Status == models.GameStatusActive {
		return s.forfeit(game, userID, "cancelled")
	}

	return s.cancelGame(game)
}

// CancelAll 플레이어의 모든 비종결 게임 일괄 취소 (관리용, 몰수 없음)
func (s *GameService) CancelAll(ctx context.Context, userID string) error {
	if err := s.userRepo.ClearCurrentGame(userID); err != nil {
		return fmt.Errorf("failed to clear current game: %w", err)
	}

	games, err := s.gameRepo.FindNonTerminalByPlayer(userID)
	if err != nil {
		return fmt.Errorf("failed to find games: %w", err)
	}

	for _, game := range games {
		if err := s.cancelGame(game); err != nil {
			logger.Error("Failed to cancel game", "gameId", game.ID, "error", err)
		}
	}

	return nil
}

// History 완료된 게임 이력 (최신 20개)
func (s *GameService) History(ctx context.Context, userID string) ([]*models.Game, error) {
	games, err := s.gameRepo.FindCompletedByPlayer(userID, 20)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return games, nil
}

// forfeit active 게임 몰수 처리: 남은 플레이어 승리, 이탈자 패배
func (s *GameService) forfeit(game *models.Game, leaverID, reason string) error {
	for attempt := 0; ; attempt++ {
		opponent := game.OpponentOf(leaverID)
		if opponent == nil {
			// active 게임은 항상 양쪽 플레이어가 있어야 하지만, 방어적으로 취소 처리
			return s.cancelGame(game)
		}

		now := time.Now()
		winner := *opponent
		game.Winner = &winner
		game.Status = models.GameStatusCompleted
		game.EndTime = &now
		game.Duration = gameDuration(game.StartTime, now)

		err := s.gameRepo.Update(game)
		if err == nil {
			s.applyResults(game, winner)

			s.notifyGame(game.ID, EventGameEnded, map[string]interface{}{
				"gameId": game.ID,
				"winner": winner,
				"reason": reason,
			})

			logger.Info("Game forfeited", "gameId", game.ID, "leaver", leaverID, "winner", winner)

			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return fmt.Errorf("failed to forfeit game: %w", err)
		}
		if attempt+1 >= maxUpdateRetries {
			return fmt.Errorf("failed to forfeit game: %w", err)
		}

		game, err = s.gameRepo.FindByID(game.ID)
		if err != nil {
			return fmt.Errorf("failed to reload game: %w", err)
		}
		if game == nil || game.Status.IsTerminal() {
			// 경합 중 다른 경로로 이미 종료됨 - 몰수 불필요
			return nil
		}
	}
}

// cancelGame 비활성 게임 취소: cancelled 전이 + 양쪽 포인터 해제, 전적 변화 없음
func (s *GameService) cancelGame(game *models.Game) error {
	for attempt := 0; ; attempt++ {
		now := time.Now()
		game.Status = models.GameStatusCancelled
		game.EndTime = &now

		err := s.gameRepo.Update(game)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return fmt.Errorf("failed to cancel game: %w", err)
		}
		if attempt+1 >= maxUpdateRetries {
			return fmt.Errorf("failed to cancel game: %w", err)
		}

		game, err = s.gameRepo.FindByID(game.ID)
		if err != nil {
			return fmt.Errorf("failed to reload game: %w", err)
		}
		if game == nil || game.Status.IsTerminal() {
			return nil
		}
	}

	if err := s.userRepo.ClearCurrentGame(game.Player1); err != nil {
		logger.Warn("Failed to clear game pointer", "user", game.Player1, "error", err)
	}
	if game.Player2 != nil {
		if err := s.userRepo.ClearCurrentGame(*game.Player2); err != nil {
			logger.Warn("Failed to clear game pointer", "user", *game.Player2, "error", err)
		}
	}

	logger.Info("Game cancelled", "gameId", game.ID)

	return nil
}

// requireMatchable 매치 요청 전제조건: 검증된 핸들 + 현재 게임 없음
func (s *GameService) requireMatchable(userID string) (*models.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.IsVerified {
		return nil, ErrNotVerified
	}
	if user.CurrentGameID != nil {
		return nil, ErrAlreadyInGame
	}
	return user, nil
}

// applyResults 승패 전적 반영 및 양쪽 세션 포인터 해제
func (s *GameService) applyResults(game *models.Game, winnerID string) {
	if err := s.userRepo.ApplyGameResult(winnerID, true); err != nil {
		logger.Error("Failed to apply winner result", "user", winnerID, "error", err)
	}
	if loser := game.OpponentOf(winnerID); loser != nil {
		if err := s.userRepo.ApplyGameResult(*loser, false); err != nil {
			logger.Error("Failed to apply loser result", "user", *loser, "error", err)
		}
	}
}

func (s *GameService) notifyGame(gameID, event string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyGame(gameID, event, payload)
}

func (s *GameService) notifyUser(userID, event string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyUser(userID, event, payload)
}

// gameDuration 경과 시간 (분, 내림)
func gameDuration(start *time.Time, end time.Time) int {
	if start == nil {
		return 0
	}
	return int(end.Sub(*start).Minutes())
}
