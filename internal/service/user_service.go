package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/cp-duel/cp-duel-backend/internal/models"
	"github.com/cp-duel/cp-duel-backend/internal/repository"
	"github.com/cp-duel/cp-duel-backend/pkg/codeforces"
	"github.com/cp-duel/cp-duel-backend/pkg/jwt"
	"github.com/cp-duel/cp-duel-backend/pkg/logger"
)

// UserService 계정, 핸들 검증, 통계
type UserService struct {
	userRepo   *repository.UserRepository
	cf         *codeforces.Client
	jwtManager *jwt.JWTManager
}

func NewUserService(userRepo *repository.UserRepository, cf *codeforces.Client, jwtManager *jwt.JWTManager) *UserService {
	return &UserService{
		userRepo:   userRepo,
		cf:         cf,
		jwtManager: jwtManager,
	}
}

// AuthResponse 인증 응답
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register 회원 가입
func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*AuthResponse, error) {
	existing, err := s.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	existing, err = s.userRepo.FindByUsername(req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	hash, err := models.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(req.Username, req.Email, hash)
	if err != nil {
		return nil, err
	}

	token, err := s.jwtManager.Generate(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	logger.Info("User registered", "userId", user.ID, "username", user.Username)

	return &AuthResponse{Token: token, User: user}, nil
}

// Login 로그인
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.CheckPassword(req.Password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwtManager.Generate(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &AuthResponse{Token: token, User: user}, nil
}

// GetByID 사용자 조회
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// VerifyHandle Codeforces 핸들 검증
// 핸들 존재 확인 후 레이팅과 해결 문제 집합을 계정에 저장
func (s *UserService) VerifyHandle(ctx context.Context, userID, handle string) (*models.User, error) {
	taken, err := s.userRepo.FindByHandle(handle)
	if err != nil {
		return nil, fmt.Errorf("failed to check handle: %w", err)
	}
	if taken != nil && taken.ID != userID {
		return nil, ErrHandleTaken
	}

	info, err := s.cf.GetUserInfo(ctx, handle)
	if err != nil {
		if errors.Is(err, codeforces.ErrHandleNotFound) {
			return nil, ErrHandleNotFound
		}
		return nil, fmt.Errorf("failed to fetch handle info: %w", err)
	}

	solved, err := s.cf.SolvedProblems(ctx, info.Handle)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch solved problems: %w", err)
	}

	if err := s.userRepo.SetVerification(userID, info.Handle, info.Rating, solved); err != nil {
		return nil, err
	}

	logger.Info("Handle verified",
		"userId", userID,
		"handle", info.Handle,
		"rating", info.Rating,
		"solved", len(solved),
	)

	return s.GetByID(ctx, userID)
}

// UserStats 공개 통계
type UserStats struct {
	UserID      string  `json:"userId"`
	Username    string  `json:"username"`
	Handle      *string `json:"handle,omitempty"`
	Rating      int     `json:"rating"`
	GamesPlayed int     `json:"gamesPlayed"`
	GamesWon    int     `json:"gamesWon"`
	WinRate     float64 `json:"winRate"`
	SolvedCount int     `json:"solvedCount"`
}

// Stats 사용자 통계 조회
func (s *UserService) Stats(ctx context.Context, userID string) (*UserStats, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &UserStats{
		UserID:      user.ID,
		Username:    user.Username,
		Handle:      user.Handle,
		Rating:      user.Rating,
		GamesPlayed: user.GamesPlayed,
		GamesWon:    user.GamesWon,
		SolvedCount: len(user.SolvedProblems),
	}
	if user.GamesPlayed > 0 {
		stats.WinRate = float64(user.GamesWon) / float64(user.GamesPlayed)
	}

	return stats, nil
}

// Leaderboard 레이팅 순위
func (s *UserService) Leaderboard(ctx context.Context, limit int) ([]*models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.userRepo.Leaderboard(limit)
}
