package service

import "errors"

// Common service errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

// User service specific errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrHandleTaken        = errors.New("handle already taken by another user")
	ErrHandleNotFound     = errors.New("codeforces handle does not exist")
)

// Game service precondition errors (사용자 원인, 상태 변화 없음)
var (
	ErrNotVerified          = errors.New("codeforces handle not verified")
	ErrAlreadyInGame        = errors.New("already in a game")
	ErrNoActiveGame         = errors.New("no active game")
	ErrGameNotFound         = errors.New("game not found")
	ErrGameNotActive        = errors.New("game is not active")
	ErrInvalidProblemIndex  = errors.New("invalid problem index")
	ErrProblemAlreadySolved = errors.New("problem already solved")
	ErrFriendNotFound       = errors.New("friend not found or not verified")
	ErrSelfInvite           = errors.New("cannot play against yourself")
)

// External dependency degradation (엔진 자체는 복구 가능)
var (
	ErrProblemPoolUnavailable = errors.New("problem pool unavailable")
	ErrJudgeUnavailable       = errors.New("judge unavailable")
)
