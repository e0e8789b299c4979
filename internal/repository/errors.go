package repository

import "errors"

// ErrVersionConflict 낙관적 동시성 충돌: 다른 요청이 먼저 게임을 변경함
var ErrVersionConflict = errors.New("game was modified concurrently")
