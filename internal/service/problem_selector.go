package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cp-duel/cp-duel-backend/internal/models"
)

// ProblemSource 외부 문제 풀 (Codeforces 문제셋)
type ProblemSource interface {
	Problems(ctx context.Context) ([]models.PoolProblem, error)
}

// DefaultTiers 난이도 티어: 티어당 한 문제씩 목표
var DefaultTiers = []int{800, 1200, 1400, 1600, 1800}

// ProblemCount 한 게임의 문제 수
const ProblemCount = 5

// ProblemSelector 두 플레이어 모두 풀지 않은 문제 5개를 선택
type ProblemSelector struct {
	source ProblemSource
	tiers  []int

	mu  sync.Mutex
	rng *rand.Rand
}

func NewProblemSelector(source ProblemSource) *ProblemSelector {
	return &ProblemSelector{
		source: source,
		tiers:  DefaultTiers,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Select 문제 선택
// 1. 양쪽 해결 집합에 없는 레이팅 있는 문제만 후보로
// 2. 티어마다 동일 레이팅 후보 중 하나를 균등 랜덤 선택
// 3. 5개 미만이면 남은 후보에서 비복원 랜덤으로 채움 (레이팅 무관)
// 풀 조회 실패 시 에러 반환, 호출자는 게임을 active로 전이시키면 안 됨
func (s *ProblemSelector) Select(ctx context.Context, solvedA, solvedB map[string]bool) ([]models.GameProblem, error) {
	pool, err := s.source.Problems(ctx)
	if err != nil {
		return nil, err
	}

	available := make([]models.PoolProblem, 0, len(pool))
	for _, p := range pool {
		if p.Rating <= 0 {
			continue
		}
		key := p.Key()
		if solvedA[key] || solvedB[key] {
			continue
		}
		available = append(available, p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	selected := make([]models.GameProblem, 0, ProblemCount)
	used := make(map[string]bool)

	// 티어별 선택
	for _, tier := range s.tiers {
		var candidates []models.PoolProblem
		for _, p := range available {
			if p.Rating == tier && !used[p.Key()] {
				candidates = append(candidates, p)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		chosen := candidates[s.rng.Intn(len(candidates))]
		used[chosen.Key()] = true
		selected = append(selected, toGameProblem(chosen))
	}

	// 백필: 남은 후보에서 비복원 랜덤 추출
	if len(selected) < ProblemCount {
		var remaining []models.PoolProblem
		for _, p := range available {
			if !used[p.Key()] {
				remaining = append(remaining, p)
			}
		}
		for len(selected) < ProblemCount && len(remaining) > 0 {
			i := s.rng.Intn(len(remaining))
			chosen := remaining[i]
			remaining[i] = remaining[len(remaining)-1]
			remaining = remaining[:len(remaining)-1]
			used[chosen.Key()] = true
			selected = append(selected, toGameProblem(chosen))
		}
	}

	return selected, nil
}

// toGameProblem 풀 문제를 게임용 값 복사본으로 변환 (제출 이력/해결자 없음)
func toGameProblem(p models.PoolProblem) models.GameProblem {
	return models.GameProblem{
		ContestID:   p.ContestID,
		Index:       p.Index,
		Name:        p.Name,
		Rating:      p.Rating,
		Submissions: []models.GameSubmission{},
	}
}
