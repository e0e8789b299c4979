package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/cp-duel/cp-duel-backend/internal/models"
)

func poolWithTiers(perTier int) []models.PoolProblem {
	var pool []models.PoolProblem
	for t, rating := range DefaultTiers {
		for i := 0; i < perTier; i++ {
			pool = append(pool, models.PoolProblem{
				ContestID: 1000 + t*100 + i,
				Index:     "A",
				Name:      fmt.Sprintf("Problem %d-%d", rating, i),
				Rating:    rating,
			})
		}
	}
	return pool
}

func TestSelect_OnePerTier(t *testing.T) {
	selector := NewProblemSelector(&fakeSource{problems: poolWithTiers(3)})

	problems, err := selector.Select(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	if len(problems) != ProblemCount {
		t.Fatalf("Expected %d problems, got %d", ProblemCount, len(problems))
	}

	for i, tier := range DefaultTiers {
		if problems[i].Rating != tier {
			t.Errorf("Problem %d: expected rating %d, got %d", i, tier, problems[i].Rating)
		}
	}
}

func TestSelect_ExcludesSolvedProblems(t *testing.T) {
	pool := poolWithTiers(1)
	selector := NewProblemSelector(&fakeSource{problems: pool})

	// player A solved the 800 problem, player B solved the 1200 one
	solvedA := map[string]bool{pool[0].Key(): true}
	solvedB := map[string]bool{pool[1].Key(): true}

	problems, err := selector.Select(context.Background(), solvedA, solvedB)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	for _, p := range problems {
		key := models.ProblemKey(p.ContestID, p.Index)
		if solvedA[key] || solvedB[key] {
			t.Errorf("Selected problem %s was already solved", key)
		}
	}
}

func TestSelect_BackfillsMissingTiers(t *testing.T) {
	// no 1600/1800 problems, but plenty of 800s to fill from
	var pool []models.PoolProblem
	for i := 0; i < 10; i++ {
		pool = append(pool, models.PoolProblem{ContestID: 2000 + i, Index: "A", Rating: 800})
	}
	pool = append(pool,
		models.PoolProblem{ContestID: 3000, Index: "A", Rating: 1200},
		models.PoolProblem{ContestID: 3001, Index: "A", Rating: 1400},
	)

	selector := NewProblemSelector(&fakeSource{problems: pool})

	problems, err := selector.Select(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	if len(problems) != ProblemCount {
		t.Fatalf("Expected %d problems after backfill, got %d", ProblemCount, len(problems))
	}

	seen := make(map[string]bool)
	for _, p := range problems {
		key := models.ProblemKey(p.ContestID, p.Index)
		if seen[key] {
			t.Errorf("Problem %s selected twice", key)
		}
		seen[key] = true
	}
}

func TestSelect_BackfillsWhenTierSolvedOut(t *testing.T) {
	pool := poolWithTiers(2)
	selector := NewProblemSelector(&fakeSource{problems: pool})

	// every 1400 problem is solved by one of the players
	solved := make(map[string]bool)
	for _, p := range pool {
		if p.Rating == 1400 {
			solved[p.Key()] = true
		}
	}

	problems, err := selector.Select(context.Background(), solved, nil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	if len(problems) != ProblemCount {
		t.Fatalf("Expected %d problems, got %d", ProblemCount, len(problems))
	}
	for _, p := range problems {
		if p.Rating == 1400 {
			t.Errorf("Problem %s should not come from the solved-out tier", models.ProblemKey(p.ContestID, p.Index))
		}
	}
}

func TestSelect_SmallPoolReturnsFewer(t *testing.T) {
	pool := []models.PoolProblem{
		{ContestID: 1, Index: "A", Rating: 800},
		{ContestID: 2, Index: "B", Rating: 1200},
	}

	selector := NewProblemSelector(&fakeSource{problems: pool})

	problems, err := selector.Select(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	if len(problems) != 2 {
		t.Fatalf("Expected 2 problems, got %d", len(problems))
	}
}

func TestSelect_EmptyPool(t *testing.T) {
	selector := NewProblemSelector(&fakeSource{})

	problems, err := selector.Select(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(problems) != 0 {
		t.Fatalf("Expected no problems, got %d", len(problems))
	}
}

func TestSelect_IgnoresUnratedProblems(t *testing.T) {
	pool := []models.PoolProblem{
		{ContestID: 1, Index: "A", Rating: 0},
		{ContestID: 2, Index: "A", Rating: 800},
	}

	selector := NewProblemSelector(&fakeSource{problems: pool})

	problems, err := selector.Select(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	if len(problems) != 1 || problems[0].ContestID != 2 {
		t.Fatalf("Expected only the rated problem, got %v", problems)
	}
}

func TestSelect_FreshProblemState(t *testing.T) {
	selector := NewProblemSelector(&fakeSource{problems: poolWithTiers(1)})

	problems, err := selector.Select(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	for _, p := range problems {
		if p.SolvedBy != nil || p.SolvedAt != nil {
			t.Errorf("Problem %s-%s should start unsolved", models.ProblemKey(p.ContestID, p.Index), p.Name)
		}
		if p.Submissions == nil || len(p.Submissions) != 0 {
			t.Errorf("Problem should start with an empty submission list")
		}
	}
}
