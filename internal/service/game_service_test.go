package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cp-duel/cp-duel-backend/internal/models"
	"github.com/cp-duel/cp-duel-backend/internal/repository"
	"github.com/cp-duel/cp-duel-backend/pkg/judge"
)

// fakeGameRepo version-checked in-memory game store
type fakeGameRepo struct {
	mu    sync.Mutex
	games map[string]*models.Game
	order []string
	seq   int

	// forceConflicts makes the next N updates fail with a version conflict
	forceConflicts int
}

func newFakeGameRepo() *fakeGameRepo {
	return &fakeGameRepo{games: make(map[string]*models.Game)}
}

func cloneGame(g *models.Game) *models.Game {
	c := *g
	c.Problems = make([]models.GameProblem, len(g.Problems))
	for i, p := range g.Problems {
		cp := p
		cp.Submissions = append([]models.GameSubmission(nil), p.Submissions...)
		c.Problems[i] = cp
	}
	return &c
}

func (r *fakeGameRepo) Create(game *models.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	game.ID = fmt.Sprintf("game-%d", r.seq)
	game.Version = 1
	game.CreatedAt = time.Now()

	r.games[game.ID] = cloneGame(game)
	r.order = append(r.order, game.ID)
	return nil
}

func (r *fakeGameRepo) FindByID(id string) (*models.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.games[id]
	if !ok {
		return nil, nil
	}
	return cloneGame(g), nil
}

func (r *fakeGameRepo) FindWaiting(excludePlayerID string) (*models.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		g := r.games[id]
		if g.Status == models.GameStatusWaiting && g.Mode == models.GameModeOnline && g.Player1 != excludePlayerID {
			return cloneGame(g), nil
		}
	}
	return nil, nil
}

func (r *fakeGameRepo) Update(game *models.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.forceConflicts > 0 {
		r.forceConflicts--
		return repository.ErrVersionConflict
	}

	stored, ok := r.games[game.ID]
	if !ok {
		return errors.New("game not found")
	}
	if stored.Version != game.Version {
		return repository.ErrVersionConflict
	}

	game.Version++
	r.games[game.ID] = cloneGame(game)
	return nil
}

func (r *fakeGameRepo) FindNonTerminalByPlayer(playerID string) ([]*models.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Game
	for _, id := range r.order {
		g := r.games[id]
		if g.Status.IsTerminal() || !g.HasPlayer(playerID) {
			continue
		}
		result = append(result, cloneGame(g))
	}
	return result, nil
}

func (r *fakeGameRepo) FindCompletedByPlayer(playerID string, limit int) ([]*models.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Game
	for i := len(r.order) - 1; i >= 0 && len(result) < limit; i-- {
		g := r.games[r.order[i]]
		if g.Status == models.GameStatusCompleted && g.HasPlayer(playerID) {
			result = append(result, cloneGame(g))
		}
	}
	return result, nil
}

// fakeUserStore in-memory user store tracking pointers and records
type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*models.User)}
}

func (s *fakeUserStore) addUser(id string, verified bool) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle := "cf_" + id
	user := &models.User{
		ID:         id,
		Username:   id,
		IsVerified: verified,
		Handle:     &handle,
	}
	s.users[id] = user
	return user
}

func (s *fakeUserStore) FindByID(id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (s *fakeUserStore) FindByHandle(handle string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.IsVerified && u.Handle != nil && *u.Handle == handle {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (s *fakeUserStore) SetCurrentGame(userID, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok {
		id := gameID
		u.CurrentGameID = &id
	}
	return nil
}

func (s *fakeUserStore) ClearCurrentGame(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok {
		u.CurrentGameID = nil
	}
	return nil
}

func (s *fakeUserStore) ApplyGameResult(userID string, won bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok {
		u.GamesPlayed++
		if won {
			u.GamesWon++
		}
		u.CurrentGameID = nil
	}
	return nil
}

// fakeJudge returns a fixed verdict
type fakeJudge struct {
	verdict string
	err     error
	calls   int
}

func (j *fakeJudge) Execute(ctx context.Context, req judge.ExecuteRequest) (*judge.ExecuteResponse, error) {
	j.calls++
	if j.err != nil {
		return nil, j.err
	}
	return &judge.ExecuteResponse{Verdict: j.verdict, ExecutionTimeMs: 42}, nil
}

// fakeNotifier records emitted events
type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) NotifyGame(gameID, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *fakeNotifier) NotifyUser(userID, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *fakeNotifier) has(event string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == event {
			return true
		}
	}
	return false
}

// fakeSource fixed problem pool
type fakeSource struct {
	problems []models.PoolProblem
	err      error
}

func (s *fakeSource) Problems(ctx context.Context) ([]models.PoolProblem, error) {
	return s.problems, s.err
}

func defaultPool() []models.PoolProblem {
	var pool []models.PoolProblem
	for i, rating := range DefaultTiers {
		pool = append(pool, models.PoolProblem{
			ContestID: 100 + i,
			Index:     "A",
			Name:      fmt.Sprintf("Problem %d", rating),
			Rating:    rating,
		})
	}
	return pool
}

type testEnv struct {
	games    *fakeGameRepo
	users    *fakeUserStore
	judge    *fakeJudge
	notifier *fakeNotifier
	source   *fakeSource
	svc      *GameService
}

func newTestEnv() *testEnv {
	games := newFakeGameRepo()
	users := newFakeUserStore()
	j := &fakeJudge{verdict: judge.VerdictAccepted}
	notifier := &fakeNotifier{}
	source := &fakeSource{problems: defaultPool()}

	return &testEnv{
		games:    games,
		users:    users,
		judge:    j,
		notifier: notifier,
		source:   source,
		svc:      NewGameService(games, users, NewProblemSelector(source), j, notifier),
	}
}

func TestFindOnline_CreatesWaitingGame(t *testing.T) {
	env := newTestEnv()
	env.users.addUser("alice", true)

	result, err := env.svc.FindOnline(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, result.Waiting)
	require.Equal(t, models.GameStatusWaiting, result.Game.Status)
	require.Empty(t, result.Game.Problems)

	alice, _ := env.users.FindByID("alice")
	require.NotNil(t, alice.CurrentGameID)
	require.Equal(t, result.Game.ID, *alice.CurrentGameID)
}

func TestFindOnline_JoinsWaitingGame(t *testing.T) {
	env := newTestEnv()
	env.users.addUser("alice", true)
	env.users.addUser("bob", true)

	_, err := env.svc.FindOnline(context.Background(), "alice")
	require.NoError(t, err)

	result, err := env.svc.FindOnline(context.Background(), "bob")
	require.NoError(t, err)
	require.False(t, result.Waiting)
	require.Equal(t, models.GameStatusActive, result.Game.Status)
	require.Len(t, result.Game.Problems, ProblemCount)
	require.NotNil(t, result.Game.Player2)
	require.Equal(t, "bob", *result.Game.Player2)
	require.NotNil(t, result.Game.StartTime)
	require.Equal(t, "alice", result.Opponent.ID)

	// both session pointers reference the same game
	alice, _ := env.users.FindByID("alice")
	bob, _ := env.users.FindByID("bob")
	require.Equal(t, result.Game.ID, *alice.CurrentGameID)
	require.Equal(t, result.Game.ID, *bob.CurrentGameID)

	require.True(t, env.notifier.has(EventOpponentJoined))
}

func TestFindOnline_Preconditions(t *testing.T) {
	env := newTestEnv()
	env.users.addUser("alice", true)
	env.users.addUser("unverified", false)

	_, err := env.svc.FindOnline(context.Background(), "unverified")
	require.ErrorIs(t, err, ErrNotVerified)

	_, err = env.svc.FindOnline(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = env.svc.FindOnline(context.Background(), "alice")
	require.NoError(t, err)

	// already queued
	_, err = env.svc.FindOnline(context.Background(), "alice")
	require.ErrorIs(t, err, ErrAlreadyInGame)
}

func TestFindOnline_EmptyPoolRejectsJoin(t *testing.T) {
	env := newTestEnv()
	env.users.addUser("alice", true)
	env.users.addUser("bob", true)

	hosted, err := env.svc.FindOnline(context.Background(), "alice")
	require.NoError(t, err)

	env.source.problems = nil

	_, err = env.svc.FindOnline(context.Background(), "bob")
	require.ErrorIs(t, err, ErrProblemPoolUnavailable)

	// the waiting game must stay intact and the joiner must stay free
	game, _ := env.games.FindByID(hosted.Game.ID)
	require.Equal(t, models.GameStatusWaiting, game.Status)
	bob, _ := env.users.FindByID("bob")
	require.Nil(t, bob.CurrentGameID)
}

func TestFindOnline_RetriesOnJoinConflict(t *testing.T) {
	env := newTestEnv()
	env.users.addUser("alice", true)
	env.users.addUser("bob", true)

	_, err := env.svc.FindOnline(context.Background(), "alice")
	require.NoError(t, err)

	// first join attempt loses the race; the retry succeeds
	env.games.forceConflicts = 1

	result, err := env.svc.FindOnline(context.Background(), "bob")
	require.NoError(t, err)
	require.False(t, result.Waiting)
	require.Equal(t, models.GameStatusActive, result.Game.Status)
}

func TestCreateFriend(t *testing.T) {
	env := newTestEnv()
	env.users.addUser("alice", true)
	env.users.addUser("bob", true)

	result, err := env.svc.CreateFriend(context.Background(), "alice", "cf_bob")
	require.NoError(t, err)
	require.Equal(t, models.GameStatusActive, result.Game.Status)
	require.Equal(t, models.GameModeFriend, result.Game.Mode)
	require.Len(t, result.Game.Problems, ProblemCount)
	require.True(t, env.notifier.has(EventGameRequest))

	bob, _ := env.users.FindByID("bob")
	require.NotNil(t, bob.CurrentGameID)
}

func TestCreateFriend_Errors(t *testing.T) {
	env := newTestEnv()
	env.users.addUser("alice", true)
	env.users.addUser("bob", true)

	_, err := env.svc.CreateFriend(context.Background(), "alice", "cf_alice")
	require.ErrorIs(t, err, ErrSelfInvite)

	_, err = env.svc.CreateFriend(context.Background(), "alice", "cf_nobody")
	require.ErrorIs(t, err, ErrFriendNotFound)

	// friend already playing
	_, err = env.svc.CreateFriend(context.Background(), "alice", "cf_bob")
	require.NoError(t, err)
	env.users.addUser("carol", true)
	_, err = env.svc.CreateFriend(context.Background(), "carol", "cf_bob")
	require.ErrorIs(t, err, ErrAlreadyInGame)
}

func startActiveGame(t *testing.T, env *testEnv) *models.Game {
	t.Helper()
	env.users.addUser("alice", true)
	env.users.addUser("bob", true)

	_, err := env.svc.FindOnline(context.Background(), "alice")
	require.NoError(t, err)
	result, err := env.svc.FindOnline(context.Background(), "bob")
	require.NoError(t, err)
	return result.Game
}

func TestSubmit_AcceptedMarksSolved(t *testing.T) {
	env := newTestEnv()
	startActiveGame(t, env)

	result, err := env.svc.Submit(context.Background(), "alice", 0, "code", "go")
	require.NoError(t, err)
	require.Equal(t, judge.VerdictAccepted, result.Result.Verdict)

	problem := result.Game.Problems[0]
	require.NotNil(t, problem.SolvedBy)
	require.Equal(t, "alice", *problem.SolvedBy)
	require.NotNil(t, problem.SolvedAt)
	require.Len(t, problem.Submissions, 1)
	require.Equal(t, 1, result.Game.CurrentProblemIndex)
	require.True(t, env.notifier.has(EventProblemSolved))
}

func TestSubmit_RejectedRecordsSubmissionOnly(t *testing.T) {
	env := newTestEnv()
	game := startActiveGame(t, env)
	env.judge.verdict = "Wrong Answer"

	result, err := env.svc.Submit(context.Background(), "alice", 0, "code", "go")
	require.NoError(t, err)
	require.Nil(t, result.Game.Problems[0].SolvedBy)
	require.Len(t, result.Game.Problems[0].Submissions, 1)
	require.Equal(t, 0, result.Game.CurrentProblemIndex)
	require.Equal(t, models.GameStatusActive, result.Game.Status)

	// still retryable by either player
	stored, _ := env.games.FindByID(game.ID)
	require.Nil(t, stored.Problems[0].SolvedBy)
}

func TestSubmit_SolvedProblemIsFinal(t *testing.T) {
	env := newTestEnv()
	startActiveGame(t, env)

	_, err := env.svc.Submit(context.Background(), "alice", 0, "code", "go")
	require.NoError(t, err)

	_, err = env.svc.Submit(context.Background(), "bob", 0, "code", "go")
	require.ErrorIs(t, err, ErrProblemAlreadySolved)
}

func TestSubmit_InvalidIndex(t *testing.T) {
	env := newTestEnv()
	startActiveGame(t, env)

	_, err := env.svc.Submit(context.Background(), "alice", -1, "code", "go")
	require.ErrorIs(t, err, ErrInvalidProblemIndex)

	_, err = env.svc.Submit(context.Background(), "alice", ProblemCount, "code", "go")
	require.ErrorIs(t, err, ErrInvalidProblemIndex)
}

func TestSubmit_JudgeFailureLeavesGameUntouched(t *testing.T) {
	env := newTestEnv()
	game := startActiveGame(t, env)
	env.judge.err = errors.New("judge down")

	_, err := env.svc.Submit(context.Background(), "alice", 0, "code", "go")
	require.ErrorIs(t, err, ErrJudgeUnavailable)

	stored, _ := env.games.FindByID(game.ID)
	require.Empty(t, stored.Problems[0].Submissions)
}

func TestSubmit_WinAtThreshold(t *testing.T) {
	env := newTestEnv()
	game := startActiveGame(t, env)

	var final *SubmitResult
	for i := 0; i < models.WinThreshold; i++ {
		result, err := env.svc.Submit(context.Background(), "alice", i, "code", "go")
		require.NoError(t, err)
		final = result
	}

	require.Equal(t, models.GameStatusCompleted, final.Game.Status)
	require.NotNil(t, final.Game.Winner)
	require.Equal(t, "alice", *final.Game.Winner)
	require.NotNil(t, final.Game.EndTime)
	require.True(t, env.notifier.has(EventGameEnded))

	// records applied and both pointers released
	alice, _ := env.users.FindByID("alice")
	bob, _ := env.users.FindByID("bob")
	require.Equal(t, 1, alice.GamesPlayed)
	require.Equal(t, 1, alice.GamesWon)
	require.Equal(t, 1, bob.GamesPlayed)
	require.Equal(t, 0, bob.GamesWon)
	require.Nil(t, alice.CurrentGameID)
	require.Nil(t, bob.CurrentGameID)

	// no further submissions on a completed game
	env.users.SetCurrentGame("bob", game.ID)
	_, err := env.svc.Submit(context.Background(), "bob", 1, "code", "go")
	require.ErrorIs(t, err, ErrGameNotActive)
}

func TestSubmit_RetriesOnVersionConflict(t *testing.T) {
	env := newTestEnv()
	startActiveGame(t, env)

	env.games.forceConflicts = 1

	result, err := env.svc.Submit(context.Background(), "alice", 0, "code", "go")
	require.NoError(t, err)
	require.Equal(t, 1, env.judge.calls, "judging must happen exactly once")
	require.Len(t, result.Game.Problems[0].Submissions, 1, "retry must not duplicate the submission")
}

func TestLeave_ActiveGameForfeits(t *testing.T) {
	env := newTestEnv()
	game := startActiveGame(t, env)

	err := env.svc.Leave(context.Background(), "alice")
	require.NoError(t, err)

	stored, _ := env.games.FindByID(game.ID)
	require.Equal(t, models.GameStatusCompleted, stored.Status)
	require.Equal(t, "bob", *stored.Winner)
	require.True(t, env.notifier.has(EventGameEnded))

	alice, _ := env.users.FindByID("alice")
	bob, _ := env.users.FindByID("bob")
	require.Equal(t, 1, bob.GamesWon)
	require.Equal(t, 1, alice.GamesPlayed)
	require.Equal(t, 0, alice.GamesWon)
	require.Nil(t, alice.CurrentGameID)
	require.Nil(t, bob.CurrentGameID)
}

func TestLeave_WaitingGameReleasesPointerOnly(t *testing.T) {
	env := newTestEnv()
	env.users.addUser("alice", true)

	result, err := env.svc.FindOnline(context.Background(), "alice")
	require.NoError(t, err)

	err = env.svc.Leave(context.Background(), "alice")
	require.NoError(t, err)

	alice, _ := env.users.FindByID("alice")
	require.Nil(t, alice.CurrentGameID)
	require.Equal(t, 0, alice.GamesPlayed)

	stored, _ := env.games.FindByID(result.Game.ID)
	require.Equal(t, models.GameStatusWaiting, stored.Status)
}

func TestLeave_NoGame(t *testing.T) {
	env := newTestEnv()
	env.users.addUser("alice", true)

	err := env.svc.Leave(context.Background(), "alice")
	require.ErrorIs(t, err, ErrNoActiveGame)
}

func TestCancel_WaitingGame(t *testing.T) {
	env := newTestEnv()
	env.users.addUser("alice", true)

	result, err := env.svc.FindOnline(context.Background(), "alice")
	require.NoError(t, err)

	err = env.svc.Cancel(context.Background(), "alice")
	require.NoError(t, err)

	stored, _ := env.games.FindByID(result.Game.ID)
	require.Equal(t, models.GameStatusCancelled, stored.Status)

	alice, _ := env.users.FindByID("alice")
	require.Nil(t, alice.CurrentGameID)
	require.Equal(t, 0, alice.GamesPlayed, "cancellation must not touch records")
}

func TestCancel_ActiveGameForfeits(t *testing.T) {
	env := newTestEnv()
	game := startActiveGame(t, env)

	err := env.svc.Cancel(context.Background(), "alice")
	require.NoError(t, err)

	stored, _ := env.games.FindByID(game.ID)
	require.Equal(t, models.GameStatusCompleted, stored.Status)
	require.Equal(t, "bob", *stored.Winner)
}

func TestCancelAll(t *testing.T) {
	env := newTestEnv()
	game := startActiveGame(t, env)

	err := env.svc.CancelAll(context.Background(), "alice")
	require.NoError(t, err)

	stored, _ := env.games.FindByID(game.ID)
	require.Equal(t, models.GameStatusCancelled, stored.Status)

	alice, _ := env.users.FindByID("alice")
	bob, _ := env.users.FindByID("bob")
	require.Nil(t, alice.CurrentGameID)
	require.Nil(t, bob.CurrentGameID)
	require.Equal(t, 0, alice.GamesPlayed)
	require.Equal(t, 0, bob.GamesPlayed)
}

func TestCurrent(t *testing.T) {
	env := newTestEnv()
	env.users.addUser("alice", true)

	game, err := env.svc.Current(context.Background(), "alice")
	require.NoError(t, err)
	require.Nil(t, game)

	result, err := env.svc.FindOnline(context.Background(), "alice")
	require.NoError(t, err)

	game, err = env.svc.Current(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, game)
	require.Equal(t, result.Game.ID, game.ID)
}

func TestCurrent_ClearsStalePointer(t *testing.T) {
	env := newTestEnv()
	env.users.addUser("alice", true)
	env.users.SetCurrentGame("alice", "gone")

	game, err := env.svc.Current(context.Background(), "alice")
	require.NoError(t, err)
	require.Nil(t, game)

	alice, _ := env.users.FindByID("alice")
	require.Nil(t, alice.CurrentGameID)
}

func TestHistory(t *testing.T) {
	env := newTestEnv()
	game := startActiveGame(t, env)

	require.NoError(t, env.svc.Leave(context.Background(), "bob"))

	games, err := env.svc.History(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, games, 1)
	require.Equal(t, game.ID, games[0].ID)
}
