package codeforces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cp-duel/cp-duel-backend/internal/models"
	"github.com/cp-duel/cp-duel-backend/pkg/logger"
)

const problemsCacheKey = "cf:problemset"

var ErrHandleNotFound = errors.New("codeforces handle not found")

// Client Codeforces 공개 API 클라이언트
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *redis.Client // nil이면 캐시 비활성화
	cacheTTL   time.Duration
}

// NewClient Codeforces API 클라이언트 생성
func NewClient(baseURL string, cache *redis.Client, cacheTTL time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// apiResponse Codeforces API 공통 응답 포맷
type apiResponse struct {
	Status  string          `json:"status"`
	Comment string          `json:"comment,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// call API 호출 및 result 언마샬
func (c *Client) call(ctx context.Context, method string, params url.Values, result interface{}) error {
	u := c.baseURL + "/" + method
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("codeforces request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode codeforces response: %w", err)
	}

	if envelope.Status != "OK" {
		return fmt.Errorf("codeforces API error: %s", envelope.Comment)
	}

	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("failed to unmarshal codeforces result: %w", err)
	}

	return nil
}

// problemsetResult problemset.problems 응답
type problemsetResult struct {
	Problems []models.PoolProblem `json:"problems"`
}

// Problems 전체 문제셋 조회 (레이팅 있는 문제만, Redis 캐시 사용)
func (c *Client) Problems(ctx context.Context) ([]models.PoolProblem, error) {
	if c.cache != nil {
		cached, err := c.cache.Get(ctx, problemsCacheKey).Bytes()
		if err == nil {
			var problems []models.PoolProblem
			if err := json.Unmarshal(cached, &problems); err == nil {
				return problems, nil
			}
		}
	}

	var result problemsetResult
	if err := c.call(ctx, "problemset.problems", nil, &result); err != nil {
		return nil, err
	}

	// 레이팅 없는 문제 제외
	rated := make([]models.PoolProblem, 0, len(result.Problems))
	for _, p := range result.Problems {
		if p.Rating > 0 {
			rated = append(rated, p)
		}
	}

	if c.cache != nil {
		data, err := json.Marshal(rated)
		if err == nil {
			if err := c.cache.Set(ctx, problemsCacheKey, data, c.cacheTTL).Err(); err != nil {
				// 캐시 실패는 치명적이지 않음
				logger.Warn("Failed to cache problemset", "error", err)
			}
		}
	}

	return rated, nil
}

// UserInfo Codeforces 사용자 정보
type UserInfo struct {
	Handle    string `json:"handle"`
	Rating    int    `json:"rating"`
	MaxRating int    `json:"maxRating"`
	Rank      string `json:"rank"`
	Avatar    string `json:"avatar"`
}

// GetUserInfo 핸들로 사용자 정보 조회
func (c *Client) GetUserInfo(ctx context.Context, handle string) (*UserInfo, error) {
	params := url.Values{}
	params.Set("handles", handle)

	var result []UserInfo
	if err := c.call(ctx, "user.info", params, &result); err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, ErrHandleNotFound
	}

	return &result[0], nil
}

// cfSubmission user.status 응답의 제출 항목
type cfSubmission struct {
	Verdict             string `json:"verdict"`
	CreationTimeSeconds int64  `json:"creationTimeSeconds"`
	Problem             struct {
		ContestID int    `json:"contestId"`
		Index     string `json:"index"`
		Name      string `json:"name"`
		Rating    int    `json:"rating"`
	} `json:"problem"`
}

// SolvedProblems 핸들의 해결 문제 집합 (verdict OK, contestId+index 중복 제거)
func (c *Client) SolvedProblems(ctx context.Context, handle string) ([]models.SolvedProblem, error) {
	params := url.Values{}
	params.Set("handle", handle)
	params.Set("count", "1000")

	var submissions []cfSubmission
	if err := c.call(ctx, "user.status", params, &submissions); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var solved []models.SolvedProblem
	for _, sub := range submissions {
		if sub.Verdict != "OK" {
			continue
		}
		key := models.ProblemKey(sub.Problem.ContestID, sub.Problem.Index)
		if seen[key] {
			continue
		}
		seen[key] = true
		solved = append(solved, models.SolvedProblem{
			ContestID: sub.Problem.ContestID,
			Index:     sub.Problem.Index,
			Name:      sub.Problem.Name,
			Rating:    sub.Problem.Rating,
			SolvedAt:  time.Unix(sub.CreationTimeSeconds, 0),
		})
	}

	return solved, nil
}

// Contest Codeforces 콘테스트 정보
type Contest struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	Phase            string `json:"phase"`
	StartTimeSeconds int64  `json:"startTimeSeconds"`
	DurationSeconds  int64  `json:"durationSeconds"`
}

// Contests 콘테스트 목록 조회
func (c *Client) Contests(ctx context.Context) ([]Contest, error) {
	var result []Contest
	if err := c.call(ctx, "contest.list", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}
