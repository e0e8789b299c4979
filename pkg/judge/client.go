package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cp-duel/cp-duel-backend/pkg/logger"
)

// VerdictAccepted 채점 성공 판정 (유일한 성공 값, 그 외 문자열은 불합격으로 취급)
const VerdictAccepted = "Accepted"

// Client 외부 채점 서비스 HTTP 클라이언트
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 채점 클라이언트 생성
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ExecuteRequest 채점 요청
type ExecuteRequest struct {
	Code      string `json:"code"`
	Language  string `json:"language"`
	ContestID int    `json:"contestId"`
	Index     string `json:"index"`
}

// ExecuteResponse 채점 결과
type ExecuteResponse struct {
	Verdict         string `json:"verdict"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
	MemoryUsedKb    int64  `json:"memoryUsedKb"`
}

// Execute 코드 채점 요청 (동기, 재시도 없음 - 실패 시 호출자가 재제출)
func (c *Client) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal judge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build judge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("judge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("judge returned status %d", resp.StatusCode)
	}

	var result ExecuteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode judge response: %w", err)
	}

	logger.Debug("Judge execution completed",
		"verdict", result.Verdict,
		"executionTimeMs", result.ExecutionTimeMs,
	)

	return &result, nil
}
