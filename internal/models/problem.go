package models

import "strconv"

// PoolProblem Codeforces 문제셋의 문제 (읽기 전용, 외부 소유)
type PoolProblem struct {
	ContestID int      `json:"contestId"`
	Index     string   `json:"index"`
	Name      string   `json:"name"`
	Rating    int      `json:"rating"`
	Tags      []string `json:"tags"`
}

// Key (contestId+index) 식별자
func (p PoolProblem) Key() string {
	return ProblemKey(p.ContestID, p.Index)
}

// ProblemKey 문제 식별자 생성 (예: "1850A")
func ProblemKey(contestID int, index string) string {
	return strconv.Itoa(contestID) + index
}
