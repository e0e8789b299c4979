package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/execute", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req ExecuteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, 1234, req.ContestID)
		require.Equal(t, "B", req.Index)

		json.NewEncoder(w).Encode(ExecuteResponse{
			Verdict:         VerdictAccepted,
			ExecutionTimeMs: 120,
			MemoryUsedKb:    2048,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)

	result, err := client.Execute(context.Background(), ExecuteRequest{
		Code:      "print(1)",
		Language:  "python",
		ContestID: 1234,
		Index:     "B",
	})
	require.NoError(t, err)
	require.Equal(t, VerdictAccepted, result.Verdict)
	require.Equal(t, int64(120), result.ExecutionTimeMs)
}

func TestExecute_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)

	_, err := client.Execute(context.Background(), ExecuteRequest{})
	require.Error(t, err)
}
