package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/lithammer/shortuuid/v3"
	"github.com/stretchr/testify/require"
)

const baseURL = "http://localhost:8080"

type apiError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func doJSON(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, baseURL+path, reqBody)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Correlation-ID", shortuuid.New())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if out != nil && len(raw) > 0 {
		require.NoErrorf(t, json.Unmarshal(raw, out), "could not decode %s %s response: %s", method, path, raw)
	}

	return resp.StatusCode
}

func postJSON(t *testing.T, path string, body any, out any) int {
	t.Helper()
	return doJSON(t, http.MethodPost, path, body, out)
}

func getJSON(t *testing.T, path string, out any) int {
	t.Helper()
	return doJSON(t, http.MethodGet, path, nil, out)
}
