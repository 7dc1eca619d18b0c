package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), "", "", "")
	require.EqualError(t, err, "gemini API key is required")
}

func TestNewClient_DefaultModel(t *testing.T) {
	c, err := NewClient(context.Background(), "key", "", "http://127.0.0.1:0")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.Model())
}

func TestGenerate(t *testing.T) {
	var path, prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.Unmarshal(body, &req); err == nil && len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			prompt = req.Contents[0].Parts[0].Text
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"hi there"}]}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), "key", "gemini-test", srv.URL)
	require.NoError(t, err)

	text, err := c.Generate(context.Background(), "say hi")
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)
	assert.Equal(t, "say hi", prompt)
	assert.True(t, strings.Contains(path, "gemini-test:generateContent"), path)
}

func TestGenerate_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), "key", "", srv.URL)
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "say hi")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGenerate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), "key", "", srv.URL)
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "say hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini generate failed")
}
