package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiResponse(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":` + jsonString(text) + `}]}}]}`
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestGenerateText(t *testing.T) {
	var gotPath string
	var gotBody generateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(geminiResponse("<b>Привет!</b>")))
	}))
	defer srv.Close()

	c := NewClient("test-key", "gemini-2.0-flash")
	c.geminiBase = srv.URL

	answer, err := c.GenerateText(context.Background(), "Привет")
	require.NoError(t, err)
	assert.Equal(t, "<b>Привет!</b>", answer)

	assert.Equal(t, "/models/gemini-2.0-flash:generateContent", gotPath)
	require.Len(t, gotBody.Contents, 1)
	require.Len(t, gotBody.Contents[0].Parts, 1)
	assert.Contains(t, gotBody.Contents[0].Parts[0].Text, "Запрос пользователя: Привет")
}

func TestGenerateTextEmptyAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", "")
	c.geminiBase = srv.URL

	_, err := c.GenerateText(context.Background(), "Привет")
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}

func TestGenerateTextAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	c := NewClient("bad-key", "")
	c.geminiBase = srv.URL

	_, err := c.GenerateText(context.Background(), "Привет")
	assert.ErrorContains(t, err, "API key not valid")
}

func TestGenerateTextNoAPIKey(t *testing.T) {
	c := NewClient("", "")

	_, err := c.GenerateText(context.Background(), "Привет")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestAnalyzeImage(t *testing.T) {
	imageData := []byte{0xff, 0xd8, 0xff, 0xe0}
	var gotBody generateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(geminiResponse("На фото котик.")))
	}))
	defer srv.Close()

	c := NewClient("test-key", "")
	c.geminiBase = srv.URL

	answer, err := c.AnalyzeImage(context.Background(), "Что на фото?", imageData)
	require.NoError(t, err)
	assert.Equal(t, "На фото котик.", answer)

	require.Len(t, gotBody.Contents, 1)
	require.Len(t, gotBody.Contents[0].Parts, 2)
	inline := gotBody.Contents[0].Parts[1].InlineData
	require.NotNil(t, inline)
	assert.Equal(t, "image/jpeg", inline.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(imageData), inline.Data)
}

func TestGenerateImage(t *testing.T) {
	fakePNG := []byte("\x89PNG fake bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/prompt/"))
		require.Equal(t, "flux", r.URL.Query().Get("model"))
		require.NotEmpty(t, r.URL.Query().Get("seed"))
		w.Write(fakePNG)
	}))
	defer srv.Close()

	c := NewClient("test-key", "")
	c.fluxBase = srv.URL

	data, err := c.GenerateImage(context.Background(), "кот в сапогах")
	require.NoError(t, err)
	assert.Equal(t, fakePNG, data)
}

func TestGenerateImageUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient("test-key", "")
	c.fluxBase = srv.URL

	_, err := c.GenerateImage(context.Background(), "кот")
	assert.ErrorContains(t, err, "status 502")
}
