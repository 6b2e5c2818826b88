package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitSendsMultipartWithQuery(t *testing.T) {
	var got struct {
		method, path, clientID, language, model, beam, segments, filename, content string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		q := r.URL.Query()
		got.clientID = q.Get("client_id")
		got.language = q.Get("language")
		got.model = q.Get("model")
		got.beam = q.Get("beam_size")
		got.segments = q.Get("return_segments")

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		got.filename = header.Filename
		got.content = string(data)

		json.NewEncoder(w).Encode(map[string]string{
			"status":   "processing",
			"message":  "File uploaded, processing started",
			"language": got.language,
			"model":    got.model,
		})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "song.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF....WAVE"), 0o600))

	c := New(srv.URL+"/", srv.Client(), nil)
	ack, err := c.Submit(context.Background(), FileSource(path), Params{Language: "Hindi", Model: "medium", BeamSize: 5}, "abc123")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/upload", got.path)
	assert.Equal(t, "abc123", got.clientID)
	assert.Equal(t, "hi", got.language)
	assert.Equal(t, "medium", got.model)
	assert.Equal(t, "5", got.beam)
	assert.Equal(t, "", got.segments)
	assert.Equal(t, "song.wav", got.filename)
	assert.Equal(t, "RIFF....WAVE", got.content)

	assert.Equal(t, "File uploaded, processing started", ack.Message)
	assert.Equal(t, "hi", ack.Language)
}

func TestSubmitNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"Beam size must be between 1 and 20"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), nil)
	_, err := c.Submit(context.Background(), ReaderSource("a.mp3", strings.NewReader("x")), DefaultParams(), "abc")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
	assert.Equal(t, "Beam size must be between 1 and 20", statusErr.Message)
}

func TestSubmitNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, nil, nil)
	_, err := c.Submit(context.Background(), ReaderSource("a.mp3", strings.NewReader("x")), DefaultParams(), "abc")
	require.Error(t, err)
	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}

func TestSubmitValidatesBeforeSending(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), nil)
	ctx := context.Background()

	_, err := c.Submit(ctx, ReaderSource("a", strings.NewReader("x")), Params{BeamSize: 21}, "abc")
	assert.ErrorContains(t, err, "beam size")
	_, err = c.Submit(ctx, ReaderSource("a", strings.NewReader("x")), Params{Language: "French"}, "abc")
	assert.ErrorContains(t, err, "language")
	_, err = c.Submit(ctx, ReaderSource("a", strings.NewReader("x")), Params{Model: "tiny"}, "abc")
	assert.ErrorContains(t, err, "model")
	_, err = c.Submit(ctx, ReaderSource("a", strings.NewReader("x")), DefaultParams(), "")
	assert.Error(t, err)

	assert.Zero(t, calls.Load())
}

func TestReaderSourceOpensOnce(t *testing.T) {
	src := ReaderSource("a", strings.NewReader("x"))
	_, err := src.Open()
	require.NoError(t, err)
	_, err = src.Open()
	assert.Error(t, err)
}

func TestNormalizeLanguage(t *testing.T) {
	for in, want := range map[string]string{
		"te":     "te",
		"TE":     "te",
		"te-IN":  "te",
		"Telugu": "te",
		"telugu": "te",
		"hi":     "hi",
		"Hindi":  "hi",
	} {
		got, err := NormalizeLanguage(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	_, err := NormalizeLanguage("fr")
	assert.Error(t, err)
	_, err = NormalizeLanguage("")
	assert.Error(t, err)
}

func TestParamsNormalizeDefaults(t *testing.T) {
	p, err := Params{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "te", p.Language)
	assert.Equal(t, "large-v3", p.Model)
	assert.Equal(t, 20, p.BeamSize)
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "Telugu", LanguageName("te"))
	assert.Equal(t, "Hindi", LanguageName("hi"))
}
