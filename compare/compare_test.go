package compare

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareEmptyReferenceNeverCallsServer(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), nil)
	for _, ref := range []string{"", "   ", "\n\t"} {
		_, err := c.Compare(context.Background(), ref, "some words")
		assert.ErrorIs(t, err, ErrEmptyReference)
	}
	assert.Zero(t, calls.Load())
}

func TestCompareDecodesAlignment(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calculate-wer", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{
			"success": true,
			"alignment": [
				{"ref": "a", "hyp": "a", "type": "correct"},
				{"ref": "b", "hyp": "x", "type": "substitution"},
				{"ref": "c", "type": "deletion"},
				{"hyp": "d", "type": "insertion"}
			],
			"error_rate_percentage": 100,
			"total_words": 3
		}`)
	}))
	defer srv.Close()

	res, err := New(srv.URL, srv.Client(), nil).Compare(context.Background(), "a b c", "a x d")
	require.NoError(t, err)
	assert.Equal(t, Request{Reference: "a b c", Hypothesis: "a x d"}, got)
	assert.Equal(t, 3, res.TotalWords)
	assert.Equal(t, 100.0, res.ErrorRate)
	require.Len(t, res.Alignment, 4)
	assert.Equal(t, OpMatch, res.Alignment[0].Type)
	assert.Equal(t, Token{Hyp: "d", Type: OpInsertion}, res.Alignment[3])
}

func TestCompareServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success": false, "error": "hypothesis is empty"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, srv.Client(), nil).Compare(context.Background(), "a", "")
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "hypothesis is empty", svcErr.Message)
}

func TestCompareNonJSONFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, srv.Client(), nil).Compare(context.Background(), "a", "b")
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, http.StatusBadGateway, svcErr.Status)
}

func TestAlign(t *testing.T) {
	res := Align("the quick brown fox", "The quick brown dog")
	assert.Equal(t, 4, res.TotalWords)
	assert.Equal(t, 25.0, res.ErrorRate)
	assert.Equal(t, []Token{
		{Ref: "the", Hyp: "The", Type: OpMatch},
		{Ref: "quick", Hyp: "quick", Type: OpMatch},
		{Ref: "brown", Hyp: "brown", Type: OpMatch},
		{Ref: "fox", Hyp: "dog", Type: OpSubstitution},
	}, res.Alignment)
}

func TestAlignInsertion(t *testing.T) {
	res := Align("a b", "a x b")
	assert.Equal(t, []Token{
		{Ref: "a", Hyp: "a", Type: OpMatch},
		{Hyp: "x", Type: OpInsertion},
		{Ref: "b", Hyp: "b", Type: OpMatch},
	}, res.Alignment)
	assert.Equal(t, 50.0, res.ErrorRate)
}

func TestAlignDeletionAndEmpty(t *testing.T) {
	res := Align("one two three", "one three")
	assert.Equal(t, []Token{
		{Ref: "one", Hyp: "one", Type: OpMatch},
		{Ref: "two", Type: OpDeletion},
		{Ref: "three", Hyp: "three", Type: OpMatch},
	}, res.Alignment)
	assert.Equal(t, 33.33, res.ErrorRate)

	empty := Align("", "")
	assert.Empty(t, empty.Alignment)
	assert.Zero(t, empty.TotalWords)
}

func TestRenderOmitsAbsentSide(t *testing.T) {
	res := Result{Alignment: []Token{
		{Ref: "a", Hyp: "a", Type: OpMatch},
		{Ref: "b", Type: OpDeletion},
		{Hyp: "c", Type: OpInsertion},
		{Ref: "d", Hyp: "e", Type: OpSubstitution},
	}}

	ref, hyp := Render(res, false)
	assert.Equal(t, "a b d", ref)
	assert.Equal(t, "a c e", hyp)

	text.EnableColors()
	colored, _ := Render(res, true)
	assert.NotEqual(t, ref, colored)
	assert.True(t, strings.Contains(colored, "\x1b["))
}

func TestSummary(t *testing.T) {
	res := Align("a b c", "a x")
	assert.Equal(t, "WER 66.67% over 3 words (1 substitutions, 1 deletions, 0 insertions)", Summary(res))
}
