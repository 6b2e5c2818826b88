// Package compare scores a transcript against a reference text.
package compare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bosley/lyrical/metrics"
)

// ErrEmptyReference is returned, without contacting the server, when the
// reference text is blank.
var ErrEmptyReference = errors.New("please enter reference text")

type Op string

const (
	OpMatch        Op = "match"
	OpSubstitution Op = "substitution"
	OpDeletion     Op = "deletion"
	OpInsertion    Op = "insertion"
)

func (o *Op) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch strings.ToLower(s) {
	case "match", "correct", "equal":
		*o = OpMatch
	case "substitution", "substitute":
		*o = OpSubstitution
	case "deletion", "delete":
		*o = OpDeletion
	case "insertion", "insert":
		*o = OpInsertion
	default:
		return fmt.Errorf("unknown alignment type %q", s)
	}
	return nil
}

// Token is one aligned unit. Ref is empty for insertions, Hyp for deletions.
type Token struct {
	Ref  string `json:"ref,omitempty"`
	Hyp  string `json:"hyp,omitempty"`
	Type Op     `json:"type"`
}

// Result is the scored alignment.
type Result struct {
	Alignment  []Token `json:"alignment"`
	ErrorRate  float64 `json:"error_rate_percentage"`
	TotalWords int     `json:"total_words"`
}

// Counts tallies the alignment by operation.
func (r Result) Counts() map[Op]int {
	out := make(map[Op]int, 4)
	for _, t := range r.Alignment {
		out[t.Type]++
	}
	return out
}

// ServiceError is a scoring failure reported by the server.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("comparison failed with status %d", e.Status)
	}
	return "comparison failed: " + e.Message
}

type Request struct {
	Reference  string `json:"reference"`
	Hypothesis string `json:"hypothesis"`
}

type response struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Result
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, logger: logger}
}

// Compare posts reference and hypothesis to the scoring endpoint.
func (c *Client) Compare(ctx context.Context, reference, hypothesis string) (Result, error) {
	if strings.TrimSpace(reference) == "" {
		metrics.Comparisons.WithLabelValues("invalid").Inc()
		return Result{}, ErrEmptyReference
	}

	body, err := json.Marshal(Request{Reference: reference, Hypothesis: hypothesis})
	if err != nil {
		return Result{}, fmt.Errorf("encode comparison request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/calculate-wer", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build comparison request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.Comparisons.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("comparison request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		metrics.Comparisons.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("read comparison response: %w", err)
	}

	var out response
	if err := json.Unmarshal(data, &out); err != nil {
		metrics.Comparisons.WithLabelValues("error").Inc()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return Result{}, &ServiceError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		}
		return Result{}, fmt.Errorf("decode comparison response: %w", err)
	}
	if !out.Success || resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.Comparisons.WithLabelValues("rejected").Inc()
		return Result{}, &ServiceError{Status: resp.StatusCode, Message: out.Error}
	}

	metrics.Comparisons.WithLabelValues("ok").Inc()
	c.logger.Debug("Comparison scored",
		"errorRate", out.ErrorRate,
		"totalWords", out.TotalWords,
		"tokens", len(out.Alignment))
	return out.Result, nil
}
