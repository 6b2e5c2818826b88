// Package upload issues the one-shot request that starts server-side
// processing of an audio file. Results never come back on this request; they
// arrive later on the push channel.
package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/bosley/lyrical/metrics"
)

const maxErrorBody = 64 << 10

// Source is an audio payload to upload.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
}

type fileSource struct{ path string }

// FileSource uploads the file at path.
func FileSource(path string) Source { return fileSource{path: path} }

func (f fileSource) Name() string { return filepath.Base(f.path) }

func (f fileSource) Open() (io.ReadCloser, error) { return os.Open(f.path) }

type readerSource struct {
	name string
	r    io.Reader
}

// ReaderSource uploads r under name. It can be opened once.
func ReaderSource(name string, r io.Reader) Source { return &readerSource{name: name, r: r} }

func (s *readerSource) Name() string { return s.name }

func (s *readerSource) Open() (io.ReadCloser, error) {
	if s.r == nil {
		return nil, errors.New("reader source already consumed")
	}
	r := s.r
	s.r = nil
	return io.NopCloser(r), nil
}

// Ack is the server's acknowledgement of an accepted upload.
type Ack struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Language string `json:"language"`
	Model    string `json:"model"`
}

// StatusError is returned for non-2xx upload responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upload failed with status %d", e.Code)
	}
	return fmt.Sprintf("upload failed with status %d: %s", e.Code, e.Message)
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
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// Submit uploads src as a multipart form tagged with clientID and params.
func (c *Client) Submit(ctx context.Context, src Source, params Params, clientID string) (Ack, error) {
	if src == nil {
		return Ack{}, errors.New("no audio source")
	}
	if clientID == "" {
		return Ack{}, errors.New("client id is required")
	}
	params, err := params.Normalize()
	if err != nil {
		return Ack{}, err
	}

	body, err := src.Open()
	if err != nil {
		return Ack{}, fmt.Errorf("open audio: %w", err)
	}
	defer body.Close()

	endpoint, err := c.endpoint(params, clientID)
	if err != nil {
		return Ack{}, err
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	counter := &countingReader{r: body}
	go func() {
		part, err := form.CreateFormFile("file", src.Name())
		if err == nil {
			_, err = io.Copy(part, counter)
		}
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		pr.Close()
		return Ack{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	c.logger.Info("Uploading audio",
		"file", src.Name(),
		"clientID", clientID,
		"language", params.Language,
		"model", params.Model,
		"beamSize", params.BeamSize)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.Uploads.WithLabelValues("error").Inc()
		return Ack{}, fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.Uploads.WithLabelValues("rejected").Inc()
		return Ack{}, &StatusError{Code: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	var ack Ack
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		metrics.Uploads.WithLabelValues("error").Inc()
		return Ack{}, fmt.Errorf("decode upload response: %w", err)
	}

	metrics.Uploads.WithLabelValues("ok").Inc()
	c.logger.Info("Upload accepted",
		"file", src.Name(),
		"size", humanize.Bytes(uint64(counter.n.Load())),
		"message", ack.Message)
	return ack, nil
}

func (c *Client) endpoint(params Params, clientID string) (string, error) {
	u, err := url.Parse(c.baseURL + "/upload")
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", c.baseURL, err)
	}
	q := u.Query()
	q.Set("client_id", clientID)
	q.Set("language", params.Language)
	q.Set("model", params.Model)
	q.Set("beam_size", strconv.Itoa(params.BeamSize))
	if params.ReturnSegments {
		q.Set("return_segments", "true")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Detail != "" {
			return body.Detail
		}
	}
	return strings.TrimSpace(string(data))
}

type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
