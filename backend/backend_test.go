package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bosley/lyrical/compare"
	"github.com/bosley/lyrical/logging"
	"github.com/bosley/lyrical/message"
	"github.com/bosley/lyrical/upload"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	cfg.Logger = logging.Discard()
	srv, err := New(cfg)
	require.NoError(t, err)
	srv.Start()

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return srv, ts
}

// subscribe opens a push channel and waits until the server has registered it.
func subscribe(t *testing.T, ts *httptest.Server, clientID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + clientID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(message.HeartbeatToken)))
	assert.Equal(t, message.HeartbeatReply, readText(t, conn))
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

// readUntilCompletion collects frames until a completion payload arrives.
func readUntilCompletion(t *testing.T, conn *websocket.Conn) ([]string, *message.Completion) {
	t.Helper()
	var lines []string
	for i := 0; i < 20; i++ {
		raw := readText(t, conn)
		msg := message.Classify(raw)
		if msg.Kind == message.KindCompletion {
			return lines, msg.Completion
		}
		lines = append(lines, raw)
	}
	t.Fatal("no completion payload received")
	return nil, nil
}

func TestUploadStreamsProgressAndSyntheticResult(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	conn := subscribe(t, ts, "client-a")

	params := upload.DefaultParams()
	ack, err := upload.New(ts.URL, ts.Client(), logging.Discard()).
		Submit(context.Background(), upload.ReaderSource("song.mp3", strings.NewReader("ID3")), params, "client-a")
	require.NoError(t, err)
	assert.Equal(t, "processing", ack.Status)
	assert.Equal(t, "te", ack.Language)
	assert.Equal(t, "large-v3", ack.Model)

	lines, completion := readUntilCompletion(t, conn)
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "✅"))
	assert.Contains(t, lines[2], "te using large-v3")

	require.Len(t, completion.Segments, 1)
	assert.Equal(t, "Synthetic transcript of song.mp3", completion.FullText)
	assert.Equal(t, syntheticDuration.Seconds(), completion.Segments[0].End)
	assert.Equal(t, completion.FullText, completion.Segments[0].Transliteration)
}

func TestUploadReplaysFixture(t *testing.T) {
	fixtures := t.TempDir()
	fixture := `{"full_text": "హలో ప్రపంచం", "segments": [{"start": 0, "end": 1.5, "text": "హలో"}, {"start": 1.5, "end": 3, "text": "ప్రపంచం"}], "transliterated_segments": [{"text": "halo"}, {"text": "prapancham"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(fixtures, "take1.json"), []byte(fixture), 0o644))

	_, ts := newTestServer(t, Config{FixturesDir: fixtures})
	conn := subscribe(t, ts, "client-b")

	_, err := upload.New(ts.URL, ts.Client(), logging.Discard()).
		Submit(context.Background(), upload.ReaderSource("take1.wav", strings.NewReader("RIFF")), upload.DefaultParams(), "client-b")
	require.NoError(t, err)

	_, completion := readUntilCompletion(t, conn)
	assert.Equal(t, "హలో ప్రపంచం", completion.FullText)
	assert.Equal(t, "halo prapancham", completion.Transliteration)
	require.Len(t, completion.Segments, 2)
	assert.Equal(t, 1, completion.Segments[1].ID)
	assert.Equal(t, "prapancham", completion.Segments[1].Transliteration)
}

func TestUploadWithoutSegments(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	conn := subscribe(t, ts, "client-c")

	params := upload.DefaultParams()
	params.ReturnSegments = false
	_, err := upload.New(ts.URL, ts.Client(), logging.Discard()).
		Submit(context.Background(), upload.ReaderSource("a.ogg", strings.NewReader("OggS")), params, "client-c")
	require.NoError(t, err)

	_, completion := readUntilCompletion(t, conn)
	assert.Empty(t, completion.Segments)
	assert.Equal(t, "Synthetic transcript of a.ogg", completion.FullText)
}

func TestUploadValidation(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	client := upload.New(ts.URL, ts.Client(), logging.Discard())

	_, err := client.Submit(context.Background(), upload.ReaderSource("notes.txt", strings.NewReader("x")), upload.DefaultParams(), "client-d")
	var statusErr *upload.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
	assert.Contains(t, statusErr.Message, "Unsupported file type")

	// Bypass client-side validation to check the server's own rules.
	var body bytes.Buffer
	body.WriteString("--x\r\nContent-Disposition: form-data; name=\"file\"; filename=\"a.wav\"\r\n\r\nRIFF\r\n--x--\r\n")
	resp, err := ts.Client().Post(ts.URL+"/upload/?client_id=c&model=tiny", "multipart/form-data; boundary=x", &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	data, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(data), "model must be one of")
}

func TestCalculateWER(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	client := compare.New(ts.URL, ts.Client(), logging.Discard())

	res, err := client.Compare(context.Background(), "the quick brown fox", "the quick brown dog")
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalWords)
	assert.Equal(t, 25.0, res.ErrorRate)
	assert.Equal(t, 3, res.Counts()[compare.OpMatch])

	resp, err := ts.Client().Post(ts.URL+"/calculate-wer", "application/json", strings.NewReader(`{"reference": " ", "hypothesis": "x"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, false, out["success"])
}

func TestHealthAndClients(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	subscribe(t, ts, "client-e")

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, 1.0, health["subscribers"])

	resp2, err := ts.Client().Get(ts.URL + "/api/clients")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var clients []string
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&clients))
	assert.Equal(t, []string{"client-e"}, clients)
}

func TestNewRejectsHalfTLS(t *testing.T) {
	_, err := New(Config{CertFile: "cert.pem"})
	assert.Error(t, err)
}

func TestFixturePayload(t *testing.T) {
	out, err := fixturePayload([]byte(`{"status": "completed", "segments": [], "full_text": "x"}`), upload.Params{})
	require.NoError(t, err)
	assert.NotContains(t, out, "segments")
	assert.Contains(t, out, `"status":"completed"`)

	_, err = fixturePayload([]byte(`not json`), upload.Params{})
	assert.Error(t, err)
}
