package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bosley/lyrical/audio"
	"github.com/bosley/lyrical/metrics"
	"github.com/bosley/lyrical/upload"
)

const syntheticDuration = 5 * time.Second

// job is one accepted upload
type job struct {
	ID       string
	ClientID string
	Path     string
	Name     string
	Params   upload.Params
	Queued   time.Time
}

type wireSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type wireTransliterated struct {
	Text string `json:"text"`
}

// completionPayload mirrors what the production backend sends when a job
// finishes.
type completionPayload struct {
	Status                 string               `json:"status"`
	FullText               string               `json:"full_text"`
	Segments               []wireSegment        `json:"segments,omitempty"`
	TransliteratedSegments []wireTransliterated `json:"transliterated_segments,omitempty"`
	Transliteration        string               `json:"transliteration"`
	Language               string               `json:"language"`
	Model                  string               `json:"model"`
}

func (s *Server) worker(ctx context.Context, id int) {
	s.logger.Debug("Worker starting", "worker", id)
	defer func() {
		s.logger.Debug("Worker shutting down", "worker", id)
		s.workers.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Worker context cancelled", "worker", id)
			return

		case j := <-s.queue:
			start := time.Now()
			err := s.processJob(ctx, j)
			os.Remove(j.Path)

			switch {
			case err == nil:
				metrics.BackendJobs.WithLabelValues("complete").Inc()
				metrics.BackendJobDuration.Observe(time.Since(j.Queued).Seconds())
			case errors.Is(err, context.Canceled):
				metrics.BackendJobs.WithLabelValues("cancelled").Inc()
			default:
				metrics.BackendJobs.WithLabelValues("failed").Inc()
				s.logger.Error("Failed to process job",
					"error", err,
					"jobID", j.ID,
					"clientID", j.ClientID,
					"file", j.Name)
				s.hub.publish(j.ClientID, "❌ Error: "+err.Error())
			}
			s.logger.Debug("Job finished", "jobID", j.ID, "elapsed", time.Since(start))
		}
	}
}

func (s *Server) processJob(ctx context.Context, j job) error {
	s.logger.Info("Processing upload",
		"jobID", j.ID,
		"clientID", j.ClientID,
		"file", j.Name)

	steps := []string{
		"✅ File uploaded. Starting vocal separation...",
		"🎙️ Vocal separation done. Starting transcription...",
		fmt.Sprintf("📜 Transcription complete in %s using %s model.", j.Params.Language, j.Params.Model),
		"🔤 Generating English transliteration...",
	}
	for _, line := range steps {
		s.hub.publish(j.ClientID, line)
		if err := sleepCtx(ctx, s.config.StepDelay); err != nil {
			return err
		}
	}

	payload, err := s.result(j)
	if err != nil {
		return err
	}

	delivered := s.hub.publish(j.ClientID, payload)
	if delivered == 0 {
		s.logger.Warn("Completion payload not delivered; no subscribers",
			"jobID", j.ID,
			"clientID", j.ClientID)
	}
	s.logger.Info("Job complete",
		"jobID", j.ID,
		"clientID", j.ClientID,
		"subscribers", delivered)
	return nil
}

// result replays <FixturesDir>/<basename>.json when present and otherwise
// builds a synthetic single-segment payload.
func (s *Server) result(j job) (string, error) {
	if s.config.FixturesDir != "" {
		base := strings.TrimSuffix(j.Name, filepath.Ext(j.Name))
		path := filepath.Join(s.config.FixturesDir, base+".json")
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			s.logger.Debug("Replaying fixture", "jobID", j.ID, "fixture", path)
			return fixturePayload(data, j.Params)
		case !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("read fixture: %w", err)
		}
	}

	duration := syntheticDuration
	if info, err := audio.Probe(j.Path); err == nil && info.Duration > 0 {
		duration = info.Duration
	} else if err != nil && !errors.Is(err, audio.ErrNotWAV) {
		s.logger.Debug("Could not probe upload", "jobID", j.ID, "error", err)
	}

	data, err := json.Marshal(syntheticPayload(j, duration))
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}

func syntheticPayload(j job, duration time.Duration) completionPayload {
	text := "Synthetic transcript of " + j.Name
	p := completionPayload{
		Status:          "complete",
		FullText:        text,
		Transliteration: text,
		Language:        j.Params.Language,
		Model:           j.Params.Model,
	}
	if j.Params.ReturnSegments {
		end := math.Round(duration.Seconds()*1000) / 1000
		p.Segments = []wireSegment{{ID: 0, Start: 0, End: end, Text: text}}
		p.TransliteratedSegments = []wireTransliterated{{Text: text}}
	}
	return p
}

// fixturePayload marks a recorded payload complete and strips segments the
// upload did not ask for.
func fixturePayload(data []byte, params upload.Params) (string, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("parse fixture: %w", err)
	}
	if _, ok := payload["status"]; !ok {
		payload["status"] = "complete"
	}
	if !params.ReturnSegments {
		delete(payload, "segments")
		delete(payload, "transliterated_segments")
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode fixture: %w", err)
	}
	return string(out), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
