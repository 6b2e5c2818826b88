package backend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/bosley/lyrical/audio"
	"github.com/bosley/lyrical/upload"
)

const maxUploadMemory = 32 << 20

type uploadResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Language string `json:"language"`
	Model    string `json:"model"`
	JobID    string `json:"job_id"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	clientID := strings.TrimSpace(r.FormValue("client_id"))
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}

	params, err := formParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !audio.IsAudioFile(header.Filename) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Unsupported file type; expected one of %s", strings.Join(audio.Extensions, ", ")))
		return
	}

	j := job{
		ID:       uuid.NewString(),
		ClientID: clientID,
		Name:     filepath.Base(header.Filename),
		Params:   params,
		Queued:   time.Now(),
	}
	j.Path = filepath.Join(s.uploadDir, j.ID+"_"+j.Name)

	size, err := saveUpload(j.Path, file)
	if err != nil {
		s.logger.Error("Failed to store upload", "error", err, "clientID", clientID)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	select {
	case s.queue <- j:
	default:
		os.Remove(j.Path)
		writeError(w, http.StatusServiceUnavailable, "job queue is full")
		return
	}

	s.logger.Info("Queued upload for processing",
		"clientID", clientID,
		"jobID", j.ID,
		"file", j.Name,
		"size", humanize.Bytes(uint64(size)),
		"language", params.Language,
		"model", params.Model,
		"beamSize", params.BeamSize)

	writeJSON(w, http.StatusOK, uploadResponse{
		Status:   "processing",
		Message:  "File uploaded, processing started",
		Language: params.Language,
		Model:    params.Model,
		JobID:    j.ID,
	})
}

func formParams(r *http.Request) (upload.Params, error) {
	p := upload.Params{
		Language: r.FormValue("language"),
		Model:    r.FormValue("model"),
	}
	if v := strings.TrimSpace(r.FormValue("beam_size")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("beam size must be an integer")
		}
		if n == 0 {
			return p, fmt.Errorf("beam size must be between %d and %d", upload.MinBeamSize, upload.MaxBeamSize)
		}
		p.BeamSize = n
	}
	if v := strings.TrimSpace(r.FormValue("return_segments")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("return_segments must be a boolean")
		}
		p.ReturnSegments = b
	}
	return p.Normalize()
}

func saveUpload(path string, r io.Reader) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create upload file: %w", err)
	}
	n, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("failed to store upload: %w", err)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
