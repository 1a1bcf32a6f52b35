package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/QAPilotAI/qapilot-mvp/engine/domain"
)

// ingester is the slice of the ingest service the handler needs.
type ingester interface {
	IngestFiles(ctx context.Context, paths []string) (int, error)
}

// testCaseGenerator and scriptGenerator are the agent surfaces the
// generation handlers need. Factories build one per request because the
// UI may carry its own API key and model choice.
type testCaseGenerator interface {
	GenerateTestCases(ctx context.Context, requirement string) ([]domain.TestCase, error)
}

type scriptGenerator interface {
	GenerateScript(ctx context.Context, tc domain.TestCase, htmlContent string) (string, error)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// detail writes the single error shape every endpoint uses.
func detail(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"detail": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// IngestResponse is the JSON response for POST /ingest.
type IngestResponse struct {
	Message string `json:"message"`
	Chunks  int    `json:"chunks"`
	Files   int    `json:"files"`
}

const maxUploadBytes = 64 << 20

// handleIngest accepts multipart uploads ("files" repeated, plus an
// optional "html_file"), stages them in a per-request temp directory,
// and runs the ingestion pipeline over them.
func handleIngest(svc ingester, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			detail(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		defer r.MultipartForm.RemoveAll()

		uploads := append([]*multipart.FileHeader{}, r.MultipartForm.File["files"]...)
		uploads = append(uploads, r.MultipartForm.File["html_file"]...)
		if len(uploads) == 0 {
			detail(w, http.StatusBadRequest, "no files uploaded")
			return
		}

		dir, err := os.MkdirTemp("", "qapilot-ingest-*")
		if err != nil {
			logger.Error("ingest tempdir", "err", err)
			detail(w, http.StatusInternalServerError, "could not stage uploads")
			return
		}
		defer os.RemoveAll(dir)

		paths := make([]string, 0, len(uploads))
		for _, fh := range uploads {
			path, err := saveUpload(dir, fh)
			if err != nil {
				logger.Error("ingest save upload", "file", fh.Filename, "err", err)
				detail(w, http.StatusInternalServerError, "could not stage uploads")
				return
			}
			paths = append(paths, path)
		}

		chunks, err := svc.IngestFiles(r.Context(), paths)
		if err != nil {
			logger.Error("ingest failed", "err", err)
			detail(w, http.StatusInternalServerError, "ingestion failed: "+err.Error())
			return
		}

		writeJSON(w, http.StatusOK, IngestResponse{
			Message: "Ingestion successful",
			Chunks:  chunks,
			Files:   len(paths),
		})
	}
}

func saveUpload(dir string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	// Uploaded names are untrusted; keep only the basename.
	path := filepath.Join(dir, filepath.Base(fh.Filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return path, nil
}

// GenerateTestCasesRequest is the JSON body for POST /generate-test-cases.
type GenerateTestCasesRequest struct {
	Requirement string `json:"requirement"`
	APIKey      string `json:"api_key,omitempty"`
	Model       string `json:"model,omitempty"`
}

func handleGenerateTestCases(agents func(apiKey, model string) testCaseGenerator, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateTestCasesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			detail(w, http.StatusBadRequest, "invalid request body")
			return
		}

		cases, err := agents(req.APIKey, req.Model).GenerateTestCases(r.Context(), req.Requirement)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				detail(w, http.StatusBadRequest, verr.Error())
				return
			}
			logger.Error("test case generation failed", "err", err)
			detail(w, http.StatusInternalServerError, "generation failed: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, cases)
	}
}

// GenerateScriptRequest is the JSON body for POST /generate-script.
type GenerateScriptRequest struct {
	TestCase    domain.TestCase `json:"test_case"`
	HTMLContent string          `json:"html_content"`
	APIKey      string          `json:"api_key,omitempty"`
	Model       string          `json:"model,omitempty"`
}

// GenerateScriptResponse is the JSON response for POST /generate-script.
type GenerateScriptResponse struct {
	Script string `json:"script"`
}

func handleGenerateScript(agents func(apiKey, model string) scriptGenerator, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateScriptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			detail(w, http.StatusBadRequest, "invalid request body")
			return
		}

		script, err := agents(req.APIKey, req.Model).GenerateScript(r.Context(), req.TestCase, req.HTMLContent)
		if err != nil {
			if errors.Is(err, domain.ErrEmptyMarkup) {
				detail(w, http.StatusBadRequest, err.Error())
				return
			}
			logger.Error("script generation failed", "err", err)
			detail(w, http.StatusInternalServerError, "generation failed: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, GenerateScriptResponse{Script: script})
	}
}
