package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrCodeEU/facekiosk/pkg/assistant"
	"github.com/MrCodeEU/facekiosk/pkg/attendance"
	"github.com/MrCodeEU/facekiosk/pkg/logging"
	"github.com/MrCodeEU/facekiosk/pkg/roster"
)

const (
	errInvalidRequestBody = "invalid request body"
	maxUploadBytes        = 16 << 20
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Capture.Status())
}

func (s *Server) logLines(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{"lines": s.deps.Logs.Lines()})
}

func (s *Server) startCamera(w http.ResponseWriter, r *http.Request) {
	// The loop outlives the request.
	if err := s.deps.Capture.Start(context.Background()); err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.deps.Capture.Status())
}

func (s *Server) stopCamera(w http.ResponseWriter, r *http.Request) {
	s.deps.Capture.Stop()
	respondJSON(w, http.StatusOK, s.deps.Capture.Status())
}

type employeeResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	HasImage     bool   `json:"has_image"`
	HasSignature bool   `json:"has_signature"`
}

func toEmployeeResponse(e roster.Employee) employeeResponse {
	_, err := os.Stat(e.ImagePath)
	return employeeResponse{
		ID:           e.ID,
		Name:         e.Name,
		HasImage:     e.ImagePath != "" && err == nil,
		HasSignature: e.HasSignature(),
	}
}

func (s *Server) listEmployees(w http.ResponseWriter, r *http.Request) {
	employees := s.deps.Roster.Employees()
	out := make([]employeeResponse, 0, len(employees))
	for _, e := range employees {
		out = append(out, toEmployeeResponse(e))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) addEmployee(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	id := strings.TrimSpace(r.FormValue("id"))
	name := strings.TrimSpace(r.FormValue("name"))
	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}
	defer file.Close()

	tmpDir, err := os.MkdirTemp("", "facekiosk-upload-*")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, filepath.Base(header.Filename))
	out, err := os.Create(tmpPath)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		respondError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	out.Close()

	var emp roster.Employee
	if s.deps.Enroller != nil {
		emp, err = s.deps.Enroller.Enroll(id, name, tmpPath)
	} else {
		emp, err = s.deps.Roster.Enroll(id, name, tmpPath)
	}
	switch {
	case errors.Is(err, roster.ErrInvalidEmployee), errors.Is(err, roster.ErrInvalidImage):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		logging.Component("http").Errorf("Failed to add employee %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logging.Component("roster").Infof("Added employee %s (%s)", emp.Name, emp.ID)
	respondJSON(w, http.StatusCreated, toEmployeeResponse(emp))
}

func (s *Server) train(w http.ResponseWriter, r *http.Request) {
	if s.deps.Trainer == nil {
		respondError(w, http.StatusNotImplemented, "training not available for this backend")
		return
	}
	summary, err := s.deps.Trainer.Train(r.Context())
	if err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   err.Error(),
			"summary": summary,
		})
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) attendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.URL.Query().Get("format") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="attendance.csv"`)
		if err := s.deps.Store.Dump(ctx, w); err != nil {
			logging.Component("http").Errorf("Attendance dump failed: %v", err)
		}
	case "xlsx":
		records, err := s.deps.Store.Records(ctx)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="attendance-%s.xlsx"`, time.Now().Format("20060102")))
		if err := attendance.ExportXLSX(w, records); err != nil {
			logging.Component("http").Errorf("Attendance export failed: %v", err)
		}
	default:
		records, err := s.deps.Store.Records(ctx)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if records == nil {
			records = []attendance.Record{}
		}
		respondJSON(w, http.StatusOK, records)
	}
}

type checkInRequest struct {
	EmployeeID string `json:"employee_id"`
	Demo       bool   `json:"demo"`
}

func (s *Server) checkIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EmployeeID == "" {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	kind := ""
	if req.Demo {
		kind = attendance.KindDemo
	}
	recorded, err := s.deps.Capture.CheckIn(r.Context(), req.EmployeeID, kind)
	switch {
	case errors.Is(err, roster.ErrEmployeeNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		respondJSON(w, http.StatusOK, map[string]bool{"recorded": recorded})
	}
}

type queryRequest struct {
	Question string `json:"question"`
}

func (s *Server) submitQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	job, err := s.deps.Queries.Submit(req.Question)
	switch {
	case errors.Is(err, assistant.ErrEmptyQuestion):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, assistant.ErrBusy):
		respondError(w, http.StatusConflict, err.Error())
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		respondJSON(w, http.StatusAccepted, job)
	}
}

func (s *Server) getQuery(w http.ResponseWriter, r *http.Request) {
	job, ok := s.deps.Queries.Get(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "query not found")
		return
	}
	respondJSON(w, http.StatusOK, job)
}
