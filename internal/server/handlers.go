package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/michaelbrown/skillforge/internal/checker"
	"github.com/michaelbrown/skillforge/internal/storage"
	"github.com/michaelbrown/skillforge/internal/submission"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeStoreError maps storage.ErrNotFound to 404 and anything else to 500.
func writeStoreError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func queryInt(r *http.Request, key string) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return 0
}

// testsText accepts a test spec either as a JSON object or as a string
// holding the JSON text.
func testsText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// --- Health ---

type healthResponse struct {
	Status            string `json:"status"`
	Compiler          string `json:"compiler"`
	CompilerAvailable bool   `json:"compiler_available"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.toolchain != nil {
		resp.Compiler = s.toolchain.CompilerPath()
		resp.CompilerAvailable = s.toolchain.CompilerAvailable(r.Context())
	}
	if !resp.CompilerAvailable {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Task handlers ---

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	opts := storage.TaskListOptions{
		PublishedOnly: r.URL.Query().Get("published") == "true",
		Limit:         queryInt(r, "limit"),
		Offset:        queryInt(r, "offset"),
	}

	tasks, err := s.store.ListTasks(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if tasks == nil {
		tasks = []storage.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

type createTaskRequest struct {
	ID             string             `json:"id"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	CodeTemplate   string             `json:"code_template"`
	TestCases      json.RawMessage    `json:"test_cases"`
	Difficulty     storage.Difficulty `json:"difficulty"`
	MaxOutputChars int                `json:"max_output_chars"`
	Published      bool               `json:"published"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	tests := testsText(req.TestCases)
	if len(checker.ParseTestCases(tests)) == 0 {
		writeError(w, http.StatusBadRequest, `test_cases must be {"tests":[...]} with at least one test`)
		return
	}

	task := &storage.Task{
		ID:             req.ID,
		Title:          req.Title,
		Description:    req.Description,
		CodeTemplate:   req.CodeTemplate,
		TestCases:      tests,
		Difficulty:     req.Difficulty,
		MaxOutputChars: req.MaxOutputChars,
		Published:      req.Published,
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Difficulty == "" {
		task.Difficulty = storage.DifficultyEasy
	}

	if err := s.store.CreateTask(r.Context(), task); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// --- Submission handlers ---

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	opts := storage.SubmissionListOptions{
		TaskID: chi.URLParam(r, "id"),
		Status: storage.SubmissionStatus(strings.ToUpper(r.URL.Query().Get("status"))),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}

	subs, err := s.store.ListSubmissions(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if subs == nil {
		subs = []storage.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

type submitRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	sub, err := s.service.Submit(r.Context(), chi.URLParam(r, "id"), req.Code)
	if errors.Is(err, submission.ErrInterrupted) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		writeStoreError(w, err, "task")
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := s.store.GetSubmission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "submission")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// --- Ad-hoc check ---

type checkRequest struct {
	Code  string          `json:"code"`
	Tests json.RawMessage `json:"tests"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if len(req.Tests) == 0 {
		writeError(w, http.StatusBadRequest, "tests is required")
		return
	}

	v := s.service.Check(r.Context(), checker.Request{
		Source:    req.Code,
		TestsJSON: testsText(req.Tests),
	}, nil)

	if r.Context().Err() != nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("check interrupted: %v", r.Context().Err()))
		return
	}
	writeJSON(w, http.StatusOK, v)
}
