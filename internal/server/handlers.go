package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/roach88/taskcal/internal/task"
	"github.com/roach88/taskcal/internal/taskdb"
)

type ackResponse struct {
	ID      int64  `json:"id,omitempty"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func taskID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// decodeTask reads a task body and applies the defaults a missing field gets.
func decodeTask(r *http.Request) (task.Task, error) {
	var t task.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		return task.Task{}, errors.New("invalid request payload")
	}
	t = t.WithDefaults()
	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// listTasks handles GET /api/tasks.
func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.repo.List(r.Context())
	if err != nil {
		s.logger.Error("list tasks", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, tasks)
}

// getTask handles GET /api/tasks/{id}.
func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	t, err := s.repo.Get(r.Context(), id)
	if errors.Is(err, taskdb.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	if err != nil {
		s.logger.Error("get task", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

// createTask handles POST /api/tasks.
func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	t, err := decodeTask(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.repo.Create(r.Context(), t)
	if err != nil {
		s.logger.Error("create task", "error", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("task created", "id", id)
	s.writeJSON(w, http.StatusCreated, ackResponse{ID: id, Message: "Task created"})
}

// updateTask handles PUT /api/tasks/{id}.
func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	t, err := decodeTask(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.repo.Update(r.Context(), id, t); err != nil {
		s.logger.Error("update task", "id", id, "error", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, ackResponse{Message: "Task updated"})
}

// deleteTask handles DELETE /api/tasks/{id}.
func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	if err := s.repo.Delete(r.Context(), id); err != nil {
		s.logger.Error("delete task", "id", id, "error", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, ackResponse{Message: "Task deleted"})
}

// health handles GET /api/health.
func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
