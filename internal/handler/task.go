package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/roomsync-dev/roomsync/internal/auth"
	"github.com/roomsync-dev/roomsync/internal/model"
	"github.com/roomsync-dev/roomsync/internal/store"
)

const maxDescriptionLen = 200

type TaskHandler struct {
	tasks  *store.TaskStore
	logger *slog.Logger
}

func NewTaskHandler(tasks *store.TaskStore, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

type taskRequest struct {
	Description *string         `json:"description"`
	AssignedTo  *string         `json:"assignedTo"`
	DueDate     json.RawMessage `json:"dueDate"`
	IsCompleted *bool           `json:"isCompleted"`
	Frequency   *string         `json:"frequency"`
}

// dueDate distinguishes an absent field from an explicit null, so a partial
// update can clear a due date. Returns the parsed value and whether the field
// was present at all.
func (r *taskRequest) dueDate() (*time.Time, bool, error) {
	if len(r.DueDate) == 0 {
		return nil, false, nil
	}
	if string(r.DueDate) == "null" {
		return nil, true, nil
	}
	var due time.Time
	if err := json.Unmarshal(r.DueDate, &due); err != nil {
		return nil, false, err
	}
	return &due, true, nil
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.ListByHousehold(auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error while fetching tasks.")
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	description := ""
	if req.Description != nil {
		description = strings.TrimSpace(*req.Description)
	}
	assignedTo := ""
	if req.AssignedTo != nil {
		assignedTo = strings.TrimSpace(*req.AssignedTo)
	}
	if description == "" || assignedTo == "" {
		writeMessage(w, http.StatusBadRequest, "Please include a description and assigned roommate.")
		return
	}
	if len(description) > maxDescriptionLen {
		writeMessage(w, http.StatusBadRequest, "Description is too long")
		return
	}

	frequency := model.FrequencyOnce
	if req.Frequency != nil && *req.Frequency != "" {
		if !model.ValidFrequency(*req.Frequency) {
			writeMessage(w, http.StatusBadRequest, "Invalid frequency")
			return
		}
		frequency = *req.Frequency
	}

	dueDate, _, err := req.dueDate()
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid due date")
		return
	}

	task, err := h.tasks.Create(auth.HouseholdID(r.Context()), description, assignedTo, dueDate, frequency)
	if err != nil {
		h.logger.Error("create task", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error while creating task.")
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid task id")
		return
	}

	existing, err := h.getScoped(r, id)
	if err != nil {
		h.logger.Error("get task", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error while updating task.")
		return
	}
	if existing == nil {
		writeMessage(w, http.StatusNotFound, "Task not found.")
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Partial update: absent fields keep their stored values.
	if req.Description != nil {
		d := strings.TrimSpace(*req.Description)
		if d == "" || len(d) > maxDescriptionLen {
			writeMessage(w, http.StatusBadRequest, "Invalid description")
			return
		}
		existing.Description = d
	}
	if req.AssignedTo != nil {
		a := strings.TrimSpace(*req.AssignedTo)
		if a == "" {
			writeMessage(w, http.StatusBadRequest, "Invalid assignee")
			return
		}
		existing.AssignedTo = a
	}
	if due, present, err := req.dueDate(); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid due date")
		return
	} else if present {
		existing.DueDate = due
	}
	if req.Frequency != nil {
		if !model.ValidFrequency(*req.Frequency) {
			writeMessage(w, http.StatusBadRequest, "Invalid frequency")
			return
		}
		existing.Frequency = *req.Frequency
	}
	if req.IsCompleted != nil && *req.IsCompleted != existing.IsCompleted {
		existing.IsCompleted = *req.IsCompleted
		if *req.IsCompleted {
			now := time.Now().UTC()
			existing.CompletedAt = &now
		} else {
			existing.CompletedAt = nil
		}
	}

	task, err := h.tasks.Update(id, existing.Description, existing.AssignedTo, existing.DueDate, existing.IsCompleted, existing.Frequency, existing.CompletedAt)
	if err != nil {
		h.logger.Error("update task", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error while updating task.")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid task id")
		return
	}

	existing, err := h.getScoped(r, id)
	if err != nil {
		h.logger.Error("get task", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error while deleting task.")
		return
	}
	if existing == nil {
		writeMessage(w, http.StatusNotFound, "Task not found.")
		return
	}

	if err := h.tasks.Delete(id); err != nil {
		h.logger.Error("delete task", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error while deleting task.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Task removed successfully.",
		"deletedTask": existing,
	})
}

// getScoped loads a task only if it belongs to the caller's household. Tasks
// in other households are indistinguishable from missing ones.
func (h *TaskHandler) getScoped(r *http.Request, id int64) (*model.Task, error) {
	task, err := h.tasks.GetByID(id)
	if err != nil {
		return nil, err
	}
	if task == nil || task.HouseholdID != auth.HouseholdID(r.Context()) {
		return nil, nil
	}
	return task, nil
}
