package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// taskRequest is the body of create and update. id and timestamps sent by
// clients are ignored.
type taskRequest struct {
	Title       string `json:"title" validate:"notblank,max=200"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

func (req taskRequest) task() Task {
	return Task{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	}
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errResponse struct {
	Error   string       `json:"error"`
	Details []fieldError `json:"details,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// RegisterRoutes mounts the task API under /api/tasks.
func RegisterRoutes(r chi.Router, svc *Service, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	r.Route("/api/tasks", func(r chi.Router) {
		r.Post("/", createTask(svc, logger))
		r.Get("/", listTasks(svc, logger))
		r.Get("/{id}", getTask(svc, logger))
		r.Put("/{id}", updateTask(svc, logger))
		r.Patch("/{id}/toggle", toggleTask(svc, logger))
		r.Delete("/{id}", deleteTask(svc, logger))
	})
}

func createTask(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeTaskRequest(w, r)
		if !ok {
			return
		}

		t, err := svc.CreateTask(r.Context(), req.task())
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	}
}

// listTasks applies at most one filter: completed wins over search.
func listTasks(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var (
			tasks []Task
			err   error
		)
		if raw := q.Get("completed"); raw != "" {
			completed, perr := strconv.ParseBool(raw)
			if perr != nil {
				writeJSON(w, http.StatusBadRequest, errResponse{
					Error: "invalid_query",
					Details: []fieldError{
						{Field: "completed", Message: "completed must be a boolean"},
					},
				})
				return
			}
			tasks, err = svc.GetTasksByStatus(r.Context(), completed)
		} else if search := q.Get("search"); search != "" {
			tasks, err = svc.SearchTasksByTitle(r.Context(), search)
		} else {
			tasks, err = svc.GetAllTasks(r.Context())
		}
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}
		if tasks == nil {
			tasks = []Task{}
		}
		writeJSON(w, http.StatusOK, tasks)
	}
}

func getTask(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		t, found, err := svc.GetTaskByID(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}
		if !found {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func updateTask(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		req, ok := decodeTaskRequest(w, r)
		if !ok {
			return
		}

		t, err := svc.UpdateTask(r.Context(), id, req.task())
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func toggleTask(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		t, err := svc.ToggleTaskStatus(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func deleteTask(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		if err := svc.DeleteTask(r.Context(), id); err != nil {
			handleServiceError(w, r, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeTaskRequest(w http.ResponseWriter, r *http.Request) (taskRequest, bool) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid_json"})
		return taskRequest{}, false
	}
	if vErrs := validateTaskRequest(req); len(vErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, errResponse{
			Error:   "validation_error",
			Details: vErrs,
		})
		return taskRequest{}, false
	}
	return req, true
}

func validateTaskRequest(req taskRequest) []fieldError {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return []fieldError{{Field: "", Message: err.Error()}}
	}

	errs := make([]fieldError, 0, len(ves))
	for _, fe := range ves {
		msg := fmt.Sprintf("%s is invalid", fe.Field())
		switch fe.Tag() {
		case "notblank", "required":
			msg = fmt.Sprintf("%s is required", fe.Field())
		case "max":
			msg = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		}
		errs = append(errs, fieldError{Field: fe.Field(), Message: msg})
	}
	return errs
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid_id"})
		return 0, false
	}
	return id, true
}

// handleServiceError maps service errors to responses. Not found is a 404
// with an empty body.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, ErrTitleRequired):
		writeJSON(w, http.StatusBadRequest, errResponse{
			Error: "validation_error",
			Details: []fieldError{
				{Field: "title", Message: "title is required"},
			},
		})
	default:
		logger.ErrorContext(r.Context(), "task_store_error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("req_id", chimw.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errResponse{Error: "unexpected_error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
