package tasks

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var taskOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tasks_operations_total",
		Help: "Task service operations by outcome",
	},
	[]string{"op", "outcome"},
)

func init() {
	prometheus.MustRegister(taskOperations)
}

// Service holds the task use cases. It keeps no state of its own.
type Service struct {
	repo   Repository
	logger *slog.Logger
	tracer trace.Tracer
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger,
		tracer: otel.Tracer("tasks"),
	}
}

// CreateTask persists t as a new row; the store assigns the id.
func (s *Service) CreateTask(ctx context.Context, t Task) (out Task, err error) {
	ctx, span := s.tracer.Start(ctx, "tasks.CreateTask")
	defer func() { s.finish(span, "create", err) }()

	if strings.TrimSpace(t.Title) == "" {
		return Task{}, ErrTitleRequired
	}
	t.ID = 0
	out, err = s.repo.Create(ctx, t)
	if err != nil {
		return Task{}, err
	}
	span.SetAttributes(attribute.Int64("task.id", out.ID))
	s.logger.DebugContext(ctx, "task_created", slog.Int64("id", out.ID))
	return out, nil
}

func (s *Service) GetAllTasks(ctx context.Context) (out []Task, err error) {
	ctx, span := s.tracer.Start(ctx, "tasks.GetAllTasks")
	defer func() { s.finish(span, "list", err) }()

	return s.repo.List(ctx)
}

// GetTaskByID reports absence with ok=false rather than an error.
func (s *Service) GetTaskByID(ctx context.Context, id int64) (t Task, ok bool, err error) {
	ctx, span := s.tracer.Start(ctx, "tasks.GetTaskByID",
		trace.WithAttributes(attribute.Int64("task.id", id)))
	defer func() { s.finish(span, "get", err) }()

	t, err = s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, err
	}
	return t, true, nil
}

func (s *Service) GetTasksByStatus(ctx context.Context, completed bool) (out []Task, err error) {
	ctx, span := s.tracer.Start(ctx, "tasks.GetTasksByStatus",
		trace.WithAttributes(attribute.Bool("task.completed", completed)))
	defer func() { s.finish(span, "list_by_status", err) }()

	return s.repo.ListByCompleted(ctx, completed)
}

func (s *Service) SearchTasksByTitle(ctx context.Context, q string) (out []Task, err error) {
	ctx, span := s.tracer.Start(ctx, "tasks.SearchTasksByTitle")
	defer func() { s.finish(span, "search", err) }()

	return s.repo.SearchByTitle(ctx, q)
}

// UpdateTask overwrites title, description and completed of an existing task.
func (s *Service) UpdateTask(ctx context.Context, id int64, details Task) (out Task, err error) {
	ctx, span := s.tracer.Start(ctx, "tasks.UpdateTask",
		trace.WithAttributes(attribute.Int64("task.id", id)))
	defer func() { s.finish(span, "update", err) }()

	if strings.TrimSpace(details.Title) == "" {
		return Task{}, ErrTitleRequired
	}
	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	cur.Title = details.Title
	cur.Description = details.Description
	cur.Completed = details.Completed
	return s.repo.Update(ctx, cur)
}

func (s *Service) ToggleTaskStatus(ctx context.Context, id int64) (out Task, err error) {
	ctx, span := s.tracer.Start(ctx, "tasks.ToggleTaskStatus",
		trace.WithAttributes(attribute.Int64("task.id", id)))
	defer func() { s.finish(span, "toggle", err) }()

	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	cur.Completed = !cur.Completed
	return s.repo.Update(ctx, cur)
}

func (s *Service) DeleteTask(ctx context.Context, id int64) (err error) {
	ctx, span := s.tracer.Start(ctx, "tasks.DeleteTask",
		trace.WithAttributes(attribute.Int64("task.id", id)))
	defer func() { s.finish(span, "delete", err) }()

	return s.repo.Delete(ctx, id)
}

func (s *Service) finish(span trace.Span, op string, err error) {
	defer span.End()

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrTitleRequired):
		outcome = "invalid"
	default:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	taskOperations.WithLabelValues(op, outcome).Inc()
}
