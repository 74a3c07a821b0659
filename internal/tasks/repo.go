package tasks

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrTitleRequired = errors.New("title required")
	ErrNotFound      = errors.New("task not found")
)

// Repository is the Task store. Get, Update and Delete return ErrNotFound
// for ids that are not stored.
type Repository interface {
	Create(ctx context.Context, t Task) (Task, error)
	Get(ctx context.Context, id int64) (Task, error)
	List(ctx context.Context) ([]Task, error)
	ListByCompleted(ctx context.Context, completed bool) ([]Task, error)
	SearchByTitle(ctx context.Context, q string) ([]Task, error)
	Update(ctx context.Context, t Task) (Task, error)
	Delete(ctx context.Context, id int64) error
}

type InMemoryRepo struct {
	mu    sync.Mutex
	seq   int64
	store map[int64]Task
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		store: make(map[int64]Task),
	}
}

func (r *InMemoryRepo) Create(_ context.Context, t Task) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	now := time.Now().UTC()
	t.ID = r.seq
	t.CreatedAt = now
	t.UpdatedAt = now
	r.store[t.ID] = t
	return t, nil
}

func (r *InMemoryRepo) Get(_ context.Context, id int64) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.store[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (r *InMemoryRepo) List(_ context.Context) ([]Task, error) {
	return r.filter(func(Task) bool { return true }), nil
}

func (r *InMemoryRepo) ListByCompleted(_ context.Context, completed bool) ([]Task, error) {
	return r.filter(func(t Task) bool { return t.Completed == completed }), nil
}

func (r *InMemoryRepo) SearchByTitle(_ context.Context, q string) ([]Task, error) {
	q = strings.ToLower(q)
	return r.filter(func(t Task) bool {
		return strings.Contains(strings.ToLower(t.Title), q)
	}), nil
}

func (r *InMemoryRepo) Update(_ context.Context, t Task) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.store[t.ID]
	if !ok {
		return Task{}, ErrNotFound
	}
	cur.Title = t.Title
	cur.Description = t.Description
	cur.Completed = t.Completed
	cur.UpdatedAt = time.Now().UTC()
	r.store[cur.ID] = cur
	return cur, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.store[id]; !ok {
		return ErrNotFound
	}
	delete(r.store, id)
	return nil
}

// filter returns matching tasks in id order, like the SQL store does.
func (r *InMemoryRepo) filter(keep func(Task) bool) []Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Task, 0, len(r.store))
	for _, t := range r.store {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
