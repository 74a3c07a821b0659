package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func newTestService() (*Service, *InMemoryRepo) {
	repo := NewInMemoryRepo()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewService(repo, logger), repo
}

func TestService_CreateRejectsBlankTitle(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	for _, title := range []string{"", "   ", "\t\n"} {
		if _, err := svc.CreateTask(ctx, Task{Title: title}); !errors.Is(err, ErrTitleRequired) {
			t.Fatalf("title %q: expected ErrTitleRequired, got %v", title, err)
		}
	}
	list, _ := repo.List(ctx)
	if len(list) != 0 {
		t.Fatalf("nothing should be persisted, got %+v", list)
	}
}

func TestService_CreateIgnoresClientID(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, err := svc.CreateTask(ctx, Task{ID: 42, Title: "a"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ID == 42 {
		t.Fatalf("client id must not be used")
	}

	got, ok, err := svc.GetTaskByID(ctx, a.ID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Title != "a" || got.Completed {
		t.Fatalf("unexpected task: %+v", got)
	}
}

func TestService_GetTaskByIDAbsent(t *testing.T) {
	svc, _ := newTestService()

	_, ok, err := svc.GetTaskByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("absence must not be an error, got %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false")
	}
}

func TestService_ToggleTwiceRestores(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	orig, err := svc.CreateTask(ctx, Task{Title: "walk", Description: "dog"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	once, err := svc.ToggleTaskStatus(ctx, orig.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !once.Completed {
		t.Fatalf("expected completed after one toggle")
	}

	twice, err := svc.ToggleTaskStatus(ctx, orig.ID)
	if err != nil {
		t.Fatalf("toggle again: %v", err)
	}
	if twice.Completed != orig.Completed || twice.Title != orig.Title || twice.Description != orig.Description {
		t.Fatalf("double toggle should restore: orig=%+v got=%+v", orig, twice)
	}
}

func TestService_UpdateOverwritesFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	orig, err := svc.CreateTask(ctx, Task{Title: "old", Description: "keep?", Completed: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	upd, err := svc.UpdateTask(ctx, orig.ID, Task{Title: "new"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if upd.ID != orig.ID || upd.Title != "new" || upd.Description != "" || upd.Completed {
		t.Fatalf("expected wholesale replacement, got %+v", upd)
	}

	if _, err := svc.UpdateTask(ctx, orig.ID, Task{Title: " "}); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
}

func TestService_UnknownIDIsNotFound(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	if _, err := svc.CreateTask(ctx, Task{Title: "only"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := svc.UpdateTask(ctx, 99, Task{Title: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.ToggleTaskStatus(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("toggle: expected ErrNotFound, got %v", err)
	}
	if err := svc.DeleteTask(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete: expected ErrNotFound, got %v", err)
	}

	list, _ := repo.List(ctx)
	if len(list) != 1 || list[0].Title != "only" || list[0].Completed {
		t.Fatalf("store changed: %+v", list)
	}
}

func TestService_DeleteRemovesFromGetAndList(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, _ := svc.CreateTask(ctx, Task{Title: "a"})
	b, _ := svc.CreateTask(ctx, Task{Title: "b"})

	if err := svc.DeleteTask(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := svc.GetTaskByID(ctx, a.ID); ok {
		t.Fatalf("deleted task still fetchable")
	}
	all, err := svc.GetAllTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].ID != b.ID {
		t.Fatalf("expected only b, got %+v", all)
	}
}

func TestService_StatusAndSearch(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	for _, seed := range []Task{
		{Title: "Pay Tax", Completed: true},
		{Title: "TAX form"},
		{Title: "Invoice", Completed: true},
	} {
		if _, err := svc.CreateTask(ctx, seed); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	done, err := svc.GetTasksByStatus(ctx, true)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(done) != 2 || done[0].Title != "Pay Tax" || done[1].Title != "Invoice" {
		t.Fatalf("unexpected completed set: %+v", done)
	}

	found, err := svc.SearchTasksByTitle(ctx, "tax")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 2 || found[0].Title != "Pay Tax" || found[1].Title != "TAX form" {
		t.Fatalf("unexpected search result: %+v", found)
	}
}
