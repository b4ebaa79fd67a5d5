package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"pirserve/internal/catalog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmas(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected journal_mode=wal, got %q", journalMode)
	}
}

func TestAddModuleAssignsMonotonicIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.AddModule(ctx, "A", "x", 1, 3, 9000, "a.bin")
	if err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	id2, err := s.AddModule(ctx, "B", "y", 2, 1, 10, "b.bin")
	if err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	if id2 <= id1 {
		t.Errorf("expected id2 (%d) > id1 (%d)", id2, id1)
	}
}

func TestListModulesFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AddModule(ctx, "A", "math", 1, 1, 10, "a.bin"); err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	if _, err := s.AddModule(ctx, "B", "science", 2, 1, 10, "b.bin"); err != nil {
		t.Fatalf("AddModule: %v", err)
	}

	all, err := s.ListModules(ctx, catalog.ModuleFilter{})
	if err != nil {
		t.Fatalf("ListModules: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(all))
	}
	if all[0].ID >= all[1].ID {
		t.Errorf("expected ascending id order")
	}

	math, err := s.ListModules(ctx, catalog.ModuleFilter{Topic: "math"})
	if err != nil {
		t.Fatalf("ListModules filtered: %v", err)
	}
	if len(math) != 1 || math[0].Title != "A" {
		t.Errorf("expected only module A, got %+v", math)
	}

	tier2 := 2
	byTier, err := s.ListModules(ctx, catalog.ModuleFilter{Tier: &tier2})
	if err != nil {
		t.Fatalf("ListModules by tier: %v", err)
	}
	if len(byTier) != 1 || byTier[0].Title != "B" {
		t.Errorf("expected only module B, got %+v", byTier)
	}

	none, err := s.ListModules(ctx, catalog.ModuleFilter{Topic: "nonexistent"})
	if err != nil {
		t.Fatalf("ListModules empty: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected empty result, got %+v", none)
	}
}

func TestDeleteModuleCascadesQuizzes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AddModule(ctx, "A", "x", 1, 1, 10, "a.bin")
	if err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	if _, err := s.AddQuiz(ctx, id, "Q?", []string{"a", "b"}, 0); err != nil {
		t.Fatalf("AddQuiz: %v", err)
	}

	deleted, err := s.DeleteModule(ctx, id)
	if err != nil {
		t.Fatalf("DeleteModule: %v", err)
	}
	if !deleted {
		t.Error("expected module to be deleted")
	}

	questions, err := s.ListQuiz(ctx, id)
	if err != nil {
		t.Fatalf("ListQuiz: %v", err)
	}
	if len(questions) != 0 {
		t.Errorf("expected quizzes cascade-deleted, got %+v", questions)
	}

	again, err := s.DeleteModule(ctx, id)
	if err != nil {
		t.Fatalf("DeleteModule (second): %v", err)
	}
	if again {
		t.Error("expected second delete to report false")
	}
}

func TestAddQuizRequiresExistingModule(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddQuiz(ctx, 999, "Q?", []string{"a", "b"}, 0)
	if err != catalog.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAddQuizValidatesShape(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AddModule(ctx, "A", "x", 1, 1, 10, "a.bin")
	if err != nil {
		t.Fatalf("AddModule: %v", err)
	}

	if _, err := s.AddQuiz(ctx, id, "Q?", []string{"only one"}, 0); err != catalog.ErrConstraint {
		t.Errorf("expected ErrConstraint for single option, got %v", err)
	}
	if _, err := s.AddQuiz(ctx, id, "Q?", []string{"a", "b"}, 5); err != catalog.ErrConstraint {
		t.Errorf("expected ErrConstraint for out-of-range correct index, got %v", err)
	}
}

func TestDeleteQuiz(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AddModule(ctx, "A", "x", 1, 1, 10, "a.bin")
	if err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	qid, err := s.AddQuiz(ctx, id, "Q?", []string{"a", "b"}, 1)
	if err != nil {
		t.Fatalf("AddQuiz: %v", err)
	}

	deleted, err := s.DeleteQuiz(ctx, qid)
	if err != nil {
		t.Fatalf("DeleteQuiz: %v", err)
	}
	if !deleted {
		t.Error("expected quiz to be deleted")
	}

	missing, err := s.DeleteQuiz(ctx, qid)
	if err != nil {
		t.Fatalf("DeleteQuiz (second): %v", err)
	}
	if missing {
		t.Error("expected second delete to report false")
	}
}

func TestGetModuleNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetModule(ctx, 123)
	if err != catalog.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
