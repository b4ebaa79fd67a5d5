// Package catalog defines the durable module and quiz metadata store.
//
// Store is the single source of truth for what modules and quiz questions
// exist; it does not know about chunk bytes on disk. The chunk cache
// (internal/chunkcache) cross-checks its own directory scan against
// Store.ListModules and only trusts the intersection — see the package doc
// there for the coherence contract this split enables.
package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an operation references a module or quiz
// question that does not exist.
var ErrNotFound = errors.New("catalog: not found")

// ErrConstraint is returned when a quiz question violates its shape
// invariants (too few options, correct index out of range).
var ErrConstraint = errors.New("catalog: constraint violation")

// Module is a unit of publishable content.
type Module struct {
	ID              int64
	Title           string
	Topic           string
	Tier            int
	ChunkCount      int
	CompressedSize  int64
	Filename        string
	CreatedAt       string // time.RFC3339
}

// Question is a quiz question attached to a module.
type Question struct {
	ID           int64
	ModuleID     int64
	Question     string
	Options      []string
	CorrectIndex int
}

// ModuleFilter narrows ListModules. Zero values mean "no filter" for that
// field; filters are conjunctive.
type ModuleFilter struct {
	Topic string
	Tier  *int
}

// Store persists modules and quiz questions. Implementations must make
// AddModule atomic and self-assigning: the returned id must come from the
// store itself, never from a caller-computed MAX(id)+1, to avoid a race
// between two concurrent ingests.
type Store interface {
	// Init is idempotent: it creates relations and indexes if absent.
	Init(ctx context.Context) error

	// AddModule inserts a module row and returns its store-assigned id.
	AddModule(ctx context.Context, title, topic string, tier int, chunkCount int, compressedSize int64, filename string) (int64, error)

	// ListModules returns modules ordered by id ascending, filtered
	// conjunctively by the non-zero fields of filter.
	ListModules(ctx context.Context, filter ModuleFilter) ([]Module, error)

	// GetModule returns a single module, or ErrNotFound.
	GetModule(ctx context.Context, id int64) (Module, error)

	// DeleteModule removes a module and cascades to its quiz questions.
	// Returns false (no error) if the id did not exist.
	DeleteModule(ctx context.Context, id int64) (bool, error)

	// AddQuiz inserts a quiz question, failing with ErrNotFound if
	// moduleID does not exist, or ErrConstraint if options/correct are
	// invalid.
	AddQuiz(ctx context.Context, moduleID int64, question string, options []string, correct int) (int64, error)

	// ListQuiz returns quiz questions for a module, ordered by id ascending.
	ListQuiz(ctx context.Context, moduleID int64) ([]Question, error)

	// DeleteQuiz removes a quiz question. Returns false if it did not exist.
	DeleteQuiz(ctx context.Context, id int64) (bool, error)

	// Close releases the underlying connection.
	Close() error
}

// ValidateQuiz checks the shape invariants shared by AddQuiz implementations:
// 2 <= len(options) and 0 <= correct < len(options).
func ValidateQuiz(options []string, correct int) error {
	if len(options) < 2 {
		return ErrConstraint
	}
	if correct < 0 || correct >= len(options) {
		return ErrConstraint
	}
	return nil
}
