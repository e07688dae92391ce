package repository

import (
	"fmt"

	"github.com/splax/taskflow/internal/domain"
)

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = fmt.Errorf("repository: %w", domain.ErrNotFound)
	// ErrConflict indicates a uniqueness constraint or conditional update failed.
	ErrConflict = fmt.Errorf("repository: %w", domain.ErrConflict)
	// ErrInvalidArgument indicates a record was rejected by a constraint.
	ErrInvalidArgument = fmt.Errorf("repository: invalid argument: %w", domain.ErrValidation)
)

// ErrCapacity indicates a workspace has no free member slot.
var ErrCapacity = fmt.Errorf("repository: workspace capacity reached: %w", domain.ErrConflict)
