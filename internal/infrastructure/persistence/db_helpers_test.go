package persistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
)

func TestMapWriteError_UniqueViolation(t *testing.T) {
	err := mapWriteError("create application", &pq.Error{Code: "23505"})
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)

	other := mapWriteError("create application", &pq.Error{Code: "23503"})
	assert.False(t, errors.Is(other, repository.ErrAlreadyExists))
}

func TestIsUniqueViolation_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", &pq.Error{Code: "23505"})
	assert.True(t, isUniqueViolation(wrapped))
	assert.False(t, isUniqueViolation(errors.New("plain")))
}

func TestPrefixed(t *testing.T) {
	assert.Equal(t, "p.id, p.status", prefixed("p", "id,\n\t\tstatus"))
}
