package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rentalcore/internal/core/id"
)

func TestBaseEntity_Touch(t *testing.T) {
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.FixedZone("X", 3600))
	b := NewBaseEntity(created)

	assert.False(t, id.IsNil(b.ID))
	assert.Equal(t, 1, b.Version)
	assert.Equal(t, time.UTC, b.CreatedAt.Location())

	later := created.Add(time.Hour)
	b.Touch(later)

	assert.Equal(t, 2, b.Version)
	assert.True(t, b.UpdatedAt.Equal(later))
	assert.True(t, b.CreatedAt.Equal(created))
}
