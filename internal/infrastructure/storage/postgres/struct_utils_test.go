package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rentalcore/internal/core/entity"
	"rentalcore/internal/core/types"
)

type sampleRow struct {
	entity.BaseEntity
	Name     string      `db:"name"`
	Discount types.Money `db:"discount"`
	Items    []string    `db:"-"`
	internal string
}

func TestExtractDBColumns_IncludesEmbedded(t *testing.T) {
	cols := ExtractDBColumns[sampleRow]()

	assert.Equal(t, []string{"id", "version", "created_at", "updated_at", "name", "discount"}, cols)
}

func TestStructToMap(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	row := &sampleRow{
		BaseEntity: entity.NewBaseEntity(now),
		Name:       "Acme",
		Discount:   types.MustMoney("12.5"),
		Items:      []string{"ignored"},
		internal:   "ignored",
	}

	m := StructToMap(row)

	assert.Len(t, m, 6)
	assert.Equal(t, row.ID, m["id"])
	assert.Equal(t, 1, m["version"])
	assert.Equal(t, now, m["created_at"])
	assert.Equal(t, "Acme", m["name"])
	assert.True(t, types.MustMoney("12.5").Equal(m["discount"].(types.Money)))
	assert.NotContains(t, m, "internal")
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
}
