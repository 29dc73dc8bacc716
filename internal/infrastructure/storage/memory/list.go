package memory

import (
	"cmp"
	"slices"
	"strings"

	"rentalcore/internal/domain"
)

type comparer[T any] func(a, b T) int

// sortBy orders items by filter.OrderBy ("name", "-created_at"). Unknown
// columns fall back to def.
func sortBy[T any](items []T, orderBy string, columns map[string]comparer[T], def string) {
	if orderBy == "" {
		orderBy = def
	}
	desc := strings.HasPrefix(orderBy, "-")
	column := strings.TrimPrefix(orderBy, "-")
	cmpFn, ok := columns[column]
	if !ok {
		desc = strings.HasPrefix(def, "-")
		cmpFn = columns[strings.TrimPrefix(def, "-")]
	}
	slices.SortStableFunc(items, func(a, b T) int {
		if desc {
			return cmpFn(b, a)
		}
		return cmpFn(a, b)
	})
}

func page[T any](items []T, filter domain.ListFilter) domain.ListResult[T] {
	filter.Normalize()
	total := len(items)
	start := min(filter.Offset, total)
	end := min(start+filter.Limit, total)
	return domain.ListResult[T]{
		Items:      items[start:end],
		TotalCount: int64(total),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func compareStrings(a, b string) int { return cmp.Compare(a, b) }
