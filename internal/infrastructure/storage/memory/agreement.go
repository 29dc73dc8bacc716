package memory

import (
	"context"
	"slices"
	"time"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/id"
	"rentalcore/internal/domain"
	"rentalcore/internal/domain/rental"
)

// itemRow keeps insertion order of agreement items.
type itemRow struct {
	rental.Item
	seq int64
}

// AgreementRepo implements rental.Repository.
type AgreementRepo struct{ s *Store }

var _ rental.Repository = (*AgreementRepo)(nil)

func (r *AgreementRepo) Create(ctx context.Context, a *rental.Agreement) error {
	var err error
	r.s.write(ctx, func(d *state) {
		if _, ok := d.agreements[a.ID]; ok {
			err = apperror.NewDuplicate("rental agreement", "id", a.ID.String())
			return
		}
		for _, existing := range d.agreements {
			if existing.Number == a.Number {
				err = apperror.NewDuplicate("rental agreement", "number", a.Number)
				return
			}
		}
		d.agreements[a.ID] = header(a)
	})
	return err
}

func (r *AgreementRepo) GetByID(ctx context.Context, agreementID id.ID) (*rental.Agreement, error) {
	var (
		a  rental.Agreement
		ok bool
	)
	r.s.read(func(d *state) {
		a, ok = d.agreements[agreementID]
		if ok {
			a.Items = itemsOf(d, agreementID)
		}
	})
	if !ok {
		return nil, apperror.NewNotFound("rental agreement", agreementID)
	}
	return &a, nil
}

// GetForUpdate is GetByID; transactions are already serialized.
func (r *AgreementRepo) GetForUpdate(ctx context.Context, agreementID id.ID) (*rental.Agreement, error) {
	return r.GetByID(ctx, agreementID)
}

func (r *AgreementRepo) Update(ctx context.Context, a *rental.Agreement) error {
	var err error
	r.s.write(ctx, func(d *state) {
		if _, ok := d.agreements[a.ID]; !ok {
			err = apperror.NewNotFound("rental agreement", a.ID)
			return
		}
		d.agreements[a.ID] = header(a)
	})
	return err
}

func (r *AgreementRepo) AddItem(ctx context.Context, item *rental.Item) error {
	var err error
	r.s.write(ctx, func(d *state) {
		if _, ok := d.agreements[item.AgreementID]; !ok {
			err = apperror.NewNotFound("rental agreement", item.AgreementID)
			return
		}
		if _, ok := d.items[item.ID]; ok {
			err = apperror.NewDuplicate("rental item", "id", item.ID.String())
			return
		}
		d.itemSeq++
		d.items[item.ID] = itemRow{Item: *item, seq: d.itemSeq}
	})
	return err
}

func (r *AgreementRepo) UpdateItem(ctx context.Context, item *rental.Item) error {
	var err error
	r.s.write(ctx, func(d *state) {
		row, ok := d.items[item.ID]
		if !ok || row.AgreementID != item.AgreementID {
			err = apperror.NewNotFound("rental item", item.ID)
			return
		}
		row.Item = *item
		d.items[item.ID] = row
	})
	return err
}

func (r *AgreementRepo) DeleteItem(ctx context.Context, agreementID, itemID id.ID) error {
	var err error
	r.s.write(ctx, func(d *state) {
		row, ok := d.items[itemID]
		if !ok || row.AgreementID != agreementID {
			err = apperror.NewNotFound("rental item", itemID)
			return
		}
		delete(d.items, itemID)
	})
	return err
}

var agreementColumns = map[string]comparer[*rental.Agreement]{
	"number":     func(a, b *rental.Agreement) int { return compareStrings(a.Number, b.Number) },
	"start_date": func(a, b *rental.Agreement) int { return a.StartDate.Compare(b.StartDate) },
	"expected_return_date": func(a, b *rental.Agreement) int {
		return a.ExpectedReturnDate.Compare(b.ExpectedReturnDate)
	},
	"created_at": func(a, b *rental.Agreement) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (r *AgreementRepo) List(ctx context.Context, filter rental.ListFilter) (domain.ListResult[*rental.Agreement], error) {
	var out []*rental.Agreement
	r.s.read(func(d *state) {
		for _, a := range d.agreements {
			if filter.Status != nil && a.Status != *filter.Status {
				continue
			}
			if filter.CustomerID != nil && a.CustomerID != *filter.CustomerID {
				continue
			}
			if filter.Search != "" && !containsFold(a.Number, filter.Search) && !containsFold(a.Notes, filter.Search) {
				continue
			}
			out = append(out, &a)
		}
	})
	sortBy(out, filter.OrderBy, agreementColumns, "-created_at")
	return page(out, filter.ListFilter), nil
}

func (r *AgreementRepo) MarkOverdue(ctx context.Context, today time.Time, now time.Time) ([]id.ID, error) {
	var changed []id.ID
	r.s.write(ctx, func(d *state) {
		for agreementID, a := range d.agreements {
			if a.Status != rental.StatusActive || !a.ExpectedReturnDate.Before(today) {
				continue
			}
			a.Status = rental.StatusOverdue
			a.Touch(now)
			d.agreements[agreementID] = a
			changed = append(changed, agreementID)
		}
	})
	slices.SortFunc(changed, func(a, b id.ID) int { return compareStrings(a.String(), b.String()) })
	return changed, nil
}

func (r *AgreementRepo) ListOpenDueBy(ctx context.Context, date time.Time) ([]*rental.Agreement, error) {
	var out []*rental.Agreement
	r.s.read(func(d *state) {
		for _, a := range d.agreements {
			if a.Status.IsOpen() && !a.ExpectedReturnDate.After(date) {
				out = append(out, &a)
			}
		}
	})
	sortBy(out, "expected_return_date", agreementColumns, "expected_return_date")
	return out, nil
}

func header(a *rental.Agreement) rental.Agreement {
	h := *a
	h.Items = nil
	return h
}

func itemsOf(d *state, agreementID id.ID) []rental.Item {
	var rows []itemRow
	for _, row := range d.items {
		if row.AgreementID == agreementID {
			rows = append(rows, row)
		}
	}
	slices.SortFunc(rows, func(a, b itemRow) int { return int(a.seq - b.seq) })
	items := make([]rental.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.Item)
	}
	return items
}
