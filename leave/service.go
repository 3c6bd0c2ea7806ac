package leave

import (
	"context"
)

// =============================================================================
// SERVICE - Validate-then-write orchestration
// =============================================================================

// Service is the entry point for booking mutations. It runs the admission
// checks against the same store view the write goes to; when the store is a
// TxStore the check and the write are one transaction.
type Service struct {
	Store     Store
	Validator *Validator
	Ledger    *Ledger
}

func NewService(store Store, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		Store:     store,
		Validator: NewValidator(store, opts.Clock, opts.Location),
		Ledger:    NewLedger(store, opts),
	}
}

// History exposes the audit log for reads and purge.
func (s *Service) History() *History {
	return s.Ledger.History
}

// Validate checks a proposal without writing anything.
func (s *Service) Validate(ctx context.Context, p Proposal) error {
	return s.Validator.ValidateBooking(ctx, p)
}

// Book validates the draft and creates it.
func (s *Service) Book(ctx context.Context, d Draft) (Booking, error) {
	var created Booking
	err := inTx(ctx, s.Store, func(tx Store) error {
		p := Proposal{UserID: d.UserID, Start: d.Date, Category: d.Category}
		if d.EndDate != nil {
			p.End = *d.EndDate
		}
		if err := s.Validator.on(tx).ValidateBooking(ctx, p); err != nil {
			return err
		}
		b, err := s.Ledger.on(tx).Create(ctx, d)
		if err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return Booking{}, err
	}
	return created, nil
}

// Edit applies u to a booking that is still inside its edit window. The
// merged booking is re-validated with its own id excluded.
func (s *Service) Edit(ctx context.Context, id string, u Updates) (Booking, error) {
	var updated Booking
	err := inTx(ctx, s.Store, func(tx Store) error {
		existing, err := tx.GetBooking(ctx, id)
		if err != nil {
			return persistErr("get booking", err)
		}
		v := s.Validator.on(tx)
		if err := v.ValidateCanEdit(existing.Date); err != nil {
			return err
		}
		merged := u.apply(existing)
		merged.EndDate = normalizeEnd(merged.EndDate)
		if err := v.ValidateBooking(ctx, ProposalFor(merged)); err != nil {
			return err
		}
		b, err := s.Ledger.on(tx).Update(ctx, id, u)
		if err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return Booking{}, err
	}
	return updated, nil
}

// Cancel deletes a booking that is still inside its edit window.
func (s *Service) Cancel(ctx context.Context, id string) error {
	return inTx(ctx, s.Store, func(tx Store) error {
		existing, err := tx.GetBooking(ctx, id)
		if err != nil {
			return persistErr("get booking", err)
		}
		if err := s.Validator.on(tx).ValidateCanEdit(existing.Date); err != nil {
			return err
		}
		ok, err := s.Ledger.on(tx).Delete(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		return nil
	})
}
