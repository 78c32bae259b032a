package repository

import (
	"context"
	"database/sql"

	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/errs"
	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/model"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// The availability ledger is the pair of counters on each libro row. Every
// mutation is a single guarded UPDATE, so the row lock is the serialization
// point per book: of two concurrent callers racing for the last copy, the
// guard lets exactly one through.

// tryReserveCopy consumes one available copy. Zero rows means either the book
// is gone or the counter is at zero; the follow-up select tells them apart.
func (r *repository) tryReserveCopy(ctx context.Context, ext sqlx.ExtContext, bookID int) error {
	q := `
	update libro set cantidad_disponible = cantidad_disponible - 1
	where id_libro = $1 and cantidad_disponible > 0
	returning cantidad_disponible`

	var left int
	err := ext.QueryRowxContext(ctx, q, bookID).Scan(&left)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	var exists bool
	if err := ext.QueryRowxContext(ctx,
		`select exists(select 1 from libro where id_libro = $1)`, bookID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return errs.ErrNotFound
	}
	return errs.ErrNoCopiesAvailable
}

// releaseCopy returns one copy to the shelf. Incrementing past cantidad_total
// is a consistency violation: it means a release without a matching loan, so
// it is logged and surfaced, never clamped.
func (r *repository) releaseCopy(ctx context.Context, ext sqlx.ExtContext, bookID int) error {
	q := `
	update libro set cantidad_disponible = cantidad_disponible + 1
	where id_libro = $1 and cantidad_disponible < cantidad_total
	returning cantidad_disponible`

	var now int
	err := ext.QueryRowxContext(ctx, q, bookID).Scan(&now)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	var total, available int
	selErr := ext.QueryRowxContext(ctx,
		`select cantidad_total, cantidad_disponible from libro where id_libro = $1`,
		bookID).Scan(&total, &available)
	if errors.Is(selErr, sql.ErrNoRows) {
		return errs.ErrNotFound
	}
	if selErr != nil {
		return selErr
	}
	r.log.Error("release beyond total",
		zap.Int("id_libro", bookID),
		zap.Int("cantidad_total", total),
		zap.Int("cantidad_disponible", available),
	)
	return errs.ErrConsistencyViolation
}

// SetTotal adjusts cantidad_total and moves cantidad_disponible by the same
// delta, keeping outstanding = total - available unchanged. Shrinking below
// the outstanding count is refused.
func (r *repository) SetTotal(ctx context.Context, bookID, newTotal int) (model.Book, error) {
	q := `
	update libro
	set cantidad_disponible = cantidad_disponible + ($2 - cantidad_total),
	    cantidad_total      = $2
	where id_libro = $1 and $2 >= cantidad_total - cantidad_disponible
	returning *`

	var book model.Book
	err := r.db.GetContext(ctx, &book, q, bookID, newTotal)
	if err == nil {
		return book, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Book{}, err
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`select exists(select 1 from libro where id_libro = $1)`, bookID).Scan(&exists); err != nil {
		return model.Book{}, err
	}
	if !exists {
		return model.Book{}, errs.ErrNotFound
	}
	return model.Book{}, errs.ErrInvalidAdjustment
}

// ReconcileAvailability recomputes every book's cantidad_disponible from the
// authoritative count of outstanding loans and corrects drift. The counter is
// a cached derived value; the prestamo table is the source of truth after a
// crash between a ledger mutation and its loan write.
func (r *repository) ReconcileAvailability(ctx context.Context) ([]model.Drift, error) {
	q := `
	with outstanding as (
		select l.id_libro,
		       l.cantidad_disponible,
		       l.cantidad_total - count(p.id_prestamo) filter (
		           where p.id_estado_prestamo in ($1, $2)
		       ) as computed
		from libro l
		left join prestamo p using (id_libro)
		group by l.id_libro, l.cantidad_total, l.cantidad_disponible
	)
	update libro set cantidad_disponible = o.computed
	from outstanding o
	where libro.id_libro = o.id_libro and o.cantidad_disponible <> o.computed
	returning libro.id_libro, o.cantidad_disponible, o.computed`

	var drifts []model.Drift
	if err := r.db.SelectContext(ctx, &drifts, q, model.LoanActive, model.LoanOverdue); err != nil {
		return nil, err
	}
	for _, d := range drifts {
		r.log.Warn("availability drift corrected",
			zap.Int("id_libro", d.BookID),
			zap.Int("stored", d.Stored),
			zap.Int("computed", d.Computed),
		)
	}
	return drifts, nil
}
