package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/errs"
	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/model"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var reservationColumns = []string{
	"id_reserva", "reserva_uid", "id_usuario", "id_libro", "fecha_reserva", "id_estado_reserva",
}

// CreateReservation queues a reservation without touching the ledger. The
// partial unique index on pending rows turns a duplicate request into a
// typed conflict.
func (r *repository) CreateReservation(ctx context.Context, userID, bookID int) (model.Reservation, error) {
	q, args, err := qb.Insert(reservationTableName).
		Columns("reserva_uid", "id_usuario", "id_libro", "fecha_reserva", "id_estado_reserva").
		Values(uuid.New(), userID, bookID, time.Now().UTC(), model.ReservationPending).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	var res model.Reservation
	if err := r.db.GetContext(ctx, &res, q, args...); err != nil {
		if isUniqueViolation(err) {
			return model.Reservation{}, errs.ErrDuplicateReservation
		}
		return model.Reservation{}, err
	}
	return res, nil
}

func (r *repository) GetReservation(ctx context.Context, reservationUid string) (model.Reservation, error) {
	q, args, err := qb.Select(reservationColumns...).
		From(reservationTableName).
		Where(sq.Eq{"reserva_uid": reservationUid}).
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	var res model.Reservation
	if err := r.db.GetContext(ctx, &res, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reservation{}, errs.ErrNotFound
		}
		return model.Reservation{}, err
	}
	return res, nil
}

func (r *repository) ListReservationsByUser(ctx context.Context, userID int) ([]model.Reservation, error) {
	q, args, err := qb.Select(reservationColumns...).
		From(reservationTableName).
		Where(sq.Eq{"id_usuario": userID}).
		OrderBy("fecha_reserva desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	var items []model.Reservation
	if err := r.db.SelectContext(ctx, &items, q, args...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListPendingReservations(ctx context.Context, bookID int) ([]model.Reservation, error) {
	q, args, err := qb.Select(reservationColumns...).
		From(reservationTableName).
		Where(sq.Eq{"id_libro": bookID, "id_estado_reserva": model.ReservationPending}).
		OrderBy("fecha_reserva", "id_reserva").
		ToSql()
	if err != nil {
		return nil, err
	}
	var items []model.Reservation
	if err := r.db.SelectContext(ctx, &items, q, args...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) CancelReservation(ctx context.Context, reservationUid string) (model.Reservation, error) {
	q := `
	update reserva set id_estado_reserva = $1
	where reserva_uid = $2 and id_estado_reserva = $3
	returning *`

	var res model.Reservation
	err := r.db.GetContext(ctx, &res, q,
		model.ReservationCancelled, reservationUid, model.ReservationPending)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, err
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`select exists(select 1 from reserva where reserva_uid = $1)`, reservationUid).Scan(&exists); err != nil {
		return model.Reservation{}, err
	}
	if !exists {
		return model.Reservation{}, errs.ErrNotFound
	}
	return model.Reservation{}, errs.ErrConflict
}

// ExpireReservations sweeps pending reservations older than the cutoff.
func (r *repository) ExpireReservations(ctx context.Context, before time.Time) ([]model.Reservation, error) {
	q := `
	update reserva set id_estado_reserva = $1
	where id_estado_reserva = $2 and fecha_reserva < $3
	returning *`

	var items []model.Reservation
	if err := r.db.SelectContext(ctx, &items, q,
		model.ReservationExpired, model.ReservationPending, before); err != nil {
		return nil, err
	}
	return items, nil
}

// PromoteNextReservation converts the oldest pending reservation on a book
// into a loan. Selecting the head of the queue with FOR UPDATE SKIP LOCKED,
// consuming the copy and writing both rows happen in one transaction, so two
// concurrent returns cannot fulfill the same reservation or over-consume.
// Returns nil without error when there is nothing to promote or no copy left.
func (r *repository) PromoteNextReservation(ctx context.Context, bookID int, dueAt time.Time) (*model.Promotion, error) {
	var promo *model.Promotion
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		q := `
	update reserva set id_estado_reserva = $1
	where id_reserva = (
		select id_reserva from reserva
		where id_libro = $2 and id_estado_reserva = $3
		order by fecha_reserva, id_reserva
		limit 1
		for update skip locked
	)
	returning *`

		var res model.Reservation
		err := tx.GetContext(ctx, &res, q,
			model.ReservationFulfilled, bookID, model.ReservationPending)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := r.tryReserveCopy(ctx, tx, bookID); err != nil {
			if errors.Is(err, errs.ErrNoCopiesAvailable) {
				// roll the whole promotion back, the reservation stays pending
				return errs.ErrNoCopiesAvailable
			}
			return err
		}

		var loan model.Loan
		if err := r.insertLoan(ctx, tx, &loan, res.UserID, bookID, dueAt); err != nil {
			return err
		}
		promo = &model.Promotion{Reservation: res, Loan: loan}
		return nil
	})
	if errors.Is(err, errs.ErrNoCopiesAvailable) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return promo, nil
}
