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

var loanColumns = []string{
	"id_prestamo", "prestamo_uid", "id_usuario", "id_libro", "fecha_prestamo",
	"fecha_devolucion_esperada", "fecha_devolucion_real", "id_estado_prestamo",
}

// CreateLoan consumes a copy and records the loan as one transaction: either
// both happen or neither does.
func (r *repository) CreateLoan(ctx context.Context, userID, bookID int, dueAt time.Time) (model.Loan, error) {
	var loan model.Loan
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.tryReserveCopy(ctx, tx, bookID); err != nil {
			return err
		}
		return r.insertLoan(ctx, tx, &loan, userID, bookID, dueAt)
	})
	if err != nil {
		return model.Loan{}, err
	}
	return loan, nil
}

func (r *repository) insertLoan(ctx context.Context, tx *sqlx.Tx, loan *model.Loan, userID, bookID int, dueAt time.Time) error {
	q, args, err := qb.Insert(loanTableName).
		Columns("prestamo_uid", "id_usuario", "id_libro", "fecha_prestamo",
			"fecha_devolucion_esperada", "id_estado_prestamo").
		Values(uuid.New(), userID, bookID, time.Now().UTC(), dueAt, model.LoanActive).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return err
	}
	return tx.GetContext(ctx, loan, q, args...)
}

// ReturnLoan closes an outstanding loan and releases its copy in the same
// transaction. The status guard makes the second return of the same loan fail
// instead of releasing a second copy.
func (r *repository) ReturnLoan(ctx context.Context, loanUid string) (model.Loan, error) {
	var loan model.Loan
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		q := `
	update prestamo
	set id_estado_prestamo = $1, fecha_devolucion_real = now()
	where prestamo_uid = $2 and id_estado_prestamo in ($3, $4)
	returning *`

		err := tx.GetContext(ctx, &loan, q,
			model.LoanReturned, loanUid, model.LoanActive, model.LoanOverdue)
		if err == nil {
			return r.releaseCopy(ctx, tx, loan.BookID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`select exists(select 1 from prestamo where prestamo_uid = $1)`, loanUid).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return errs.ErrNotFound
		}
		return errs.ErrAlreadyReturned
	})
	if err != nil {
		return model.Loan{}, err
	}
	return loan, nil
}

func (r *repository) GetLoan(ctx context.Context, loanUid string) (model.Loan, error) {
	q, args, err := qb.Select(loanColumns...).
		From(loanTableName).
		Where(sq.Eq{"prestamo_uid": loanUid}).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	var loan model.Loan
	if err := r.db.GetContext(ctx, &loan, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Loan{}, errs.ErrNotFound
		}
		return model.Loan{}, err
	}
	return loan, nil
}

func (r *repository) ListLoansByUser(ctx context.Context, userID int) ([]model.Loan, error) {
	q, args, err := qb.Select(loanColumns...).
		From(loanTableName).
		Where(sq.Eq{"id_usuario": userID}).
		OrderBy("fecha_prestamo desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	var loans []model.Loan
	if err := r.db.SelectContext(ctx, &loans, q, args...); err != nil {
		return nil, err
	}
	return loans, nil
}

func (r *repository) ListOverdueLoans(ctx context.Context) ([]model.Loan, error) {
	q, args, err := qb.Select(loanColumns...).
		From(loanTableName).
		Where(sq.Eq{"id_estado_prestamo": model.LoanOverdue}).
		OrderBy("fecha_devolucion_esperada").
		ToSql()
	if err != nil {
		return nil, err
	}
	var loans []model.Loan
	if err := r.db.SelectContext(ctx, &loans, q, args...); err != nil {
		return nil, err
	}
	return loans, nil
}

// MarkOverdueLoans moves every active loan past its due date to ATRASADO and
// returns them. Copies stay consumed; only the stored state changes.
func (r *repository) MarkOverdueLoans(ctx context.Context, now time.Time) ([]model.Loan, error) {
	q := `
	update prestamo set id_estado_prestamo = $1
	where id_estado_prestamo = $2 and fecha_devolucion_esperada < $3
	returning *`

	var loans []model.Loan
	if err := r.db.SelectContext(ctx, &loans, q, model.LoanOverdue, model.LoanActive, now); err != nil {
		return nil, err
	}
	return loans, nil
}
