package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/errs"
	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/model"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (r *repository) CreateAuthor(ctx context.Context, req model.CreateAuthorRequest) (model.Author, error) {
	q, args, err := qb.Insert(authorTableName).
		Columns("nombre", "nacionalidad", "fec_nacimiento").
		Values(req.Name, req.Nationality, req.BirthDate).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Author{}, err
	}
	var author model.Author
	if err := r.db.GetContext(ctx, &author, q, args...); err != nil {
		return model.Author{}, err
	}
	return author, nil
}

func (r *repository) GetAuthor(ctx context.Context, id int) (model.Author, error) {
	q, args, err := qb.Select("id_autor", "nombre", "nacionalidad", "fec_nacimiento").
		From(authorTableName).
		Where(sq.Eq{"id_autor": id}).
		ToSql()
	if err != nil {
		return model.Author{}, err
	}
	var author model.Author
	if err := r.db.GetContext(ctx, &author, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Author{}, errs.ErrNotFound
		}
		return model.Author{}, err
	}
	return author, nil
}

func (r *repository) ListAuthors(ctx context.Context) ([]model.Author, error) {
	q, args, err := qb.Select("id_autor", "nombre", "nacionalidad", "fec_nacimiento").
		From(authorTableName).
		OrderBy("id_autor").
		ToSql()
	if err != nil {
		return nil, err
	}
	var authors []model.Author
	if err := r.db.SelectContext(ctx, &authors, q, args...); err != nil {
		return nil, err
	}
	return authors, nil
}

func (r *repository) UpdateAuthor(ctx context.Context, id int, req model.CreateAuthorRequest) (model.Author, error) {
	q, args, err := qb.Update(authorTableName).
		Set("nombre", req.Name).
		Set("nacionalidad", req.Nationality).
		Set("fec_nacimiento", req.BirthDate).
		Where(sq.Eq{"id_autor": id}).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Author{}, err
	}
	var author model.Author
	if err := r.db.GetContext(ctx, &author, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Author{}, errs.ErrNotFound
		}
		return model.Author{}, err
	}
	return author, nil
}

// DeleteAuthor removes an author. Without cascade it refuses while any book
// of the author remains. With cascade it removes the author's books together
// with their loan and reservation history, but refuses while a loan is still
// outstanding or a reservation still pending.
func (r *repository) DeleteAuthor(ctx context.Context, id int, cascade bool) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		var books int
		if err := tx.QueryRowContext(ctx,
			`select count(*) from libro where id_autor = $1`, id).Scan(&books); err != nil {
			return err
		}
		if books > 0 && !cascade {
			return errs.ErrAuthorHasBooks
		}
		if cascade && books > 0 {
			var busy int
			q := fmt.Sprintf(`
	select (select count(*) from %s p join %s l using (id_libro)
		where l.id_autor = $1 and p.id_estado_prestamo in ($2, $3))
	     + (select count(*) from %s rv join %s l using (id_libro)
		where l.id_autor = $1 and rv.id_estado_reserva = $4)`,
				loanTableName, bookTableName, reservationTableName, bookTableName)
			if err := tx.QueryRowContext(ctx, q, id,
				model.LoanActive, model.LoanOverdue, model.ReservationPending).Scan(&busy); err != nil {
				return err
			}
			if busy > 0 {
				return errs.ErrBooksOnLoan
			}
			for _, del := range []string{
				`delete from reserva where id_libro in (select id_libro from libro where id_autor = $1)`,
				`delete from prestamo where id_libro in (select id_libro from libro where id_autor = $1)`,
				`delete from libro where id_autor = $1`,
			} {
				if _, err := tx.ExecContext(ctx, del, id); err != nil {
					return err
				}
			}
		}
		res, err := tx.ExecContext(ctx, `delete from autor where id_autor = $1`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errs.ErrNotFound
		}
		r.log.Info("author deleted", zap.Int("id_autor", id), zap.Bool("cascade", cascade), zap.Int("books", books))
		return nil
	})
}

func (r *repository) CreateCategory(ctx context.Context, name string) (model.Category, error) {
	q, args, err := qb.Insert(categoryTableName).
		Columns("nombre").
		Values(name).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Category{}, err
	}
	var category model.Category
	if err := r.db.GetContext(ctx, &category, q, args...); err != nil {
		if isUniqueViolation(err) {
			return model.Category{}, errs.ErrConflict
		}
		return model.Category{}, err
	}
	return category, nil
}

func (r *repository) ListCategories(ctx context.Context) ([]model.Category, error) {
	q, args, err := qb.Select("id_categoria", "nombre").
		From(categoryTableName).
		OrderBy("id_categoria").
		ToSql()
	if err != nil {
		return nil, err
	}
	var categories []model.Category
	if err := r.db.SelectContext(ctx, &categories, q, args...); err != nil {
		return nil, err
	}
	return categories, nil
}
