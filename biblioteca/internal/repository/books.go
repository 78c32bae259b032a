package repository

import (
	"context"
	"database/sql"

	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/errs"
	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/model"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var bookColumns = []string{
	"id_libro", "isbn", "titulo", "id_autor", "id_categoria", "editorial",
	"ano_publicacion", "descripcion", "portada_url", "cantidad_total", "cantidad_disponible",
}

func (r *repository) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	q, args, err := qb.Insert(bookTableName).
		Columns("isbn", "titulo", "id_autor", "id_categoria", "editorial",
			"ano_publicacion", "descripcion", "portada_url", "cantidad_total", "cantidad_disponible").
		Values(req.ISBN, req.Title, req.AuthorID, req.CategoryID, req.Publisher,
			req.PublishedAt, req.Description, req.CoverURL, req.TotalCopies, req.TotalCopies).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var book model.Book
	if err := r.db.GetContext(ctx, &book, q, args...); err != nil {
		if isUniqueViolation(err) {
			return model.Book{}, errs.ErrConflict
		}
		r.log.Error("CreateBook", zap.String("q", q), zap.Any("args", args))
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) GetBook(ctx context.Context, id int) (model.Book, error) {
	q, args, err := qb.Select(bookColumns...).
		From(bookTableName).
		Where(sq.Eq{"id_libro": id}).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var book model.Book
	if err := r.db.GetContext(ctx, &book, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) UpdateBook(ctx context.Context, id int, req model.UpdateBookRequest) (model.Book, error) {
	upd := qb.Update(bookTableName).Where(sq.Eq{"id_libro": id})
	if req.Title != nil {
		upd = upd.Set("titulo", *req.Title)
	}
	if req.Publisher != nil {
		upd = upd.Set("editorial", *req.Publisher)
	}
	if req.PublishedAt != nil {
		upd = upd.Set("ano_publicacion", *req.PublishedAt)
	}
	if req.Description != nil {
		upd = upd.Set("descripcion", *req.Description)
	}
	if req.CoverURL != nil {
		upd = upd.Set("portada_url", *req.CoverURL)
	}

	q, args, err := upd.Suffix("returning *").ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var book model.Book
	if err := r.db.GetContext(ctx, &book, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) ListBooks(ctx context.Context, page, size int) (model.ListBooks, error) {
	return r.SearchBooks(ctx, model.BookCriteria{}, page, size)
}

func (r *repository) SearchBooks(ctx context.Context, c model.BookCriteria, page, size int) (model.ListBooks, error) {
	q := qb.Select(bookColumns...).
		From(bookTableName).
		OrderBy("id_libro")

	if c.Title != "" {
		q = q.Where(sq.ILike{"titulo": "%" + c.Title + "%"})
	}
	if c.ISBN != "" {
		q = q.Where(sq.Eq{"isbn": c.ISBN})
	}
	if c.AuthorID != 0 {
		q = q.Where(sq.Eq{"id_autor": c.AuthorID})
	}
	if c.CategoryID != 0 {
		q = q.Where(sq.Eq{"id_categoria": c.CategoryID})
	}
	if c.AvailableOnly {
		q = q.Where(sq.Gt{"cantidad_disponible": 0})
	}
	if page != 0 && size != 0 {
		q = q.Limit(uint64(size)).Offset(uint64((page - 1) * size))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return model.ListBooks{}, err
	}
	r.log.Debug("SearchBooks", zap.String("query", query), zap.Any("args", args))

	var books []model.Book
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return model.ListBooks{}, err
	}

	return model.ListBooks{
		Paging: model.Paging{
			Page:          page,
			PageSize:      size,
			TotalElements: len(books),
		},
		Items: books,
	}, nil
}
