package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/errs"
	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/model"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var userColumns = []string{
	"id_usuario", "username", "nombre", "contrasena", "email", "id_tipo_usuario",
	"id_estado_usuario", "fecha_registro", "intentos_fallidos", "requiere_cambio_pass",
}

// CreateUser inserts a new member. fecha_registro is written once here and
// never updated; the counters start at their defaults.
func (r *repository) CreateUser(ctx context.Context, req model.CreateUserRequest) (model.User, error) {
	q, args, err := qb.Insert(userTableName).
		Columns("username", "nombre", "contrasena", "email", "id_tipo_usuario",
			"id_estado_usuario", "fecha_registro", "intentos_fallidos", "requiere_cambio_pass").
		Values(req.Username, req.Name, req.Password, req.Email, req.Type,
			model.UserActive, time.Now().UTC(), 0, false).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := r.db.GetContext(ctx, &user, q, args...); err != nil {
		if isUniqueViolation(err) {
			return model.User{}, errs.ErrConflict
		}
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) GetUser(ctx context.Context, id int) (model.User, error) {
	return r.getUser(ctx, sq.Eq{"id_usuario": id})
}

func (r *repository) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return r.getUser(ctx, sq.Eq{"username": username})
}

func (r *repository) getUser(ctx context.Context, where sq.Eq) (model.User, error) {
	q, args, err := qb.Select(userColumns...).
		From(userTableName).
		Where(where).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := r.db.GetContext(ctx, &user, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.ErrNotFound
		}
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) ListUsers(ctx context.Context, page, size int) (model.ListUsers, error) {
	q := qb.Select(userColumns...).
		From(userTableName).
		OrderBy("id_usuario")

	if page != 0 && size != 0 {
		q = q.Limit(uint64(size)).Offset(uint64((page - 1) * size))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return model.ListUsers{}, err
	}
	var users []model.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return model.ListUsers{}, err
	}

	return model.ListUsers{
		Paging: model.Paging{
			Page:          page,
			PageSize:      size,
			TotalElements: len(users),
		},
		Items: users,
	}, nil
}

func (r *repository) SetUserStatus(ctx context.Context, id int, status model.UserStatus) error {
	res, err := r.db.ExecContext(ctx,
		`update usuario set id_estado_usuario = $1 where id_usuario = $2`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// RecordFailedAttempt bumps intentos_fallidos and, at the threshold, blocks
// the account and raises the forced-password-change flag in the same update.
func (r *repository) RecordFailedAttempt(ctx context.Context, id, maxAttempts int) (model.User, error) {
	q := `
	update usuario
	set intentos_fallidos    = intentos_fallidos + 1,
	    id_estado_usuario    = case when intentos_fallidos + 1 >= $2 then $3 else id_estado_usuario end,
	    requiere_cambio_pass = requiere_cambio_pass or intentos_fallidos + 1 >= $2
	where id_usuario = $1
	returning *`

	var user model.User
	if err := r.db.GetContext(ctx, &user, q, id, maxAttempts, model.UserBlocked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.ErrNotFound
		}
		return model.User{}, err
	}
	if user.Status == model.UserBlocked {
		r.log.Warn("user blocked after failed attempts",
			zap.Int("id_usuario", id), zap.Int("intentos_fallidos", user.FailedAttempts))
	}
	return user, nil
}

func (r *repository) ResetFailedAttempts(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx,
		`update usuario set intentos_fallidos = 0 where id_usuario = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *repository) CreateQuestion(ctx context.Context, text string) (model.SecurityQuestion, error) {
	q, args, err := qb.Insert(questionTableName).
		Columns("texto_pregunta").
		Values(text).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.SecurityQuestion{}, err
	}
	var question model.SecurityQuestion
	if err := r.db.GetContext(ctx, &question, q, args...); err != nil {
		if isUniqueViolation(err) {
			return model.SecurityQuestion{}, errs.ErrConflict
		}
		return model.SecurityQuestion{}, err
	}
	return question, nil
}

func (r *repository) ListQuestions(ctx context.Context) ([]model.SecurityQuestion, error) {
	q, args, err := qb.Select("id_pregunta", "texto_pregunta").
		From(questionTableName).
		OrderBy("id_pregunta").
		ToSql()
	if err != nil {
		return nil, err
	}
	var questions []model.SecurityQuestion
	if err := r.db.SelectContext(ctx, &questions, q, args...); err != nil {
		return nil, err
	}
	return questions, nil
}

// UpsertAnswer stores or replaces a user's answer to one question. The
// answer text is opaque to this service.
func (r *repository) UpsertAnswer(ctx context.Context, userID, questionID int, answer string) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`select exists(select 1 from pregunta_seguridad where id_pregunta = $1)`, questionID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return errs.ErrNotFound
		}
		q := `
	insert into usuario_respuesta (id_usuario, id_pregunta, respuesta)
	values ($1, $2, $3)
	on conflict (id_usuario, id_pregunta) do update set respuesta = excluded.respuesta`
		_, err := tx.ExecContext(ctx, q, userID, questionID, answer)
		return err
	})
}

func (r *repository) GetUserQuestions(ctx context.Context, userID int) ([]model.SecurityQuestion, error) {
	q := `
	select p.id_pregunta, p.texto_pregunta
	from pregunta_seguridad p
	join usuario_respuesta ur using (id_pregunta)
	where ur.id_usuario = $1
	order by p.id_pregunta`

	var questions []model.SecurityQuestion
	if err := r.db.SelectContext(ctx, &questions, q, userID); err != nil {
		return nil, err
	}
	return questions, nil
}
