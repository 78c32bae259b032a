package repository

import (
	"context"
	"time"

	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/model"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Repository interface {
	// catalog
	CreateAuthor(ctx context.Context, req model.CreateAuthorRequest) (model.Author, error)
	GetAuthor(ctx context.Context, id int) (model.Author, error)
	ListAuthors(ctx context.Context) ([]model.Author, error)
	UpdateAuthor(ctx context.Context, id int, req model.CreateAuthorRequest) (model.Author, error)
	DeleteAuthor(ctx context.Context, id int, cascade bool) error
	CreateCategory(ctx context.Context, name string) (model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	GetBook(ctx context.Context, id int) (model.Book, error)
	UpdateBook(ctx context.Context, id int, req model.UpdateBookRequest) (model.Book, error)
	ListBooks(ctx context.Context, page, size int) (model.ListBooks, error)
	SearchBooks(ctx context.Context, c model.BookCriteria, page, size int) (model.ListBooks, error)
	SetTotal(ctx context.Context, bookID, newTotal int) (model.Book, error)

	// membership
	CreateUser(ctx context.Context, req model.CreateUserRequest) (model.User, error)
	GetUser(ctx context.Context, id int) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	ListUsers(ctx context.Context, page, size int) (model.ListUsers, error)
	SetUserStatus(ctx context.Context, id int, status model.UserStatus) error
	RecordFailedAttempt(ctx context.Context, id, maxAttempts int) (model.User, error)
	ResetFailedAttempts(ctx context.Context, id int) error
	CreateQuestion(ctx context.Context, text string) (model.SecurityQuestion, error)
	ListQuestions(ctx context.Context) ([]model.SecurityQuestion, error)
	UpsertAnswer(ctx context.Context, userID, questionID int, answer string) error
	GetUserQuestions(ctx context.Context, userID int) ([]model.SecurityQuestion, error)

	// circulation
	CreateLoan(ctx context.Context, userID, bookID int, dueAt time.Time) (model.Loan, error)
	GetLoan(ctx context.Context, loanUid string) (model.Loan, error)
	ListLoansByUser(ctx context.Context, userID int) ([]model.Loan, error)
	ListOverdueLoans(ctx context.Context) ([]model.Loan, error)
	ReturnLoan(ctx context.Context, loanUid string) (model.Loan, error)
	MarkOverdueLoans(ctx context.Context, now time.Time) ([]model.Loan, error)
	CreateReservation(ctx context.Context, userID, bookID int) (model.Reservation, error)
	GetReservation(ctx context.Context, reservationUid string) (model.Reservation, error)
	ListReservationsByUser(ctx context.Context, userID int) ([]model.Reservation, error)
	ListPendingReservations(ctx context.Context, bookID int) ([]model.Reservation, error)
	CancelReservation(ctx context.Context, reservationUid string) (model.Reservation, error)
	ExpireReservations(ctx context.Context, before time.Time) ([]model.Reservation, error)
	PromoteNextReservation(ctx context.Context, bookID int, dueAt time.Time) (*model.Promotion, error)

	// ledger maintenance
	ReconcileAvailability(ctx context.Context) ([]model.Drift, error)
	LoadCatalog(ctx context.Context, table string) ([]model.CatalogRow, error)
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	authorTableName      = `autor`
	categoryTableName    = `categoria`
	bookTableName        = `libro`
	userTableName        = `usuario`
	questionTableName    = `pregunta_seguridad`
	answerTableName      = `usuario_respuesta`
	loanTableName        = `prestamo`
	reservationTableName = `reserva`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// isUniqueViolation reports whether err is a postgres unique-constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// inTx runs fn inside a transaction, rolling back on error.
func (r *repository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *repository) LoadCatalog(ctx context.Context, table string) ([]model.CatalogRow, error) {
	idColumn := map[string]string{
		"estado_prestamo_catalogo": "id_estado_prestamo",
		"estado_reserva_catalogo":  "id_estado_reserva",
		"tipo_usuario_catalogo":    "id_tipo_usuario",
		"estado_usuario_catalogo":  "id_estado_usuario",
	}[table]
	if idColumn == "" {
		return nil, errors.Errorf("unknown catalog table %q", table)
	}

	q, args, err := qb.Select(idColumn + " as id, nombre").
		From(table).
		OrderBy(idColumn).
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []model.CatalogRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
