package service

import (
	"context"
	"time"

	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/errs"
	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/model"
	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/repository"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Policy holds the circulation knobs that are configuration, not code.
type Policy struct {
	LoanDays        int           `envconfig:"LOAN_DAYS" default:"14"`
	ReservationTTL  time.Duration `envconfig:"RESERVATION_TTL" default:"168h"`
	MaxFailedLogins int           `envconfig:"MAX_FAILED_LOGINS" default:"5"`
}

type Service struct {
	log    *zap.Logger
	repo   repository.Repository
	events EventPublisher
	policy Policy
}

func NewService(repo repository.Repository, events EventPublisher, policy Policy, log *zap.Logger) *Service {
	return &Service{
		log:    log,
		repo:   repo,
		events: events,
		policy: policy,
	}
}

// VerifyCatalogs checks the seeded status catalogs against the closed sets the
// code compiles against. A drifted catalog row would silently remap stored
// statuses, so boot fails instead.
func (s *Service) VerifyCatalogs(ctx context.Context) error {
	for table := range model.CatalogSeeds {
		rows, err := s.repo.LoadCatalog(ctx, table)
		if err != nil {
			return errors.Wrapf(err, "load catalog %s", table)
		}
		if err := model.VerifyCatalog(table, rows); err != nil {
			return err
		}
	}
	return nil
}

// ReconcileAvailability recomputes the cached counters from the loan table.
func (s *Service) ReconcileAvailability(ctx context.Context) ([]model.Drift, error) {
	drifts, err := s.repo.ReconcileAvailability(ctx)
	if err != nil {
		return nil, err
	}
	if len(drifts) > 0 {
		s.log.Warn("availability reconciled", zap.Int("books", len(drifts)))
	}
	return drifts, nil
}

func (s *Service) CreateAuthor(ctx context.Context, req model.CreateAuthorRequest) (model.Author, error) {
	return s.repo.CreateAuthor(ctx, req)
}

func (s *Service) GetAuthor(ctx context.Context, id int) (model.Author, error) {
	return s.repo.GetAuthor(ctx, id)
}

func (s *Service) ListAuthors(ctx context.Context) ([]model.Author, error) {
	return s.repo.ListAuthors(ctx)
}

func (s *Service) UpdateAuthor(ctx context.Context, id int, req model.CreateAuthorRequest) (model.Author, error) {
	return s.repo.UpdateAuthor(ctx, id, req)
}

// DeleteAuthor requires an explicit cascade decision from the caller; there
// is no implicit ownership-triggered deletion of books.
func (s *Service) DeleteAuthor(ctx context.Context, id int, cascade bool) error {
	return s.repo.DeleteAuthor(ctx, id, cascade)
}

func (s *Service) CreateCategory(ctx context.Context, name string) (model.Category, error) {
	return s.repo.CreateCategory(ctx, name)
}

func (s *Service) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.repo.ListCategories(ctx)
}

// CreateBook checks the referenced author and category before inserting, so a
// broken reference surfaces as NotFound rather than an FK error.
func (s *Service) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	if _, err := s.repo.GetAuthor(ctx, req.AuthorID); err != nil {
		return model.Book{}, errors.Wrap(err, "author")
	}
	if err := s.categoryExists(ctx, req.CategoryID); err != nil {
		return model.Book{}, errors.Wrap(err, "category")
	}
	return s.repo.CreateBook(ctx, req)
}

func (s *Service) categoryExists(ctx context.Context, id int) error {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return err
	}
	for _, c := range categories {
		if c.ID == id {
			return nil
		}
	}
	return errs.ErrNotFound
}

func (s *Service) GetBook(ctx context.Context, id int) (model.Book, error) {
	return s.repo.GetBook(ctx, id)
}

func (s *Service) UpdateBook(ctx context.Context, id int, req model.UpdateBookRequest) (model.Book, error) {
	return s.repo.UpdateBook(ctx, id, req)
}

func (s *Service) ListBooks(ctx context.Context, page, size int) (model.ListBooks, error) {
	return s.repo.ListBooks(ctx, page, size)
}

func (s *Service) SearchBooks(ctx context.Context, c model.BookCriteria, page, size int) (model.ListBooks, error) {
	return s.repo.SearchBooks(ctx, c, page, size)
}

// SetTotal adjusts how many copies the library owns. Freed or consumed slack
// moves cantidad_disponible by the same delta; shrinking below outstanding
// loans fails. A raise may unblock the reservation queue, so promotion runs
// afterwards.
func (s *Service) SetTotal(ctx context.Context, bookID, newTotal int) (model.Book, error) {
	book, err := s.repo.SetTotal(ctx, bookID, newTotal)
	if err != nil {
		return model.Book{}, err
	}
	if book.AvailableCount > 0 {
		s.drainQueue(ctx, bookID)
		return s.repo.GetBook(ctx, bookID)
	}
	return book, nil
}

func (s *Service) CreateUser(ctx context.Context, req model.CreateUserRequest) (model.User, error) {
	if !req.Type.Valid() {
		return model.User{}, errors.Wrap(errs.ErrNotFound, "user type")
	}
	return s.repo.CreateUser(ctx, req)
}

func (s *Service) GetUser(ctx context.Context, id int) (model.User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *Service) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return s.repo.GetUserByUsername(ctx, username)
}

func (s *Service) ListUsers(ctx context.Context, page, size int) (model.ListUsers, error) {
	return s.repo.ListUsers(ctx, page, size)
}

func (s *Service) SetUserStatus(ctx context.Context, id int, status model.UserStatus) error {
	if !status.Valid() {
		return errors.Wrap(errs.ErrNotFound, "user status")
	}
	return s.repo.SetUserStatus(ctx, id, status)
}

func (s *Service) RecordFailedAttempt(ctx context.Context, id int) (model.User, error) {
	return s.repo.RecordFailedAttempt(ctx, id, s.policy.MaxFailedLogins)
}

func (s *Service) ResetFailedAttempts(ctx context.Context, id int) error {
	return s.repo.ResetFailedAttempts(ctx, id)
}

func (s *Service) CreateQuestion(ctx context.Context, text string) (model.SecurityQuestion, error) {
	return s.repo.CreateQuestion(ctx, text)
}

func (s *Service) ListQuestions(ctx context.Context) ([]model.SecurityQuestion, error) {
	return s.repo.ListQuestions(ctx)
}

func (s *Service) SetAnswer(ctx context.Context, userID, questionID int, answer string) error {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return err
	}
	return s.repo.UpsertAnswer(ctx, userID, questionID, answer)
}

func (s *Service) GetUserQuestions(ctx context.Context, userID int) ([]model.SecurityQuestion, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.GetUserQuestions(ctx, userID)
}
