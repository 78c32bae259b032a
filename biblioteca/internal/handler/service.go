package handler

import (
	"context"

	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/model"
	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type BibliotecaService interface {
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

	CreateUser(ctx context.Context, req model.CreateUserRequest) (model.User, error)
	GetUser(ctx context.Context, id int) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	ListUsers(ctx context.Context, page, size int) (model.ListUsers, error)
	SetUserStatus(ctx context.Context, id int, status model.UserStatus) error
	RecordFailedAttempt(ctx context.Context, id int) (model.User, error)
	ResetFailedAttempts(ctx context.Context, id int) error
	CreateQuestion(ctx context.Context, text string) (model.SecurityQuestion, error)
	ListQuestions(ctx context.Context) ([]model.SecurityQuestion, error)
	SetAnswer(ctx context.Context, userID, questionID int, answer string) error
	GetUserQuestions(ctx context.Context, userID int) ([]model.SecurityQuestion, error)

	CreateLoan(ctx context.Context, req model.CreateLoanRequest) (model.Loan, error)
	ReturnLoan(ctx context.Context, loanUid string) (model.Loan, error)
	GetLoan(ctx context.Context, loanUid string) (model.Loan, error)
	ListLoansByUser(ctx context.Context, userID int) ([]model.Loan, error)
	ListOverdueLoans(ctx context.Context) ([]model.Loan, error)
	MarkOverdueLoans(ctx context.Context) (int, error)
	CreateReservation(ctx context.Context, req model.CreateReservationRequest) (model.Reservation, error)
	GetReservation(ctx context.Context, reservationUid string) (model.Reservation, error)
	ListReservationsByUser(ctx context.Context, userID int) ([]model.Reservation, error)
	ListPendingReservations(ctx context.Context, bookID int) ([]model.Reservation, error)
	CancelReservation(ctx context.Context, reservationUid string) (model.Reservation, error)
	ExpireReservations(ctx context.Context) (int, error)

	ReconcileAvailability(ctx context.Context) ([]model.Drift, error)
}

var _ BibliotecaService = (*service.Service)(nil)
