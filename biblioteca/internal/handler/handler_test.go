package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/errs"
	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/handler"
	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/model"
	"github.com/javeriana-dev/biblioteca-service/pkg/validate"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	service_mocks "github.com/javeriana-dev/biblioteca-service/biblioteca/internal/handler/mocks"
)

const (
	loanUid        = "6e6f1a31-47ad-4763-bb4d-6e32d375b3b0"
	reservationUid = "83575e12-7ce0-48ee-9931-51919ff3c9ee"
)

var (
	issuedAt   = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	dueAt      = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	returnedAt = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
)

func newTestEcho(t *testing.T) (*echo.Echo, *service_mocks.MockBibliotecaService, *handler.Handler) {
	t.Helper()
	c := gomock.NewController(t)
	t.Cleanup(c.Finish)
	svc := service_mocks.NewMockBibliotecaService(c)
	h := handler.New(svc, zap.NewExample().Named("test"))

	e := echo.New()
	e.Validator = validate.NewCustomValidator()
	return e, svc, h
}

func TestHandler_CreateLoan(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockBibliotecaService)

	var tests = []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			body: `{"userId":1,"bookId":7,"dueAt":"2026-03-15T10:00:00Z"}`,
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					CreateLoan(context.Background(), model.CreateLoanRequest{UserID: 1, BookID: 7, DueAt: dueAt}).
					Return(model.Loan{
						LoanUid:  loanUid,
						UserID:   1,
						BookID:   7,
						IssuedAt: issuedAt,
						DueAt:    dueAt,
						Status:   model.LoanActive,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusCreated,
				expectedBody: `{"loanUid":"6e6f1a31-47ad-4763-bb4d-6e32d375b3b0","userId":1,"bookId":7,"issuedAt":"2026-03-01T10:00:00Z","dueAt":"2026-03-15T10:00:00Z","status":"ACTIVO"}`,
			},
		},
		{
			name: "err. no copies",
			body: `{"userId":1,"bookId":7,"dueAt":"2026-03-15T10:00:00Z"}`,
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					CreateLoan(context.Background(), model.CreateLoanRequest{UserID: 1, BookID: 7, DueAt: dueAt}).
					Return(model.Loan{}, errs.ErrNoCopiesAvailable)
			},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"no copies available"}`,
			},
		},
		{
			name: "err. user blocked",
			body: `{"userId":1,"bookId":7,"dueAt":"2026-03-15T10:00:00Z"}`,
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					CreateLoan(context.Background(), model.CreateLoanRequest{UserID: 1, BookID: 7, DueAt: dueAt}).
					Return(model.Loan{}, errs.ErrUserNotActive)
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"user is not active"}`,
			},
		},
		{
			name:         "err. userId required",
			body:         `{"bookId":7,"dueAt":"2026-03-15T10:00:00Z"}`,
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, svc, h := newTestEcho(t)
			e.POST("/loans", h.CreateLoan)

			r := httptest.NewRequest(http.MethodPost, "/loans", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			if tt.response.expectedBody != "" {
				require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
			}
		})
	}
}

func TestHandler_ReturnLoan(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockBibliotecaService)

	var tests = []struct {
		name         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					ReturnLoan(context.Background(), loanUid).
					Return(model.Loan{
						LoanUid:    loanUid,
						UserID:     1,
						BookID:     7,
						IssuedAt:   issuedAt,
						DueAt:      dueAt,
						ReturnedAt: &returnedAt,
						Status:     model.LoanReturned,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"loanUid":"6e6f1a31-47ad-4763-bb4d-6e32d375b3b0","userId":1,"bookId":7,"issuedAt":"2026-03-01T10:00:00Z","dueAt":"2026-03-15T10:00:00Z","returnedAt":"2026-03-10T09:30:00Z","status":"DEVUELTO"}`,
			},
		},
		{
			name: "err. already returned",
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					ReturnLoan(context.Background(), loanUid).
					Return(model.Loan{}, errs.ErrAlreadyReturned)
			},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"loan already returned"}`,
			},
		},
		{
			name: "err. not found",
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					ReturnLoan(context.Background(), loanUid).
					Return(model.Loan{}, errs.ErrNotFound)
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"not found"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, svc, h := newTestEcho(t)
			e.POST("/loans/:loanUid/return", h.ReturnLoan)

			r := httptest.NewRequest(http.MethodPost, "/loans/"+loanUid+"/return", http.NoBody)
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_CreateReservation(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockBibliotecaService)

	reservedAt := time.Date(2026, 3, 2, 16, 45, 0, 0, time.UTC)

	var tests = []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			body: `{"userId":1,"bookId":7}`,
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					CreateReservation(context.Background(), model.CreateReservationRequest{UserID: 1, BookID: 7}).
					Return(model.Reservation{
						ReservationUid: reservationUid,
						UserID:         1,
						BookID:         7,
						ReservedAt:     reservedAt,
						Status:         model.ReservationPending,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusCreated,
				expectedBody: `{"reservationUid":"83575e12-7ce0-48ee-9931-51919ff3c9ee","userId":1,"bookId":7,"reservedAt":"2026-03-02T16:45:00Z","status":"PENDIENTE"}`,
			},
		},
		{
			name: "err. duplicate",
			body: `{"userId":1,"bookId":7}`,
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					CreateReservation(context.Background(), model.CreateReservationRequest{UserID: 1, BookID: 7}).
					Return(model.Reservation{}, errs.ErrDuplicateReservation)
			},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"pending reservation already exists"}`,
			},
		},
		{
			name: "err. unknown book",
			body: `{"userId":1,"bookId":999}`,
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					CreateReservation(context.Background(), model.CreateReservationRequest{UserID: 1, BookID: 999}).
					Return(model.Reservation{}, errs.ErrNotFound)
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"not found"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, svc, h := newTestEcho(t)
			e.POST("/reservations", h.CreateReservation)

			r := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_CancelReservation(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockBibliotecaService)

	reservedAt := time.Date(2026, 3, 2, 16, 45, 0, 0, time.UTC)

	var tests = []struct {
		name         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					CancelReservation(context.Background(), reservationUid).
					Return(model.Reservation{
						ReservationUid: reservationUid,
						UserID:         1,
						BookID:         7,
						ReservedAt:     reservedAt,
						Status:         model.ReservationCancelled,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"reservationUid":"83575e12-7ce0-48ee-9931-51919ff3c9ee","userId":1,"bookId":7,"reservedAt":"2026-03-02T16:45:00Z","status":"CANCELADA"}`,
			},
		},
		{
			name: "err. not pending",
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					CancelReservation(context.Background(), reservationUid).
					Return(model.Reservation{}, errs.ErrConflict)
			},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"already exists"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, svc, h := newTestEcho(t)
			e.POST("/reservations/:reservationUid/cancel", h.CancelReservation)

			r := httptest.NewRequest(http.MethodPost, "/reservations/"+reservationUid+"/cancel", http.NoBody)
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_ListBooks(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockBibliotecaService)

	var tests = []struct {
		name         string
		target       string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name:   "ok",
			target: "/books?availableOnly=true&page=1&size=10",
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					SearchBooks(context.Background(), model.BookCriteria{AvailableOnly: true}, 1, 10).
					Return(model.ListBooks{
						Paging: model.Paging{
							Page:          1,
							PageSize:      10,
							TotalElements: 1,
						},
						Items: []model.Book{
							{
								ID:             7,
								ISBN:           "9780307474728",
								Title:          "Cien años de soledad",
								AuthorID:       1,
								CategoryID:     2,
								Publisher:      "Sudamericana",
								TotalCopies:    3,
								AvailableCount: 1,
							},
						},
					}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"page":1,"pageSize":10,"totalElements":1,"items":[{"id":7,"isbn":"9780307474728","title":"Cien años de soledad","authorId":1,"categoryId":2,"publisher":"Sudamericana","totalCopies":3,"availableCount":1}]}`,
			},
		},
		{
			name:   "err. internal",
			target: "/books",
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					SearchBooks(context.Background(), model.BookCriteria{}, 0, 0).
					Return(model.ListBooks{}, errors.New("db internal"))
			},
			response: response{
				expectedCode: http.StatusInternalServerError,
				expectedBody: `{"message":"db internal"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, svc, h := newTestEcho(t)
			e.GET("/books", h.ListBooks)

			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_SetTotal(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockBibliotecaService)

	var tests = []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			body: `{"total":5}`,
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					SetTotal(context.Background(), 7, 5).
					Return(model.Book{
						ID:             7,
						ISBN:           "9780307474728",
						Title:          "Cien años de soledad",
						AuthorID:       1,
						CategoryID:     2,
						TotalCopies:    5,
						AvailableCount: 3,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"id":7,"isbn":"9780307474728","title":"Cien años de soledad","authorId":1,"categoryId":2,"totalCopies":5,"availableCount":3}`,
			},
		},
		{
			name: "err. below outstanding",
			body: `{"total":1}`,
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					SetTotal(context.Background(), 7, 1).
					Return(model.Book{}, errs.ErrInvalidAdjustment)
			},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"total below outstanding loans"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, svc, h := newTestEcho(t)
			e.PUT("/books/:id/total", h.SetTotal)

			r := httptest.NewRequest(http.MethodPut, "/books/7/total", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_DeleteAuthor(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockBibliotecaService)

	var tests = []struct {
		name         string
		target       string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name:   "ok",
			target: "/authors/3",
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					DeleteAuthor(context.Background(), 3, false).
					Return(nil)
			},
			response: response{
				expectedCode: http.StatusNoContent,
				expectedBody: ``,
			},
		},
		{
			name:   "ok. cascade",
			target: "/authors/3?cascade=true",
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					DeleteAuthor(context.Background(), 3, true).
					Return(nil)
			},
			response: response{
				expectedCode: http.StatusNoContent,
				expectedBody: ``,
			},
		},
		{
			name:   "err. has books",
			target: "/authors/3",
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					DeleteAuthor(context.Background(), 3, false).
					Return(errs.ErrAuthorHasBooks)
			},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"author still has books"}`,
			},
		},
		{
			name:   "err. books on loan",
			target: "/authors/3?cascade=true",
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					DeleteAuthor(context.Background(), 3, true).
					Return(errs.ErrBooksOnLoan)
			},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"books with outstanding loans"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, svc, h := newTestEcho(t)
			e.DELETE("/authors/:id", h.DeleteAuthor)

			r := httptest.NewRequest(http.MethodDelete, tt.target, http.NoBody)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_CreateUser(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockBibliotecaService)

	registeredAt := time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC)

	var tests = []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			body: `{"username":"ana","name":"Ana Pérez","password":"secret","email":"ana@javeriana.edu.co","type":"ESTUDIANTE"}`,
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					CreateUser(context.Background(), model.CreateUserRequest{
						Username: "ana",
						Name:     "Ana Pérez",
						Password: "secret",
						Email:    "ana@javeriana.edu.co",
						Type:     model.UserStudent,
					}).
					Return(model.User{
						ID:           1,
						Username:     "ana",
						Name:         "Ana Pérez",
						Email:        "ana@javeriana.edu.co",
						Type:         model.UserStudent,
						Status:       model.UserActive,
						RegisteredAt: registeredAt,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusCreated,
				expectedBody: `{"id":1,"username":"ana","name":"Ana Pérez","email":"ana@javeriana.edu.co","type":"ESTUDIANTE","status":"ACTIVO","registeredAt":"2026-02-20T08:00:00Z","failedAttempts":0,"passwordChangeDue":false}`,
			},
		},
		{
			name: "err. duplicate username",
			body: `{"username":"ana","name":"Ana Pérez","password":"secret","email":"ana@javeriana.edu.co","type":"ESTUDIANTE"}`,
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {
				r.EXPECT().
					CreateUser(context.Background(), gomock.Any()).
					Return(model.User{}, errs.ErrConflict)
			},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"already exists"}`,
			},
		},
		{
			name:         "err. unknown type",
			body:         `{"username":"ana","name":"Ana Pérez","password":"secret","email":"ana@javeriana.edu.co","type":"BECARIO"}`,
			mockBehavior: func(r *service_mocks.MockBibliotecaService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, svc, h := newTestEcho(t)
			e.POST("/users", h.CreateUser)

			r := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			if tt.response.expectedBody != "" {
				require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
			}
		})
	}
}
