package service

import (
	"context"
	"time"

	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/errs"
	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/model"
	"github.com/javeriana-dev/biblioteca-service/pkg/kafka"

	"go.uber.org/zap"
)

// CreateLoan hands one copy to a user. The copy decrement and the loan row
// are one transaction inside the repository; here we gate on the member being
// active and the due date being sane, then announce the event.
func (s *Service) CreateLoan(ctx context.Context, req model.CreateLoanRequest) (model.Loan, error) {
	user, err := s.repo.GetUser(ctx, req.UserID)
	if err != nil {
		return model.Loan{}, err
	}
	if user.Status != model.UserActive {
		return model.Loan{}, errs.ErrUserNotActive
	}
	if !req.DueAt.After(time.Now()) {
		return model.Loan{}, errs.ErrDueDate
	}

	loan, err := s.repo.CreateLoan(ctx, req.UserID, req.BookID, req.DueAt)
	if err != nil {
		return model.Loan{}, err
	}
	s.publish(ctx, kafka.EventLoanCreated, loan.BookID, loan.UserID, loan.LoanUid)
	return loan, nil
}

// ReturnLoan closes the loan, releases the copy and then offers the freed
// copy to the reservation queue. A terminal loan fails with AlreadyReturned;
// the release happened exactly once, on the first call.
func (s *Service) ReturnLoan(ctx context.Context, loanUid string) (model.Loan, error) {
	loan, err := s.repo.ReturnLoan(ctx, loanUid)
	if err != nil {
		return model.Loan{}, err
	}
	s.publish(ctx, kafka.EventLoanReturned, loan.BookID, loan.UserID, loan.LoanUid)

	if _, err := s.promote(ctx, loan.BookID); err != nil {
		// the return already committed; promotion will be retried on the
		// next return or by the sweep
		s.log.Error("promote after return", zap.Int("id_libro", loan.BookID), zap.Error(err))
	}
	return loan, nil
}

func (s *Service) GetLoan(ctx context.Context, loanUid string) (model.Loan, error) {
	return s.repo.GetLoan(ctx, loanUid)
}

func (s *Service) ListLoansByUser(ctx context.Context, userID int) ([]model.Loan, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListLoansByUser(ctx, userID)
}

func (s *Service) ListOverdueLoans(ctx context.Context) ([]model.Loan, error) {
	return s.repo.ListOverdueLoans(ctx)
}

// MarkOverdueLoans is the clock sweep: active loans past due become ATRASADO.
func (s *Service) MarkOverdueLoans(ctx context.Context) (int, error) {
	loans, err := s.repo.MarkOverdueLoans(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	for _, loan := range loans {
		s.publish(ctx, kafka.EventLoanOverdue, loan.BookID, loan.UserID, loan.LoanUid)
	}
	return len(loans), nil
}

// CreateReservation queues the request without consuming availability. A
// second pending reservation by the same user on the same book is refused.
func (s *Service) CreateReservation(ctx context.Context, req model.CreateReservationRequest) (model.Reservation, error) {
	user, err := s.repo.GetUser(ctx, req.UserID)
	if err != nil {
		return model.Reservation{}, err
	}
	if user.Status != model.UserActive {
		return model.Reservation{}, errs.ErrUserNotActive
	}
	if _, err := s.repo.GetBook(ctx, req.BookID); err != nil {
		return model.Reservation{}, err
	}

	res, err := s.repo.CreateReservation(ctx, req.UserID, req.BookID)
	if err != nil {
		return model.Reservation{}, err
	}
	s.publish(ctx, kafka.EventReservationCreated, res.BookID, res.UserID, res.ReservationUid)
	return res, nil
}

func (s *Service) GetReservation(ctx context.Context, reservationUid string) (model.Reservation, error) {
	return s.repo.GetReservation(ctx, reservationUid)
}

func (s *Service) ListReservationsByUser(ctx context.Context, userID int) ([]model.Reservation, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListReservationsByUser(ctx, userID)
}

func (s *Service) ListPendingReservations(ctx context.Context, bookID int) ([]model.Reservation, error) {
	if _, err := s.repo.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	return s.repo.ListPendingReservations(ctx, bookID)
}

func (s *Service) CancelReservation(ctx context.Context, reservationUid string) (model.Reservation, error) {
	res, err := s.repo.CancelReservation(ctx, reservationUid)
	if err != nil {
		return model.Reservation{}, err
	}
	s.publish(ctx, kafka.EventReservationCancelled, res.BookID, res.UserID, res.ReservationUid)
	return res, nil
}

// ExpireReservations sweeps the queue for requests older than the TTL.
func (s *Service) ExpireReservations(ctx context.Context) (int, error) {
	expired, err := s.repo.ExpireReservations(ctx, time.Now().Add(-s.policy.ReservationTTL))
	if err != nil {
		return 0, err
	}
	for _, res := range expired {
		s.publish(ctx, kafka.EventReservationExpired, res.BookID, res.UserID, res.ReservationUid)
	}
	return len(expired), nil
}

// promote fulfills the oldest pending reservation if a copy is free. The
// fulfillment loan runs for the configured loan period.
func (s *Service) promote(ctx context.Context, bookID int) (*model.Promotion, error) {
	dueAt := time.Now().AddDate(0, 0, s.policy.LoanDays)
	promo, err := s.repo.PromoteNextReservation(ctx, bookID, dueAt)
	if err != nil || promo == nil {
		return nil, err
	}
	s.log.Info("reservation fulfilled",
		zap.String("reserva_uid", promo.Reservation.ReservationUid),
		zap.String("prestamo_uid", promo.Loan.LoanUid),
		zap.Int("id_libro", bookID),
	)
	s.publish(ctx, kafka.EventReservationFulfilled, bookID, promo.Reservation.UserID, promo.Reservation.ReservationUid)
	s.publish(ctx, kafka.EventLoanCreated, bookID, promo.Loan.UserID, promo.Loan.LoanUid)
	return promo, nil
}

// drainQueue promotes until the queue or the shelf is empty.
func (s *Service) drainQueue(ctx context.Context, bookID int) {
	for {
		promo, err := s.promote(ctx, bookID)
		if err != nil {
			s.log.Error("drain queue", zap.Int("id_libro", bookID), zap.Error(err))
			return
		}
		if promo == nil {
			return
		}
	}
}
