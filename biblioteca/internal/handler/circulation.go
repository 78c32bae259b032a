package handler

import (
	"net/http"

	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/model"

	"github.com/labstack/echo/v4"
)

func (h *Handler) CreateLoan(c echo.Context) error {
	var req model.CreateLoanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	loan, err := h.svc.CreateLoan(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, loan)
}

func (h *Handler) GetLoan(c echo.Context) error {
	loanUid := c.Param("loanUid")
	if loanUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "loanUid is empty")
	}
	loan, err := h.svc.GetLoan(c.Request().Context(), loanUid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) ReturnLoan(c echo.Context) error {
	loanUid := c.Param("loanUid")
	if loanUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "loanUid is empty")
	}
	loan, err := h.svc.ReturnLoan(c.Request().Context(), loanUid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) ListLoansByUser(c echo.Context) error {
	userID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	loans, err := h.svc.ListLoansByUser(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

func (h *Handler) ListOverdueLoans(c echo.Context) error {
	loans, err := h.svc.ListOverdueLoans(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

func (h *Handler) CreateReservation(c echo.Context) error {
	var req model.CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	res, err := h.svc.CreateReservation(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetReservation(c echo.Context) error {
	reservationUid := c.Param("reservationUid")
	if reservationUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reservationUid is empty")
	}
	res, err := h.svc.GetReservation(c.Request().Context(), reservationUid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) CancelReservation(c echo.Context) error {
	reservationUid := c.Param("reservationUid")
	if reservationUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reservationUid is empty")
	}
	res, err := h.svc.CancelReservation(c.Request().Context(), reservationUid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ListReservationsByUser(c echo.Context) error {
	userID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListReservationsByUser(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListPendingReservations(c echo.Context) error {
	bookID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListPendingReservations(c.Request().Context(), bookID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}
