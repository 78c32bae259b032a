package handler

import (
	"net/http"

	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/model"

	"github.com/labstack/echo/v4"
)

func (h *Handler) ListUsers(c echo.Context) error {
	page, size := paging(c)
	users, err := h.svc.ListUsers(c.Request().Context(), page, size)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req model.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	user, err := h.svc.CreateUser(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *Handler) GetUserByUsername(c echo.Context) error {
	username := c.Param("username")
	if username == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username is empty")
	}
	user, err := h.svc.GetUserByUsername(c.Request().Context(), username)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) SetUserStatus(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	type req struct {
		Status model.UserStatus `json:"status" validate:"required"`
	}
	var r req
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(r); err != nil {
		return err
	}
	if err := h.svc.SetUserStatus(c.Request().Context(), id, r.Status); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RecordFailedAttempt(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.svc.RecordFailedAttempt(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) ResetFailedAttempts(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.ResetFailedAttempts(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListQuestions(c echo.Context) error {
	questions, err := h.svc.ListQuestions(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, questions)
}

func (h *Handler) CreateQuestion(c echo.Context) error {
	type req struct {
		Text string `json:"text" validate:"required,max=255"`
	}
	var r req
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(r); err != nil {
		return err
	}
	question, err := h.svc.CreateQuestion(c.Request().Context(), r.Text)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, question)
}

func (h *Handler) SetAnswer(c echo.Context) error {
	userID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	questionID, err := pathID(c, "questionId")
	if err != nil {
		return err
	}
	type req struct {
		Answer string `json:"answer" validate:"required,max=255"`
	}
	var r req
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(r); err != nil {
		return err
	}
	if err := h.svc.SetAnswer(c.Request().Context(), userID, questionID, r.Answer); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetUserQuestions(c echo.Context) error {
	userID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	questions, err := h.svc.GetUserQuestions(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, questions)
}
