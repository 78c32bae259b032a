package handler

import (
	"net/http"
	"strconv"

	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/model"

	"github.com/labstack/echo/v4"
)

func pathID(c echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func paging(c echo.Context) (page, size int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	size, _ = strconv.Atoi(c.QueryParam("size"))
	return page, size
}

func (h *Handler) ListAuthors(c echo.Context) error {
	authors, err := h.svc.ListAuthors(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, authors)
}

func (h *Handler) CreateAuthor(c echo.Context) error {
	var req model.CreateAuthorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	author, err := h.svc.CreateAuthor(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, author)
}

func (h *Handler) GetAuthor(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	author, err := h.svc.GetAuthor(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, author)
}

func (h *Handler) UpdateAuthor(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req model.CreateAuthorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	author, err := h.svc.UpdateAuthor(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, author)
}

// DeleteAuthor only removes the author's books when the caller passes
// cascade=true explicitly.
func (h *Handler) DeleteAuthor(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	cascade, _ := strconv.ParseBool(c.QueryParam("cascade"))
	if err := h.svc.DeleteAuthor(c.Request().Context(), id, cascade); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListCategories(c echo.Context) error {
	categories, err := h.svc.ListCategories(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, categories)
}

func (h *Handler) CreateCategory(c echo.Context) error {
	type req struct {
		Name string `json:"name" validate:"required,max=60"`
	}
	var r req
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(r); err != nil {
		return err
	}
	category, err := h.svc.CreateCategory(c.Request().Context(), r.Name)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, category)
}

// ListBooks handles both plain pagination and criteria search; any criteria
// query parameter switches to search.
func (h *Handler) ListBooks(c echo.Context) error {
	var criteria model.BookCriteria
	if err := c.Bind(&criteria); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	page, size := paging(c)

	books, err := h.svc.SearchBooks(c.Request().Context(), criteria, page, size)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) CreateBook(c echo.Context) error {
	var req model.CreateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	book, err := h.svc.CreateBook(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, book)
}

func (h *Handler) GetBook(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	book, err := h.svc.GetBook(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) UpdateBook(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req model.UpdateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	book, err := h.svc.UpdateBook(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) SetTotal(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	type req struct {
		Total int `json:"total" validate:"gte=0"`
	}
	var r req
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(r); err != nil {
		return err
	}
	book, err := h.svc.SetTotal(c.Request().Context(), id, r.Total)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}
