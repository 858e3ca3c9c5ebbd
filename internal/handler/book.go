package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mariocelzo/biblioflow/internal/model"
	"github.com/mariocelzo/biblioflow/internal/repository"
)

// BookHandler covers the catalogue: public reads, staff writes.
type BookHandler struct {
	Books *repository.BookRepo
}

func NewBookHandler(books *repository.BookRepo) *BookHandler {
	return &BookHandler{Books: books}
}

type bookReq struct {
	ISBN        string `json:"isbn"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	TotalCopies uint32 `json:"totalCopies"`
}

type bookResp struct {
	ID              uint64 `json:"id"`
	ISBN            string `json:"isbn"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	TotalCopies     uint32 `json:"totalCopies"`
	AvailableCopies uint32 `json:"availableCopies"`
	IsActive        bool   `json:"isActive"`
}

func toBookResp(b *model.Book) bookResp {
	return bookResp{
		ID: b.ID, ISBN: b.ISBN, Title: b.Title, Author: b.Author,
		TotalCopies: b.TotalCopies, AvailableCopies: b.AvailableCopies,
		IsActive: b.IsActive,
	}
}

// List handles GET /v1/books?search=...
func (h *BookHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	books, err := h.Books.List(ctx, c.QueryParam("search"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]bookResp, 0, len(books))
	for i := range books {
		out = append(out, toBookResp(&books[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"books": out})
}

// Get handles GET /v1/books/:id.
func (h *BookHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	book, err := h.Books.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBookNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toBookResp(book))
}

// Create handles POST /v1/books (staff only).
func (h *BookHandler) Create(c echo.Context) error {
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Title == "" || req.Author == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and author are required"})
	}
	if req.TotalCopies == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "totalCopies must be at least 1"})
	}

	book := &model.Book{
		ISBN: req.ISBN, Title: req.Title, Author: req.Author,
		TotalCopies: req.TotalCopies, AvailableCopies: req.TotalCopies,
		IsActive: true,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Books.Create(ctx, book); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create book"})
	}
	return c.JSON(http.StatusCreated, toBookResp(book))
}
