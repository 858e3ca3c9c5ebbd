package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mariocelzo/biblioflow/internal/loans"
	"github.com/mariocelzo/biblioflow/internal/middleware"
	"github.com/mariocelzo/biblioflow/internal/model"
	"github.com/mariocelzo/biblioflow/internal/repository"
)

// LoanHandler covers the member-facing loan lifecycle.
type LoanHandler struct {
	Loans    *loans.Service
	LoanRepo *repository.LoanRepo
}

func NewLoanHandler(svc *loans.Service, repo *repository.LoanRepo) *LoanHandler {
	return &LoanHandler{Loans: svc, LoanRepo: repo}
}

type borrowReq struct {
	BookID uint64 `json:"bookId"`
}

type loanResp struct {
	ID           uint64     `json:"id"`
	UserID       uint64     `json:"userId"`
	BookID       uint64     `json:"bookId"`
	LoanDate     time.Time  `json:"loanDate"`
	DueDate      time.Time  `json:"dueDate"`
	ReturnedAt   *time.Time `json:"returnedAt,omitempty"`
	RenewalCount uint32     `json:"renewalCount"`
	MaxRenewals  uint32     `json:"maxRenewals"`
	Status       string     `json:"status"`
}

func toLoanResp(l *model.Loan) loanResp {
	return loanResp{
		ID: l.ID, UserID: l.UserID, BookID: l.BookID,
		LoanDate: l.LoanDate, DueDate: l.DueDate, ReturnedAt: l.ReturnedAt,
		RenewalCount: l.RenewalCount, MaxRenewals: l.MaxRenewals,
		Status: l.Status,
	}
}

// Borrow handles POST /v1/loans.
func (h *LoanHandler) Borrow(c echo.Context) error {
	var req borrowReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.BookID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "bookId is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	loan, err := h.Loans.Borrow(ctx, middleware.CurrentUserID(c), req.BookID, time.Now())
	switch {
	case errors.Is(err, repository.ErrBookNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
	case errors.Is(err, repository.ErrNoCopies):
		return c.JSON(http.StatusConflict, echo.Map{"error": "no copies available"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create loan"})
	}
	return c.JSON(http.StatusCreated, toLoanResp(loan))
}

// ListMine handles GET /v1/loans.
func (h *LoanHandler) ListMine(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.LoanRepo.ListByUser(ctx, middleware.CurrentUserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]loanResp, 0, len(list))
	for i := range list {
		out = append(out, toLoanResp(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"loans": out})
}

// Renew handles POST /v1/loans/:id/renew.
func (h *LoanHandler) Renew(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid loan id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	loan, err := h.Loans.Renew(ctx, id, middleware.CurrentUserID(c), middleware.IsStaff(c))
	switch {
	case errors.Is(err, repository.ErrLoanNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "loan not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "renew failed"})
	}
	return c.JSON(http.StatusOK, toLoanResp(loan))
}

// Return handles POST /v1/loans/:id/return.
func (h *LoanHandler) Return(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid loan id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err = h.Loans.Return(ctx, id, middleware.CurrentUserID(c), middleware.IsStaff(c), time.Now())
	switch {
	case errors.Is(err, repository.ErrLoanNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "loan not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "loan already returned"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "return failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "loan returned"})
}
