package server

import (
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"forum/internal/middleware"
	"forum/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	defaultPaginationLimit = 10
	maxPaginationLimit     = 100
)

// Page is the paginated list envelope.
type Page[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// parsePagination extracts limit and offset query parameters.
func parsePagination(c *fiber.Ctx) Pagination {
	limit := c.QueryInt("limit", defaultPaginationLimit)
	if limit <= 0 {
		limit = defaultPaginationLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{Limit: limit, Offset: offset}
}

// newPage wraps results with absolute next/previous links built from the request URL.
func newPage[T any](c *fiber.Ctx, p Pagination, total int64, results []T) Page[T] {
	if results == nil {
		results = []T{}
	}
	page := Page[T]{Count: total, Results: results}

	if int64(p.Offset+p.Limit) < total {
		next := pageURL(c, p.Limit, p.Offset+p.Limit, true)
		page.Next = &next
	}
	if p.Offset > 0 {
		prevOffset := p.Offset - p.Limit
		prev := pageURL(c, p.Limit, prevOffset, prevOffset > 0)
		page.Previous = &prev
	}
	return page
}

func pageURL(c *fiber.Ctx, limit, offset int, withOffset bool) string {
	q := url.Values{}
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		q.Add(string(k), string(v))
	})
	q.Set("limit", strconv.Itoa(limit))
	if withOffset {
		q.Set("offset", strconv.Itoa(offset))
	} else {
		q.Del("offset")
	}
	return c.BaseURL() + c.Path() + "?" + q.Encode()
}

// respondError writes err in the standard error shape. Server-side failures are
// logged with their cause, which the response body leaves out.
func respondError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		attrs := []any{slog.String("error", err.Error()), slog.String("path", c.Path())}
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Err != nil {
			attrs = append(attrs, slog.String("cause", appErr.Err.Error()))
		}
		middleware.Logger.ErrorContext(c.UserContext(), "request failed", attrs...)
	}
	return models.RespondWithError(c, status, err)
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 404 "Not found." response and returns errResponseWritten.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		// Non-numeric ids cannot match any row.
		_ = models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundMessage("Not found."))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// currentUser returns the actor loaded by AuthRequired.
func currentUser(c *fiber.Ctx) *models.User {
	u, _ := c.Locals("user").(*models.User)
	return u
}

// bearerToken returns the token from an "Authorization: Bearer <token>" header.
func bearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func isWebSocketUpgrade(c *fiber.Ctx) bool {
	return websocket.IsWebSocketUpgrade(c)
}

// parseBody decodes the request body into dest, writing a 400 on malformed input.
// An empty body leaves dest untouched.
func parseBody(c *fiber.Ctx, dest any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(dest); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}
