package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"forum/internal/middleware"
	"forum/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", defaultPaginationLimit, 0},
		{"?limit=25&offset=50", 25, 50},
		{"?limit=0", defaultPaginationLimit, 0},
		{"?limit=-3&offset=-1", defaultPaginationLimit, 0},
		{"?limit=1000", maxPaginationLimit, 0},
		{"?limit=abc", defaultPaginationLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			app := fiber.New()
			var got Pagination
			app.Get("/", func(c *fiber.Ctx) error {
				got = parsePagination(c)
				return nil
			})
			_, err := app.Test(httptest.NewRequest(http.MethodGet, "/"+tt.query, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, got.Limit)
			assert.Equal(t, tt.wantOffset, got.Offset)
		})
	}
}

func TestNewPage_Links(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := parsePagination(c)
		return c.JSON(newPage(c, p, 25, []int{1, 2, 3}))
	})

	fetch := func(query string) Page[int] {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "http://forum.test/items"+query, nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		var page Page[int]
		require.NoError(t, json.Unmarshal(raw, &page))
		return page
	}

	first := fetch("?limit=10")
	require.NotNil(t, first.Next)
	assert.Equal(t, "http://forum.test/items?limit=10&offset=10", *first.Next)
	assert.Nil(t, first.Previous)

	middle := fetch("?limit=10&offset=15&q=go")
	require.NotNil(t, middle.Previous)
	assert.Equal(t, "http://forum.test/items?limit=10&offset=5&q=go", *middle.Previous)
	assert.Nil(t, middle.Next)

	second := fetch("?limit=10&offset=10")
	require.NotNil(t, second.Previous)
	assert.Equal(t, "http://forum.test/items?limit=10", *second.Previous)
	assert.Equal(t, int64(25), second.Count)
}

func TestNewPage_EmptyResultsEncodeAsArray(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		var none []string
		return c.JSON(newPage(c, Pagination{Limit: 10}, 0, none))
	})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":0,"next":null,"previous":null,"results":[]}`, string(raw))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Token abc", ""},
		{"Bearer", ""},
		{"Bearer a b", ""},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			app := fiber.New()
			var got string
			app.Get("/", func(c *fiber.Ctx) error {
				got = bearerToken(c)
				return nil
			})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			_, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRespondError_LogsInternalCause(t *testing.T) {
	var buf bytes.Buffer
	prev := middleware.Logger
	middleware.Logger = slog.New(slog.NewJSONHandler(&buf, nil))
	t.Cleanup(func() { middleware.Logger = prev })

	app := fiber.New()
	app.Get("/boom", func(c *fiber.Ctx) error {
		return respondError(c, models.NewInternalError(errors.New("db exploded")))
	})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return respondError(c, models.NewNotFoundMessage("Not found."))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "db exploded")
	assert.Contains(t, buf.String(), "db exploded")
	assert.Contains(t, buf.String(), `"path":"/boom"`)

	buf.Reset()
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, buf.String())
}

func TestParseID_NonNumericIsNotFound(t *testing.T) {
	app := fiber.New()
	app.Get("/forums/:id", func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return nil
		}
		return c.JSON(fiber.Map{"id": id})
	})

	for _, raw := range []string{"abc", "0", "-4"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/forums/"+raw, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, raw)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Not found.", body["detail"])
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/forums/7", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
