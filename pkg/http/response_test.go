package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var resp Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func TestAppErrorResponseUsesStatus(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	if err := AppErrorResponse(c, NotFoundError("summary:daily not cached")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decode(t, rec); resp.Status != http.StatusNotFound || resp.Message != "Not Found" {
		t.Fatalf("unexpected envelope %+v", resp)
	}
}

func TestAppErrorResponseUnknownError(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	_ = AppErrorResponse(c, errors.New("db down"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

type bodyReq struct {
	MA int `query:"ma" default:"50" validate:"gte=5,lte=200"`
}

func TestReadAndValidateRequest(t *testing.T) {
	e := echo.New()
	cases := []struct {
		query string
		ok    bool
		want  int
	}{
		{"", true, 50},
		{"?ma=20", true, 20},
		{"?ma=2", false, 0},
		{"?ma=abc", false, 0},
	}
	for _, tc := range cases {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/"+tc.query, nil), httptest.NewRecorder())
		var req bodyReq
		errs := ReadAndValidateRequest(c, &req)
		if (errs == nil) != tc.ok {
			t.Fatalf("%q: errs = %v", tc.query, errs)
		}
		if tc.ok && req.MA != tc.want {
			t.Fatalf("%q: ma = %d, want %d", tc.query, req.MA, tc.want)
		}
	}
}

func TestAppErrorResponseParams(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

	_ = AppErrorResponse(c, BadRequestError("batch too large").WithParam("max", 3).WithError(errors.New("hidden")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Data []AppError `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].Code != "ERR_BAD_REQUEST" || body.Data[0].Params["max"] != float64(3) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "hidden") {
		t.Fatalf("wrapped error leaked: %s", rec.Body.String())
	}
}
