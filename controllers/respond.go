package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"lendbook/app"
	"lendbook/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	msgNotAuthorized  = "not authorized"
	msgPartialFailure = "something went wrong, please check your lending history"
	msgInternal       = "internal error"
)

func ok(c *gin.Context, status int, v any) {
	c.JSON(status, app.H{"data": v})
}

// list keeps empty results rendering as [] rather than null.
func list[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// statusOf maps an engine error to an HTTP status and the message shown to
// the caller.
func statusOf(err error) (int, string) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, msgInternal
	}
	switch e.Kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, e.Msg
	case apperr.KindAuthorization:
		return http.StatusForbidden, msgNotAuthorized
	case apperr.KindNotFound:
		return http.StatusNotFound, e.Msg
	case apperr.KindInvalidState, apperr.KindConflict:
		return http.StatusConflict, e.Msg
	case apperr.KindPartialFailure:
		return http.StatusInternalServerError, msgPartialFailure
	}
	return http.StatusInternalServerError, msgInternal
}

func (s *Srv) fail(c *gin.Context, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		s.Log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("user_id", app.UserID(c)),
			zap.Error(err))
	}
	c.JSON(status, app.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, app.H{"error": msg})
}

// bind decodes the JSON body into v and answers 400 on failure.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// Date accepts either a calendar date (2006-01-02, taken as UTC midnight) or
// an RFC 3339 timestamp.
type Date struct{ time.Time }

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", s)
}

// Ptr is nil for an absent or empty date.
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
