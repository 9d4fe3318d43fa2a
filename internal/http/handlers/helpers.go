package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"placement/internal/app"
	"placement/internal/common"
	"placement/internal/http/middleware"
)

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return common.NewValidationError("invalid request", map[string]string{"body": "request body is required"})
	}
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return common.NewValidationError("request body too large", map[string]string{"body": "too large"})
		}
		if errors.Is(err, io.EOF) {
			return common.NewValidationError("invalid request", map[string]string{"body": "request body is required"})
		}
		return common.NewValidationError("invalid json", map[string]string{"body": err.Error()})
	}
	return nil
}

func errUnauthorized() error {
	return common.NewError(common.CodeUnauthorized, "unauthorized", nil)
}

func actorFromRequest(r *http.Request) (app.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return app.Actor{}, errUnauthorized()
	}
	return actor, nil
}

func idParam(r *http.Request, name string) (common.UUID, error) {
	id, err := common.ParseUUID(chi.URLParam(r, name))
	if err != nil {
		return "", common.NewValidationError("invalid id", map[string]string{name: "invalid uuid"})
	}
	return id, nil
}

func indexParam(r *http.Request, name string) (int, error) {
	value, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, common.NewValidationError("invalid round index", map[string]string{name: "must be an integer"})
	}
	return value, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// flexString accepts a JSON string or number. Older clients send cgpa and
// backlog counts as numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

// dateValue accepts RFC 3339 timestamps and plain calendar dates.
type dateValue struct {
	time.Time
}

func (d *dateValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			d.Time = parsed
			return nil
		}
	}
	return errors.New("invalid date " + strconv.Quote(s))
}

func (d *dateValue) ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
