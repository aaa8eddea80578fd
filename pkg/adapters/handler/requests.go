package handler

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	maxCountryLen = 120
	maxPageLen    = 2048
)

// TrackVisitRequest is the body of POST /api/analytics/track. Both fields are
// optional; the service fills in defaults.
type TrackVisitRequest struct {
	Country string `json:"country"`
	Page    string `json:"page"`
}

// normalize trims both fields and cuts over-long values down so the visit is
// still stored.
func (r *TrackVisitRequest) normalize() {
	r.Country = truncate(strings.TrimSpace(r.Country), maxCountryLen)
	r.Page = truncate(strings.TrimSpace(r.Page), maxPageLen)
}

// truncate keeps at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}
