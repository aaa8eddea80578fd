package domain

import (
	"strings"
	"time"
)

// NewVisit builds a Visit from raw tracking input, applying the address,
// country and page fallbacks.
func NewVisit(ip, country, page, userAgent string, now time.Time) *Visit {
	visit := &Visit{
		IP:        strings.TrimSpace(ip),
		Country:   strings.TrimSpace(country),
		Page:      strings.TrimSpace(page),
		UserAgent: userAgent,
		CreatedAt: now.UTC(),
	}
	if visit.IP == "" {
		visit.IP = AnonymousAddress
	}
	if visit.Country == "" {
		visit.Country = DefaultCountry
	}
	if visit.Page == "" {
		visit.Page = DefaultPage
	}
	return visit
}
