package domain

import "time"

const (
	// DefaultCountry is recorded when a tracking request carries no country.
	DefaultCountry = "Malawi"
	// DefaultPage is recorded when a tracking request carries no page.
	DefaultPage = "/"
	// AnonymousAddress stands in for a client whose address cannot be resolved.
	AnonymousAddress = "anonymous"
	// UnknownCountry groups registered users without a country.
	UnknownCountry = "Unknown"
)

// Visit represents one recorded page view
type Visit struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	IP        string    `json:"ip" bson:"ip"`
	Country   string    `json:"country" bson:"country"`
	Page      string    `json:"page" bson:"page"`
	UserAgent string    `json:"userAgent" bson:"userAgent"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// CountryCount is one row of a group-by-country query.
type CountryCount struct {
	Country string `json:"country" bson:"_id"`
	Count   int64  `json:"count" bson:"count"`
}
