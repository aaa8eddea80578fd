package services

// DefaultFlag is shown for countries missing from countryFlags.
const DefaultFlag = "🌍"

// countryFlags covers the countries the site's programmes and donors come
// from. Keys are the exact country names stored on visits and users; every
// other country falls back to DefaultFlag.
var countryFlags = map[string]string{
	"Malawi":         "🇲🇼",
	"South Africa":   "🇿🇦",
	"Zambia":         "🇿🇲",
	"Tanzania":       "🇹🇿",
	"Mozambique":     "🇲🇿",
	"Kenya":          "🇰🇪",
	"United States":  "🇺🇸",
	"United Kingdom": "🇬🇧",
}

func FlagFor(country string) string {
	if flag, ok := countryFlags[country]; ok {
		return flag
	}
	return DefaultFlag
}
