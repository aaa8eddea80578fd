package domain

// CountryReach is the merged visitor count of one country
type CountryReach struct {
	Country    string `json:"country"`
	Visitors   int64  `json:"visitors"`
	Percentage int    `json:"percentage"`
	Flag       string `json:"flag"`
}

type GeographicReach struct {
	Total int64          `json:"total"`
	Data  []CountryReach `json:"data"`
}

// AdminStats is the dashboard summary snapshot
type AdminStats struct {
	Blogs        int64 `json:"blogs"`
	Programs     int64 `json:"programs"`
	Team         int64 `json:"team"`
	Partners     int64 `json:"partners"`
	Jobs         int64 `json:"jobs"`
	Subscribers  int64 `json:"subscribers"`
	Visitors     int64 `json:"visitors"`
	PageViews    int64 `json:"pageViews"`
	Applications int64 `json:"applications"`
}
