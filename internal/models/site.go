package models

import "time"

type Site struct {
	ID        int       `json:"idsite" db:"idsite"`
	Name      string    `json:"name" db:"name"`
	MainURL   string    `json:"mainUrl" db:"main_url"`
	Timezone  string    `json:"timezone" db:"timezone"`
	CreatedAt time.Time `json:"createdAt" db:"ts_created"`
}

// Access levels granted in site_access.
const (
	AccessView  = "view"
	AccessAdmin = "admin"
)

// AnonymousLogin is the principal used when a request carries no token.
const AnonymousLogin = "anonymous"
