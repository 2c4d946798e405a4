package catalog

import "time"

// Book is a single catalog entry. Available tracks copies currently on the
// shelf; Copies is the total the library owns.
type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Category  string    `json:"category"`
	ISBN      string    `json:"isbn,omitempty"`
	Year      int       `json:"year,omitempty"`
	Copies    int       `json:"copies"`
	Available int       `json:"available"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filter narrows a catalog listing. Zero values match everything.
type Filter struct {
	// Query matches title or author, case-insensitively.
	Query string
	// Category matches exactly when set.
	Category string
	// AvailableOnly drops books with no copies on the shelf.
	AvailableOnly bool
}
