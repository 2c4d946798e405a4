package loans

import "time"

// Status tracks a loan through its lifecycle.
type Status string

const (
	StatusRequested       Status = "requested"
	StatusBorrowed        Status = "borrowed"
	StatusReturnRequested Status = "return_requested"
	StatusReturned        Status = "returned"
)

// Loan records one borrow of one copy of a book by one member.
type Loan struct {
	ID          string     `json:"id"`
	BookID      string     `json:"bookId"`
	UserID      string     `json:"userId"`
	Status      Status     `json:"status"`
	RequestedAt time.Time  `json:"requestedAt"`
	DueAt       time.Time  `json:"dueAt"`
	ReturnedAt  *time.Time `json:"returnedAt,omitempty"`
}
