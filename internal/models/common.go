package models

// ErrorResponse is a standardized error response for API
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Flash levels, used as CSS classes by the templates.
const (
	FlashSuccess = "alert alert-success"
	FlashWarning = "alert alert-warning"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Number     int   `json:"number"`
	PerPage    int   `json:"per_page"`
	NumPages   int   `json:"num_pages"`
	TotalCount int64 `json:"total_count"`
}

func (p Page[T]) HasPrevious() bool   { return p.Number > 1 }
func (p Page[T]) HasNext() bool       { return p.Number < p.NumPages }
func (p Page[T]) PreviousNumber() int { return p.Number - 1 }
func (p Page[T]) NextNumber() int     { return p.Number + 1 }

// ClampPage resolves a requested page number against a total count: values
// below 1 become 1 and values past the end become the last page. An empty
// listing has one (empty) page.
func ClampPage(requested, perPage int, total int64) (number, numPages int) {
	numPages = int((total + int64(perPage) - 1) / int64(perPage))
	if numPages < 1 {
		numPages = 1
	}
	number = requested
	if number < 1 {
		number = 1
	}
	if number > numPages {
		number = numPages
	}
	return number, numPages
}
