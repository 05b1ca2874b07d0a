package shared

const (
	// DefaultLimit applies when a listing request carries no limit.
	DefaultLimit = 20
	// MaxLimit caps a single listing page.
	MaxLimit = 200
)

// Window is a limit/offset pair for paginated listings.
type Window struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewWindow clamps limit and offset into sane bounds.
func NewWindow(limit, offset int) Window {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Window{Limit: limit, Offset: offset}
}
