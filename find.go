package vistable

// SortOrder is the direction of a sort clause.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// Sort is a single order-by clause in a list request.
type Sort struct {
	Field string    `json:"field"`
	Order SortOrder `json:"order"`
}

// DefaultPageSize is used when a find request carries no explicit page size.
const DefaultPageSize = 20

// MaxPageSize caps a single page of results.
const MaxPageSize = 100

// FindOptions represents options passed to all find methods with multiple results.
type FindOptions struct {
	Page     int
	PageSize int
	Sort     []Sort
}

// Limit returns the bounded page size.
func (o FindOptions) Limit() int {
	if o.PageSize <= 0 {
		return DefaultPageSize
	}
	if o.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return o.PageSize
}

// Offset returns the row offset of the requested page. Pages are 1-based.
func (o FindOptions) Offset() int {
	if o.Page <= 1 {
		return 0
	}
	return (o.Page - 1) * o.Limit()
}
