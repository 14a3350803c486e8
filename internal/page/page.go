// Package page computes the visible window over a result set.
package page

// Default sizing constants.
const (
	DefaultSize = 10
	CompactSize = 8
	Breakpoint  = 1000
)

// Page describes one page of a result set of Total records.
type Page struct {
	Index      int  `json:"index"`
	Size       int  `json:"size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	Start      int  `json:"start"`
	End        int  `json:"end"`
	HasPrev    bool `json:"has_prev"`
	HasNext    bool `json:"has_next"`
}

// New computes page index (0-based) of size over total records.
// The index is clamped into range; a non-positive size falls back to DefaultSize.
func New(total, size, index int) Page {
	if total < 0 {
		total = 0
	}
	if size <= 0 {
		size = DefaultSize
	}
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	index = max(0, min(index, pages-1))
	start := index * size
	end := min(start+size, total)
	return Page{
		Index:      index,
		Size:       size,
		Total:      total,
		TotalPages: pages,
		Start:      start,
		End:        end,
		HasPrev:    index > 0,
		HasNext:    index < pages-1,
	}
}

// Next returns the following page, or p itself on the last page.
func (p Page) Next() Page { return New(p.Total, p.Size, p.Index+1) }

// Prev returns the preceding page, or p itself on the first page.
func (p Page) Prev() Page { return New(p.Total, p.Size, p.Index-1) }

// Resize recomputes the page for a new size, keeping the index where possible.
func (p Page) Resize(size int) Page { return New(p.Total, size, p.Index) }

// Slice returns the items visible on p.
func Slice[T any](items []T, p Page) []T {
	if p.Start >= len(items) {
		return nil
	}
	return items[p.Start:min(p.End, len(items))]
}

// Sizing picks a page size from the available display width.
type Sizing struct {
	Default    int `json:"default" mapstructure:"page-size"`
	Compact    int `json:"compact" mapstructure:"compact-page-size"`
	Breakpoint int `json:"breakpoint" mapstructure:"breakpoint"`
}

// DefaultSizing returns the standard sizing.
func DefaultSizing() Sizing {
	return Sizing{Default: DefaultSize, Compact: CompactSize, Breakpoint: Breakpoint}
}

// For returns the page size for width. A width of zero means unknown and
// uses the default size.
func (s Sizing) For(width int) int {
	if width > 0 && width < s.Breakpoint && s.Compact > 0 {
		return s.Compact
	}
	if s.Default <= 0 {
		return DefaultSize
	}
	return s.Default
}
