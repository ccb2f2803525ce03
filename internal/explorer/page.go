package explorer

// Page is one page of filtered rows.
type Page[T any] struct {
	Items      []T `json:"items"`
	Number     int `json:"page"`
	Size       int `json:"page_size"`
	TotalPages int `json:"total_pages"`
	Total      int `json:"total"`
}

// TotalPages returns the number of pages needed for total rows, at least 1.
func TotalPages(total, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	if total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// ClampPage limits page to [1, TotalPages(total, size)].
func ClampPage(page, total, size int) int {
	if page < 1 {
		return 1
	}
	if last := TotalPages(total, size); page > last {
		return last
	}
	return page
}

// Paginate returns the requested page of items, clamping the page number.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(items)
	page = ClampPage(page, total, size)

	start := (page - 1) * size
	end := min(start+size, total)

	return Page[T]{
		Items:      items[start:end],
		Number:     page,
		Size:       size,
		TotalPages: TotalPages(total, size),
		Total:      total,
	}
}
