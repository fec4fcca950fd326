package domain

// Sort fields accepted by PageRequest.
const (
	SortByID   = "id"
	SortByName = "name"
)

// PageRequest describes a bounded, ordered window over the catalog.
// Page is zero-based. An empty SortField means insertion order (id asc).
type PageRequest struct {
	Page      int
	Size      int
	SortField string
	SortDesc  bool
}

// Offset returns the number of rows preceding the requested page.
func (p PageRequest) Offset() int { return p.Page * p.Size }

// AnimePage is an ordered, bounded view over the Anime collection plus
// paging metadata. The JSON shape follows the conventional paged response
// (content, number, size, totalElements, ...).
type AnimePage struct {
	Content          []Anime `json:"content"`
	Number           int     `json:"number"`
	Size             int     `json:"size"`
	TotalElements    int64   `json:"totalElements"`
	TotalPages       int     `json:"totalPages"`
	NumberOfElements int     `json:"numberOfElements"`
	First            bool    `json:"first"`
	Last             bool    `json:"last"`
	Empty            bool    `json:"empty"`
}

// NewAnimePage assembles page metadata for content taken at req out of total rows.
func NewAnimePage(content []Anime, req PageRequest, total int64) AnimePage {
	if content == nil {
		content = []Anime{}
	}
	totalPages := 0
	if req.Size > 0 {
		totalPages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return AnimePage{
		Content:          content,
		Number:           req.Page,
		Size:             req.Size,
		TotalElements:    total,
		TotalPages:       totalPages,
		NumberOfElements: len(content),
		First:            req.Page == 0,
		Last:             req.Page >= totalPages-1,
		Empty:            len(content) == 0,
	}
}
