package models

// Link is a hypermedia link
type Link struct {
	Href string `json:"href"`
}

// Links holds HAL-style links for a resource
type Links struct {
	Self     *Link `json:"self,omitempty"`
	Download *Link `json:"download,omitempty"`
	Batches  *Link `json:"batches,omitempty"`
}

type Pagination struct {
	Next           *int `json:"next,omitempty"`
	Previous       *int `json:"previous,omitempty"`
	CurrentPage    int  `json:"currentPage"`
	RecordsPerPage int  `json:"recordsPerPage"`
	TotalPages     int  `json:"totalPages"`
	TotalRecords   int  `json:"totalRecords"`
}

type PageParams struct {
	Page    int `query:"page"`
	PerPage int `query:"perPage"`
}

// Normalize applies the default page size and clamps out of range values.
func (p *PageParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 10
	}
	if p.PerPage > 100 {
		p.PerPage = 100
	}
}

type ParseEmailsInput struct {
	CSV       string `json:"csv" binding:"required"`
	HasHeader bool   `json:"hasHeader"`
}

type InvalidEmail struct {
	Line  int    `json:"line"`
	Value string `json:"value"`
}

type ParseEmailsResult struct {
	Rows       int            `json:"rows"`
	Valid      []string       `json:"valid"`
	Invalid    []InvalidEmail `json:"invalid"`
	Duplicates int            `json:"duplicates"`
}

type Health struct {
	Status string `json:"status"`
}
