package util

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bulkverify/credits-portal/pkg/api_client/models"
)

// SetPaginationHeaders writes the paging headers and an RFC 8288 Link header
// with next/prev relations for the current request.
func SetPaginationHeaders(r *http.Request, setHeader func(key, value string), p models.Pagination) {
	setHeader("X-Total-Count", strconv.Itoa(p.TotalRecords))
	setHeader("X-Total-Pages", strconv.Itoa(p.TotalPages))
	setHeader("X-Current-Page", strconv.Itoa(p.CurrentPage))
	setHeader("X-Per-Page", strconv.Itoa(p.RecordsPerPage))

	var links []string
	if p.Next != nil {
		links = append(links, fmt.Sprintf("<%s>; rel=\"next\"", pageURL(r, *p.Next, p.RecordsPerPage)))
	}
	if p.Previous != nil {
		links = append(links, fmt.Sprintf("<%s>; rel=\"prev\"", pageURL(r, *p.Previous, p.RecordsPerPage)))
	}
	if len(links) > 0 {
		setHeader("Link", strings.Join(links, ", "))
	}
}

func pageURL(r *http.Request, page, perPage int) string {
	u := url.URL{Path: r.URL.Path}
	q := r.URL.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("perPage", strconv.Itoa(perPage))
	u.RawQuery = q.Encode()
	return u.String()
}
