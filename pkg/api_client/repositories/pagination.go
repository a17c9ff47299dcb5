package repositories

import (
	"math"

	"github.com/bulkverify/credits-portal/pkg/api_client/models"
)

func buildPagination(page, perPage int, totalRecords int64) models.Pagination {
	totalPages := int(math.Ceil(float64(totalRecords) / float64(perPage)))
	pagination := models.Pagination{
		CurrentPage:    page,
		RecordsPerPage: perPage,
		TotalPages:     totalPages,
		TotalRecords:   int(totalRecords),
	}
	if page < totalPages {
		next := page + 1
		pagination.Next = &next
	}
	if page > 1 {
		prev := page - 1
		pagination.Previous = &prev
	}
	return pagination
}
