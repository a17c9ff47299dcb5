package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/problem"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/util"
	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"github.com/bulkverify/credits-portal/pkg/emailcsv"
)

// ParseEmails handles POST /emails/parse. It only previews a CSV; nothing is
// stored or submitted.
func ParseEmails(ctx *gin.Context, body *models.ParseEmailsInput) (*models.ParseEmailsResult, error) {
	res, err := emailcsv.Parse(strings.NewReader(body.CSV), emailcsv.Options{HasHeader: body.HasHeader})
	if err != nil {
		return nil, problem.NewBadRequest(err.Error(), problem.InvalidParam{Name: "csv", Reason: "is not valid CSV"})
	}
	out := util.ToParseEmailsResult(res)
	return &out, nil
}

// Health handles GET /healthz
func Health(ctx *gin.Context) (*models.Health, error) {
	return &models.Health{Status: "ok"}, nil
}
