package api_client

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/loopfz/gadgeto/tonic"
	"github.com/wI2L/fizz"
	"github.com/wI2L/fizz/openapi"

	"github.com/bulkverify/credits-portal/pkg/api_client/handler"
	"github.com/bulkverify/credits-portal/pkg/api_client/middleware"
	"github.com/bulkverify/credits-portal/pkg/api_client/models"
)

const webhookKeyHeader = "X-Webhook-Key"

var (
	apiVersionHeader = fizz.Header(
		"API-Version",
		"API version of the response",
		"",
	)

	problemResponse = func(code, desc string) fizz.OperationOption {
		return fizz.Response(code, desc, nil, nil, nil)
	}
)

// RouterConfig carries the settings the router needs from the portal config.
type RouterConfig struct {
	APIVersion             string
	PublicURL              string
	JWTSecret              string
	AdminRole              string
	AllowedOrigins         []string
	DeeepWebhookKey        string
	InstantEmailWebhookKey string
}

type Controllers struct {
	Keys     *handler.KeysController
	Batches  *handler.BatchesController
	Payments *handler.PaymentsController
	Webhooks *handler.WebhooksController
	Admin    *handler.AdminController
}

func NewRouter(cfg RouterConfig, ctrl Controllers) *fizz.Fizz {
	tonic.SetErrorHook(handler.ErrorHook)

	g := gin.Default()
	g.Use(APIVersionMiddleware(cfg.APIVersion))
	if len(cfg.AllowedOrigins) > 0 {
		g.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			ExposeHeaders:    []string{"API-Version", "Link", "X-Total-Count", "X-Total-Pages", "X-Current-Page", "X-Per-Page"},
			AllowCredentials: true,
		}))
	}
	f := fizz.NewFromEngine(g)

	f.Generator().SetServers([]*openapi.Server{
		{
			URL:         cfg.PublicURL + "/v1",
			Description: "Portal API",
		},
	})

	gen := f.Generator()
	gen.API().Components.Headers["API-Version"] = &openapi.HeaderOrRef{
		Header: &openapi.Header{
			Description: "API version of the response",
			Schema: &openapi.SchemaOrRef{
				Schema: &openapi.Schema{
					Type: "string",
				},
			},
		},
	}

	info := &openapi.Info{
		Title:       "Credits portal API v1",
		Description: "API keys, bulk email validation batches and credit purchases",
		Version:     cfg.APIVersion,
	}

	root := f.Group("/v1", "API v1", "Portal V1 routes")

	user := root.Group("", "User", "Routes for signed-in users", middleware.RequireUser(cfg.JWTSecret))

	// keys
	user.GET("/keys", []fizz.OperationOption{
		fizz.ID("listKeys"),
		fizz.Summary("List your API keys"),
		apiVersionHeader,
	}, tonic.Handler(ctrl.Keys.ListKeys, 200))
	user.POST("/keys", []fizz.OperationOption{
		fizz.ID("createKey"),
		fizz.Summary("Create an API key at a vendor"),
		apiVersionHeader,
		problemResponse("400", "Bad Request"),
	}, tonic.Handler(ctrl.Keys.CreateKey, 201))
	user.GET("/keys/:id", []fizz.OperationOption{
		fizz.ID("retrieveKey"),
		fizz.Summary("Get one API key with its credit balance"),
		apiVersionHeader,
		problemResponse("404", "Not Found"),
	}, tonic.Handler(ctrl.Keys.RetrieveKey, 200))
	user.GET("/keys/:id/credits", []fizz.OperationOption{
		fizz.ID("retrieveCredits"),
		fizz.Summary("Get the current credit balance of a key"),
		apiVersionHeader,
		problemResponse("404", "Not Found"),
	}, tonic.Handler(ctrl.Keys.RetrieveCredits, 200))

	// batches
	user.GET("/batches", []fizz.OperationOption{
		fizz.ID("listBatches"),
		fizz.Summary("List your batches"),
		apiVersionHeader,
	}, tonic.Handler(ctrl.Batches.ListBatches, 200))
	user.POST("/batches", []fizz.OperationOption{
		fizz.ID("submitBatch"),
		fizz.Summary("Submit a list of emails for validation"),
		apiVersionHeader,
		problemResponse("400", "Bad Request"),
		problemResponse("402", "Insufficient credits"),
	}, tonic.Handler(ctrl.Batches.SubmitBatch, 201))
	user.POST("/batches/upload", []fizz.OperationOption{
		fizz.Summary("Submit a CSV file for validation"),
	}, ctrl.Batches.UploadBatch)
	user.GET("/batches/:id", []fizz.OperationOption{
		fizz.ID("retrieveBatch"),
		fizz.Summary("Get the status of a batch"),
		apiVersionHeader,
		problemResponse("404", "Not Found"),
	}, tonic.Handler(ctrl.Batches.RetrieveBatch, 200))
	user.GET("/batches/:id/download", []fizz.OperationOption{
		fizz.Summary("Download the validation result"),
	}, ctrl.Batches.DownloadBatch)

	user.POST("/emails/parse", []fizz.OperationOption{
		fizz.ID("parseEmails"),
		fizz.Summary("Preview the emails in a CSV"),
		apiVersionHeader,
	}, tonic.Handler(handler.ParseEmails, 200))

	// payments
	user.GET("/payments", []fizz.OperationOption{
		fizz.ID("listPayments"),
		fizz.Summary("List your payments"),
		apiVersionHeader,
	}, tonic.Handler(ctrl.Payments.ListPayments, 200))
	user.GET("/payments/quote", []fizz.OperationOption{
		fizz.ID("getQuote"),
		fizz.Summary("Price a number of credits"),
		apiVersionHeader,
		problemResponse("400", "Bad Request"),
	}, tonic.Handler(ctrl.Payments.GetQuote, 200))
	user.POST("/payments/checkout", []fizz.OperationOption{
		fizz.ID("checkout"),
		fizz.Summary("Start a hosted checkout for credits"),
		apiVersionHeader,
		problemResponse("503", "Gateway not configured"),
	}, tonic.Handler(ctrl.Payments.Checkout, 201))
	user.POST("/payments/charge", []fizz.OperationOption{
		fizz.ID("charge"),
		fizz.Summary("Charge a tokenized card for credits"),
		apiVersionHeader,
		problemResponse("402", "Payment declined"),
	}, tonic.Handler(ctrl.Payments.Charge, 201))

	// webhooks
	hooks := root.Group("/webhooks", "Webhooks", "Vendor and gateway callbacks")
	hooks.POST("/"+models.VendorDeeep, []fizz.OperationOption{
		fizz.ID("deeepWebhook"),
		fizz.Summary("DEEEP batch callback"),
		problemResponse("404", "Unknown batch"),
	}, middleware.RequireWebhookKey(webhookKeyHeader, cfg.DeeepWebhookKey), tonic.Handler(ctrl.Webhooks.DeeepWebhook, 200))
	hooks.POST("/"+models.VendorInstantEmail, []fizz.OperationOption{
		fizz.ID("instantEmailWebhook"),
		fizz.Summary("InstantEmail batch callback"),
		problemResponse("404", "Unknown batch"),
	}, middleware.RequireWebhookKey(webhookKeyHeader, cfg.InstantEmailWebhookKey), tonic.Handler(ctrl.Webhooks.InstantEmailWebhook, 200))
	hooks.POST("/stripe", []fizz.OperationOption{
		fizz.Summary("Stripe event callback"),
	}, ctrl.Webhooks.StripeWebhook)

	// admin
	admin := root.Group("/admin", "Admin", "Operator routes", middleware.RequireUser(cfg.JWTSecret), middleware.RequireRole(cfg.AdminRole))
	admin.GET("/keys", []fizz.OperationOption{
		fizz.ID("adminListKeys"),
		fizz.Summary("List all API keys"),
		apiVersionHeader,
	}, tonic.Handler(ctrl.Admin.ListKeys, 200))
	admin.DELETE("/keys/:id", []fizz.OperationOption{
		fizz.ID("adminDeleteKey"),
		fizz.Summary("Delete an API key"),
		problemResponse("404", "Not Found"),
	}, tonic.Handler(ctrl.Admin.DeleteKey, 204))
	admin.POST("/keys/:id/credits", []fizz.OperationOption{
		fizz.ID("adminAdjustCredits"),
		fizz.Summary("Adjust the local credit counter of a key"),
		apiVersionHeader,
		problemResponse("404", "Not Found"),
	}, tonic.Handler(ctrl.Admin.AdjustCredits, 200))
	admin.DELETE("/batches/:id", []fizz.OperationOption{
		fizz.ID("adminDeleteBatch"),
		fizz.Summary("Delete a batch record"),
		problemResponse("404", "Not Found"),
	}, tonic.Handler(ctrl.Admin.DeleteBatch, 204))

	f.GET("/v1/openapi.json", []fizz.OperationOption{}, f.OpenAPI(info, "json"))
	f.GET("/healthz", []fizz.OperationOption{fizz.ID("health")}, tonic.Handler(handler.Health, 200))

	return f
}

type apiVersionWriter struct {
	gin.ResponseWriter
	version string
}

func (w *apiVersionWriter) WriteHeader(code int) {
	if code >= 200 && code < 300 {
		w.Header().Set("API-Version", w.version)
	}
	w.ResponseWriter.WriteHeader(code)
}

func APIVersionMiddleware(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer = &apiVersionWriter{c.Writer, version}
		c.Next()
	}
}
