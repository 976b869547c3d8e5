package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-sync/internal/adapters/notify"
	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// importFormField is the multipart field carrying an uploaded document.
const importFormField = "file"

// QuoteHandler serves the quote list, random display, category filter,
// import/export, sync and notification endpoints.
type QuoteHandler struct {
	quotes    *app.QuoteService
	sync      *app.SyncService
	scheduler *app.Scheduler
	board     *notify.Board
}

// QuoteHandlerConfig contains the handler's collaborators. Quotes is
// required; without Sync the sync routes answer 503, without Board the
// notification region is always empty.
type QuoteHandlerConfig struct {
	Quotes    *app.QuoteService
	Sync      *app.SyncService
	Scheduler *app.Scheduler
	Board     *notify.Board
}

// NewQuoteHandler creates a new quote handler.
func NewQuoteHandler(cfg QuoteHandlerConfig) *QuoteHandler {
	if cfg.Quotes == nil {
		panic("quote handler requires a quote service")
	}

	return &QuoteHandler{
		quotes:    cfg.Quotes,
		sync:      cfg.Sync,
		scheduler: cfg.Scheduler,
		board:     cfg.Board,
	}
}

// ListQuotes handles GET /api/v1/quotes?category=
// A missing or blank category lists every quote.
//
// @Summary List quotes
// @Tags quotes
// @Produce json
// @Param category query string false "Category filter, all by default"
// @Success 200 {object} dto.ListQuotesResponse
// @Router /api/v1/quotes [get]
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	category := domain.NormalizeCategory(c.Query("category"))
	quotes := h.quotes.List(c.Request.Context(), category)

	c.JSON(http.StatusOK, dto.NewListQuotesResponse(category, quotes))
}

// AddQuote handles POST /api/v1/quotes
//
// @Summary Add a quote
// @Tags quotes
// @Accept json
// @Produce json
// @Param quote body dto.AddQuoteRequest true "Quote to add"
// @Success 201 {object} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/quotes [post]
func (h *QuoteHandler) AddQuote(c *gin.Context) {
	var req dto.AddQuoteRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		if dto.IsValidationError(err) {
			dto.RespondWithValidationErrors(c, dto.ValidationErrors(err))
			return
		}

		if tooLarge(err) {
			dto.RespondWithErrorCode(c, dto.ErrorCodePayloadTooLarge, "request body too large")
			return
		}

		dto.RespondWithErrorCode(c, dto.ErrorCodeBadRequest, "request body must be a JSON object with text and category")

		return
	}

	q, err := h.quotes.Add(c.Request.Context(), req.Text, req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewQuoteResponse(q))
}

// RandomQuote handles GET /api/v1/quotes/random
// Picks a new quote from the selected category and remembers it.
//
// @Summary Show a random quote
// @Tags quotes
// @Produce json
// @Success 200 {object} dto.QuoteResponse
// @Failure 404 {object} dto.ErrorResponse "NO_QUOTES when the category is empty"
// @Router /api/v1/quotes/random [get]
func (h *QuoteHandler) RandomQuote(c *gin.Context) {
	q, err := h.quotes.ShowRandom(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(q))
}

// CurrentQuote handles GET /api/v1/quotes/current
// Returns the last viewed quote, picking one when none is remembered.
func (h *QuoteHandler) CurrentQuote(c *gin.Context) {
	q, err := h.quotes.Current(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(q))
}

// ExportQuotes handles GET /api/v1/quotes/export
// The whole list is offered as a quotes.json download.
func (h *QuoteHandler) ExportQuotes(c *gin.Context) {
	doc, err := h.quotes.Export(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": app.ExportFilename,
	}))
	c.Header("Content-Length", strconv.Itoa(len(doc)))
	c.Data(http.StatusOK, "application/json", doc)
}

// ImportQuotes handles POST /api/v1/quotes/import
// The document is read from the multipart field "file" or, for any other
// content type, from the raw body.
//
// @Summary Import quotes
// @Tags quotes
// @Accept json,mpfd
// @Produce json
// @Success 200 {object} dto.ImportResponse
// @Failure 400 {object} dto.ErrorResponse "INVALID_FORMAT for a document that is not a JSON array"
// @Failure 413 {object} dto.ErrorResponse
// @Router /api/v1/quotes/import [post]
func (h *QuoteHandler) ImportQuotes(c *gin.Context) {
	doc, err := readImportDocument(c)
	if err != nil {
		switch {
		case tooLarge(err):
			dto.RespondWithErrorCode(c, dto.ErrorCodePayloadTooLarge, "import document too large")
		case errors.Is(err, http.ErrMissingFile):
			dto.RespondWithErrorCode(c, dto.ErrorCodeBadRequest, "multipart upload requires a \"file\" field")
		default:
			dto.RespondWithErrorCode(c, dto.ErrorCodeBadRequest, "could not read import document")
		}

		return
	}

	result, err := h.quotes.Import(c.Request.Context(), doc)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewImportResponse(result))
}

func readImportDocument(c *gin.Context) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if mediaType != "multipart/form-data" {
		return io.ReadAll(c.Request.Body)
	}

	fh, err := c.FormFile(importFormField)
	if err != nil {
		return nil, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// Categories handles GET /api/v1/categories
func (h *QuoteHandler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewCategoriesResponse(h.quotes.Categories(c.Request.Context())))
}

// SelectCategory handles PUT /api/v1/categories/selected
// Any category is accepted, including ones with no quotes.
func (h *QuoteHandler) SelectCategory(c *gin.Context) {
	var req dto.SelectCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.RespondWithErrorCode(c, dto.ErrorCodeBadRequest, "request body must be a JSON object with a category")
		return
	}

	if _, err := h.quotes.SelectCategory(c.Request.Context(), req.Category); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewCategoriesResponse(h.quotes.Categories(c.Request.Context())))
}

// SyncNow handles POST /api/v1/sync
// Runs one reconciliation synchronously. Remote failures are part of the
// report, so the status is 200 either way.
func (h *QuoteHandler) SyncNow(c *gin.Context) {
	if h.sync == nil {
		dto.RespondWithErrorCode(c, dto.ErrorCodeUnavailable, "sync is not configured")
		return
	}

	report := h.sync.SyncNow(c.Request.Context())

	c.JSON(http.StatusOK, dto.NewSyncReportResponse(report))
}

// SyncStatus handles GET /api/v1/sync/status
func (h *QuoteHandler) SyncStatus(c *gin.Context) {
	var resp dto.SyncStatusResponse

	if h.scheduler != nil {
		resp.Running = h.scheduler.Running()
	}

	if h.sync != nil {
		if last, ok := h.sync.LastReport(); ok {
			r := dto.NewSyncReportResponse(last)
			resp.Last = &r
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Notification handles GET /api/v1/notification
func (h *QuoteHandler) Notification(c *gin.Context) {
	var resp dto.NotificationResponse

	if h.board != nil {
		if n, ok := h.board.Current(); ok {
			resp.Message = n.Message
			resp.EventType = n.EventType
			resp.ExpiresAt = &n.ExpiresAt
		}
	}

	c.JSON(http.StatusOK, resp)
}

// RegisterQuoteRoutes registers the quote API on rg.
func (h *QuoteHandler) RegisterQuoteRoutes(rg *gin.RouterGroup) {
	quotes := rg.Group("/quotes")
	quotes.GET("", h.ListQuotes)
	quotes.POST("", h.AddQuote)
	quotes.GET("/random", h.RandomQuote)
	quotes.GET("/current", h.CurrentQuote)
	quotes.GET("/export", h.ExportQuotes)
	quotes.POST("/import", h.ImportQuotes)

	rg.GET("/categories", h.Categories)
	rg.PUT("/categories/selected", h.SelectCategory)

	rg.POST("/sync", h.SyncNow)
	rg.GET("/sync/status", h.SyncStatus)

	rg.GET("/notification", h.Notification)
}
