package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"makerhub/b2b/internal/api/middleware"
	"makerhub/b2b/internal/apperr"
	"makerhub/b2b/internal/models"
	"makerhub/b2b/internal/notify"
	"makerhub/b2b/internal/services"
	"makerhub/b2b/internal/tasks"
	"makerhub/b2b/internal/utils"
)

// RestQuoteHandler handles REST requests for the quote workflow.
type RestQuoteHandler struct {
	quoteService services.IQuoteService
	taskClient   notify.Enqueuer
}

// NewRestQuoteHandler creates a new RestQuoteHandler.
func NewRestQuoteHandler(quoteService services.IQuoteService, taskClient notify.Enqueuer) *RestQuoteHandler {
	return &RestQuoteHandler{
		quoteService: quoteService,
		taskClient:   taskClient,
	}
}

// writeError maps a service error onto the transport. Internal errors are
// masked; everything else surfaces its message.
func writeError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		log.Printf("Internal error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func principalOrAbort(c *gin.Context) (models.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return models.Principal{}, false
	}
	return p, true
}

func quoteIDOrAbort(c *gin.Context) (utils.ShortID, bool) {
	id, err := utils.ParseShortID(c.Param("quoteId"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid quote ID format"})
		return utils.ShortID{}, false
	}
	return id, true
}

type buyerContactRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type createQuoteRequest struct {
	ProductID    string               `json:"productId" binding:"required"`
	VariantID    *string              `json:"variantId"`
	Quantity     int64                `json:"quantity" binding:"required"`
	TargetPrice  *float64             `json:"targetPrice"`
	Currency     string               `json:"currency"`
	Requirements string               `json:"requirements" binding:"required"`
	RequiredBy   *time.Time           `json:"requiredBy"`
	BuyerContact *buyerContactRequest `json:"buyerContact"`
}

// CreateQuote handles POST /v1/quotes
func (h *RestQuoteHandler) CreateQuote(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}

	var req createQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	productID, err := utils.ParseShortID(req.ProductID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID format"})
		return
	}

	input := services.CreateQuoteInput{
		ProductID:    productID,
		Quantity:     req.Quantity,
		TargetPrice:  req.TargetPrice,
		CurrencyCode: req.Currency,
		Requirements: req.Requirements,
		RequiredBy:   req.RequiredBy,
	}
	if req.VariantID != nil && *req.VariantID != "" {
		variantID, err := utils.ParseShortID(*req.VariantID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid variant ID format"})
			return
		}
		input.VariantID = &variantID
	}
	if req.BuyerContact != nil {
		input.Contact = &models.BuyerContact{
			Name:  req.BuyerContact.Name,
			Phone: req.BuyerContact.Phone,
			Email: req.BuyerContact.Email,
		}
	}

	view, err := h.quoteService.Create(c.Request.Context(), p, input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// ListQuotes handles GET /v1/quotes
func (h *RestQuoteHandler) ListQuotes(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}

	input := services.ListQuotesInput{
		Mode:   services.ListMode(c.Query("mode")),
		Status: c.Query("status"),
		Search: c.Query("search"),
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		input.Limit = limit
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
			return
		}
		input.Offset = offset
	}

	result, err := h.quoteService.List(c.Request.Context(), p, input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetQuote handles GET /v1/quotes/:quoteId
func (h *RestQuoteHandler) GetQuote(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}
	quoteID, ok := quoteIDOrAbort(c)
	if !ok {
		return
	}

	view, err := h.quoteService.GetByID(c.Request.Context(), p, quoteID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type respondRequest struct {
	UnitPrice    *float64   `json:"unitPrice" binding:"required"`
	Currency     string     `json:"currency"`
	MinOrderQty  *int64     `json:"minOrderQty"`
	LeadTimeDays *int       `json:"leadTimeDays"`
	ValidUntil   *time.Time `json:"validUntil"`
	Notes        string     `json:"notes"`
}

// RespondToQuote handles PATCH /v1/quotes/:quoteId/respond
func (h *RestQuoteHandler) RespondToQuote(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}
	quoteID, ok := quoteIDOrAbort(c)
	if !ok {
		return
	}

	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	input := services.RespondInput{
		UnitPrice:    *req.UnitPrice,
		CurrencyCode: req.Currency,
		MinOrderQty:  req.MinOrderQty,
		LeadTimeDays: req.LeadTimeDays,
		ValidUntil:   req.ValidUntil,
		Notes:        req.Notes,
	}

	view, err := h.quoteService.Respond(c.Request.Context(), p, quoteID, input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// UpdateQuoteStatus handles PATCH /v1/quotes/:quoteId/status
func (h *RestQuoteHandler) UpdateQuoteStatus(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}
	quoteID, ok := quoteIDOrAbort(c)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	view, err := h.quoteService.UpdateStatus(c.Request.Context(), p, quoteID, req.Status, req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type attachmentRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
}

// RequestAttachmentUpload handles POST /v1/quotes/:quoteId/attachments.
// It returns a presigned upload URL and schedules the processing task that
// will register the object once uploaded.
func (h *RestQuoteHandler) RequestAttachmentUpload(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}
	quoteID, ok := quoteIDOrAbort(c)
	if !ok {
		return
	}

	var req attachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	upload, err := h.quoteService.RequestAttachmentUpload(c.Request.Context(), p, quoteID, req.Filename, req.ContentType)
	if err != nil {
		writeError(c, err)
		return
	}

	if h.taskClient != nil {
		payload, err := json.Marshal(tasks.AttachmentTaskPayload{
			QuoteID:     quoteID.String(),
			ActorID:     p.UserID.String(),
			Key:         upload.Key,
			ContentType: req.ContentType,
		})
		if err == nil {
			task := asynq.NewTask(tasks.TypeAttachmentProcess, payload)
			_, err = h.taskClient.EnqueueContext(c.Request.Context(), task,
				asynq.Queue("attachments"),
				asynq.ProcessIn(30*time.Second),
				asynq.MaxRetry(10),
			)
		}
		if err != nil {
			log.Printf("Failed to enqueue attachment processing for quote %s: %v", quoteID, err)
			writeError(c, errors.New("failed to schedule attachment processing"))
			return
		}
	}

	c.JSON(http.StatusAccepted, upload)
}
