package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"makerhub/b2b/internal/api/handlers"
	"makerhub/b2b/internal/api/middleware"
	"makerhub/b2b/internal/apperr"
	"makerhub/b2b/internal/models"
	"makerhub/b2b/internal/services"
	"makerhub/b2b/internal/utils"
)

func withPrincipal(p models.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyPrincipal, p)
		c.Next()
	}
}

func buyerPrincipal() models.Principal {
	companyID := utils.NewShortID()
	return models.Principal{
		UserID:    utils.NewShortID(),
		Role:      models.RoleBuyer,
		CompanyID: &companyID,
	}
}

// --- Tests ---

func TestRestQuoteHandler_CreateQuote_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, nil)

	p := buyerPrincipal()
	r := gin.New()
	r.POST("/v1/quotes", withPrincipal(p), handler.CreateQuote)

	productID := utils.NewShortID()
	quoteID := utils.NewShortID()
	expectedView := &services.QuoteView{
		Quote: models.Quote{
			ID:      quoteID,
			BuyerID: p.UserID,
			Status:  models.QuoteStatusPending,
		},
	}
	mockQuoteSvc.On("Create", mock.Anything, p, mock.MatchedBy(func(input services.CreateQuoteInput) bool {
		return input.ProductID == productID && input.Quantity == 500 && input.Requirements == "Food grade finish"
	})).Return(expectedView, nil)

	body := fmt.Sprintf(`{"productId":%q,"quantity":500,"requirements":"Food grade finish"}`, productID)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/quotes", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var respBody services.QuoteView
	err := json.Unmarshal(w.Body.Bytes(), &respBody)
	assert.NoError(t, err)
	assert.Equal(t, quoteID, respBody.ID)
	assert.Equal(t, models.QuoteStatusPending, respBody.Status)
	mockQuoteSvc.AssertExpectations(t)
}

func TestRestQuoteHandler_CreateQuote_WithContactAndVariant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, nil)

	p := buyerPrincipal()
	r := gin.New()
	r.POST("/v1/quotes", withPrincipal(p), handler.CreateQuote)

	productID := utils.NewShortID()
	variantID := utils.NewShortID()
	mockQuoteSvc.On("Create", mock.Anything, p, mock.MatchedBy(func(input services.CreateQuoteInput) bool {
		if input.VariantID == nil || *input.VariantID != variantID {
			return false
		}
		return input.Contact != nil && input.Contact.Name == "Asha" && input.Contact.Email == "asha@example.com"
	})).Return(&services.QuoteView{}, nil)

	body := fmt.Sprintf(`{"productId":%q,"variantId":%q,"quantity":10,"requirements":"Sample batch","buyerContact":{"name":"Asha","email":"asha@example.com"}}`, productID, variantID)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/quotes", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockQuoteSvc.AssertExpectations(t)
}

func TestRestQuoteHandler_CreateQuote_InvalidProductID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, nil)

	r := gin.New()
	r.POST("/v1/quotes", withPrincipal(buyerPrincipal()), handler.CreateQuote)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/quotes", bytes.NewBufferString(`{"productId":"!!!","quantity":5,"requirements":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockQuoteSvc.AssertNotCalled(t, "Create")
}

func TestRestQuoteHandler_CreateQuote_MissingBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, nil)

	r := gin.New()
	r.POST("/v1/quotes", withPrincipal(buyerPrincipal()), handler.CreateQuote)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/quotes", bytes.NewBufferString(`{"quantity":5}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockQuoteSvc.AssertNotCalled(t, "Create")
}

func TestRestQuoteHandler_CreateQuote_NoPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, nil)

	r := gin.New()
	r.POST("/v1/quotes", handler.CreateQuote)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/quotes", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockQuoteSvc.AssertNotCalled(t, "Create")
}

func TestRestQuoteHandler_CreateQuote_SelfDealingForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, nil)

	p := buyerPrincipal()
	r := gin.New()
	r.POST("/v1/quotes", withPrincipal(p), handler.CreateQuote)

	productID := utils.NewShortID()
	mockQuoteSvc.On("Create", mock.Anything, p, mock.Anything).
		Return(nil, fmt.Errorf("cannot request a quote for your own product: %w", apperr.ErrForbidden))

	body := fmt.Sprintf(`{"productId":%q,"quantity":5,"requirements":"x"}`, productID)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/quotes", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	var respBody map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	assert.Contains(t, respBody["error"], "own product")
	mockQuoteSvc.AssertExpectations(t)
}

func TestRestQuoteHandler_ListQuotes_PassesQueryParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, nil)

	p := buyerPrincipal()
	r := gin.New()
	r.GET("/v1/quotes", withPrincipal(p), handler.ListQuotes)

	expected := &services.QuoteListResult{
		Quotes: []services.QuoteView{
			{Quote: models.Quote{ID: utils.NewShortID(), Status: models.QuoteStatusQuoted}},
		},
		Pagination: services.Pagination{Total: 41, Limit: 10, Offset: 20, HasMore: true},
	}
	mockQuoteSvc.On("List", mock.Anything, p, services.ListQuotesInput{
		Mode:   services.ListModeReceived,
		Status: "quoted",
		Search: "titanium",
		Limit:  10,
		Offset: 20,
	}).Return(expected, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/quotes?mode=received&status=quoted&search=titanium&limit=10&offset=20", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	pagination, ok := respBody["pagination"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, float64(41), pagination["total"])
	assert.Equal(t, true, pagination["hasMore"])
	mockQuoteSvc.AssertExpectations(t)
}

func TestRestQuoteHandler_ListQuotes_InvalidLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, nil)

	r := gin.New()
	r.GET("/v1/quotes", withPrincipal(buyerPrincipal()), handler.ListQuotes)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/quotes?limit=abc", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockQuoteSvc.AssertNotCalled(t, "List")
}

func TestRestQuoteHandler_ListQuotes_InvalidModeFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, nil)

	p := buyerPrincipal()
	r := gin.New()
	r.GET("/v1/quotes", withPrincipal(p), handler.ListQuotes)

	mockQuoteSvc.On("List", mock.Anything, p, mock.Anything).
		Return(nil, fmt.Errorf("status pending is not valid for received quotes: %w", apperr.ErrInvalidArgument))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/quotes?mode=received&status=pending", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockQuoteSvc.AssertExpectations(t)
}

func TestRestQuoteHandler_GetQuote_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, nil)

	p := buyerPrincipal()
	r := gin.New()
	r.GET("/v1/quotes/:quoteId", withPrincipal(p), handler.GetQuote)

	quoteID := utils.NewShortID()
	expectedView := &services.QuoteView{
		Quote: models.Quote{ID: quoteID, Status: models.QuoteStatusQuoted},
	}
	mockQuoteSvc.On("GetByID", mock.Anything, p, quoteID).Return(expectedView, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/quotes/"+quoteID.String(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody services.QuoteView
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	assert.Equal(t, quoteID, respBody.ID)
	mockQuoteSvc.AssertExpectations(t)
}

func TestRestQuoteHandler_GetQuote_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, nil)

	p := buyerPrincipal()
	r := gin.New()
	r.GET("/v1/quotes/:quoteId", withPrincipal(p), handler.GetQuote)

	quoteID := utils.NewShortID()
	mockQuoteSvc.On("GetByID", mock.Anything, p, quoteID).
		Return(nil, fmt.Errorf("quote %s: %w", quoteID, apperr.ErrNotFound))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/quotes/"+quoteID.String(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockQuoteSvc.AssertExpectations(t)
}

func TestRestQuoteHandler_GetQuote_MalformedID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, nil)

	r := gin.New()
	r.GET("/v1/quotes/:quoteId", withPrincipal(buyerPrincipal()), handler.GetQuote)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/quotes/not-a-real-id", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockQuoteSvc.AssertNotCalled(t, "GetByID")
}

func TestRestQuoteHandler_RespondToQuote_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, nil)

	p := models.Principal{UserID: utils.NewShortID(), Role: models.RoleSeller}
	r := gin.New()
	r.PATCH("/v1/quotes/:quoteId/respond", withPrincipal(p), handler.RespondToQuote)

	quoteID := utils.NewShortID()
	minQty := int64(100)
	mockQuoteSvc.On("Respond", mock.Anything, p, quoteID, mock.MatchedBy(func(input services.RespondInput) bool {
		return input.UnitPrice == 12.5 && input.MinOrderQty != nil && *input.MinOrderQty == minQty && input.Notes == "Bulk rate"
	})).Return(&services.QuoteView{Quote: models.Quote{ID: quoteID, Status: models.QuoteStatusQuoted}}, nil)

	body := `{"unitPrice":12.5,"minOrderQty":100,"notes":"Bulk rate"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PATCH", "/v1/quotes/"+quoteID.String()+"/respond", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody services.QuoteView
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	assert.Equal(t, models.QuoteStatusQuoted, respBody.Status)
	mockQuoteSvc.AssertExpectations(t)
}

func TestRestQuoteHandler_RespondToQuote_MissingUnitPrice(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, nil)

	r := gin.New()
	r.PATCH("/v1/quotes/:quoteId/respond", withPrincipal(buyerPrincipal()), handler.RespondToQuote)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PATCH", "/v1/quotes/"+utils.NewShortID().String()+"/respond", bytes.NewBufferString(`{"notes":"no price"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockQuoteSvc.AssertNotCalled(t, "Respond")
}

func TestRestQuoteHandler_RespondToQuote_TerminalQuote(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, nil)

	p := models.Principal{UserID: utils.NewShortID(), Role: models.RoleSeller}
	r := gin.New()
	r.PATCH("/v1/quotes/:quoteId/respond", withPrincipal(p), handler.RespondToQuote)

	quoteID := utils.NewShortID()
	mockQuoteSvc.On("Respond", mock.Anything, p, quoteID, mock.Anything).
		Return(nil, fmt.Errorf("quote is accepted and no longer accepts responses: %w", apperr.ErrInvalidState))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PATCH", "/v1/quotes/"+quoteID.String()+"/respond", bytes.NewBufferString(`{"unitPrice":9.99}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	mockQuoteSvc.AssertExpectations(t)
}

func TestRestQuoteHandler_UpdateQuoteStatus_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, nil)

	p := buyerPrincipal()
	r := gin.New()
	r.PATCH("/v1/quotes/:quoteId/status", withPrincipal(p), handler.UpdateQuoteStatus)

	quoteID := utils.NewShortID()
	mockQuoteSvc.On("UpdateStatus", mock.Anything, p, quoteID, "accepted", "Deal").
		Return(&services.QuoteView{Quote: models.Quote{ID: quoteID, Status: models.QuoteStatusAccepted}}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PATCH", "/v1/quotes/"+quoteID.String()+"/status", bytes.NewBufferString(`{"status":"accepted","note":"Deal"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody services.QuoteView
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	assert.Equal(t, models.QuoteStatusAccepted, respBody.Status)
	mockQuoteSvc.AssertExpectations(t)
}

func TestRestQuoteHandler_UpdateQuoteStatus_InvalidTransition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, nil)

	p := buyerPrincipal()
	r := gin.New()
	r.PATCH("/v1/quotes/:quoteId/status", withPrincipal(p), handler.UpdateQuoteStatus)

	quoteID := utils.NewShortID()
	mockQuoteSvc.On("UpdateStatus", mock.Anything, p, quoteID, "accepted", "").
		Return(nil, fmt.Errorf("cannot move quote from pending to accepted: %w", apperr.ErrInvalidTransition))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PATCH", "/v1/quotes/"+quoteID.String()+"/status", bytes.NewBufferString(`{"status":"accepted"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var respBody map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	assert.Contains(t, respBody["error"], "pending to accepted")
	mockQuoteSvc.AssertExpectations(t)
}

func TestRestQuoteHandler_UpdateQuoteStatus_MissingStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, nil)

	r := gin.New()
	r.PATCH("/v1/quotes/:quoteId/status", withPrincipal(buyerPrincipal()), handler.UpdateQuoteStatus)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PATCH", "/v1/quotes/"+utils.NewShortID().String()+"/status", bytes.NewBufferString(`{"note":"only"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockQuoteSvc.AssertNotCalled(t, "UpdateStatus")
}

func TestRestQuoteHandler_RequestAttachmentUpload_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	mockClient := new(MockAsynqClient)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, mockClient)

	p := buyerPrincipal()
	r := gin.New()
	r.POST("/v1/quotes/:quoteId/attachments", withPrincipal(p), handler.RequestAttachmentUpload)

	quoteID := utils.NewShortID()
	upload := &services.AttachmentUpload{
		Key:       "quotes/" + quoteID.String() + "/abc123.pdf",
		UploadURL: "https://s3.example.com/upload",
	}
	mockQuoteSvc.On("RequestAttachmentUpload", mock.Anything, p, quoteID, "drawing.pdf", "application/pdf").
		Return(upload, nil)
	mockClient.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil)

	body := `{"filename":"drawing.pdf","contentType":"application/pdf"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/quotes/"+quoteID.String()+"/attachments", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	var respBody services.AttachmentUpload
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	assert.Equal(t, upload.Key, respBody.Key)
	assert.Equal(t, upload.UploadURL, respBody.UploadURL)
	mockQuoteSvc.AssertExpectations(t)
	mockClient.AssertExpectations(t)
}

func TestRestQuoteHandler_RequestAttachmentUpload_ForbiddenSkipsEnqueue(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	mockClient := new(MockAsynqClient)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, mockClient)

	p := buyerPrincipal()
	r := gin.New()
	r.POST("/v1/quotes/:quoteId/attachments", withPrincipal(p), handler.RequestAttachmentUpload)

	quoteID := utils.NewShortID()
	mockQuoteSvc.On("RequestAttachmentUpload", mock.Anything, p, quoteID, "drawing.pdf", "application/pdf").
		Return(nil, fmt.Errorf("quote access denied: %w", apperr.ErrForbidden))

	body := `{"filename":"drawing.pdf","contentType":"application/pdf"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/quotes/"+quoteID.String()+"/attachments", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockClient.AssertNotCalled(t, "EnqueueContext")
	mockQuoteSvc.AssertExpectations(t)
}

func TestRestQuoteHandler_RequestAttachmentUpload_EnqueueFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuoteSvc := new(MockQuoteService)
	mockClient := new(MockAsynqClient)
	handler := handlers.NewRestQuoteHandler(mockQuoteSvc, mockClient)

	p := buyerPrincipal()
	r := gin.New()
	r.POST("/v1/quotes/:quoteId/attachments", withPrincipal(p), handler.RequestAttachmentUpload)

	quoteID := utils.NewShortID()
	upload := &services.AttachmentUpload{Key: "quotes/x/y.pdf", UploadURL: "https://s3.example.com/upload"}
	mockQuoteSvc.On("RequestAttachmentUpload", mock.Anything, p, quoteID, "drawing.pdf", "application/pdf").
		Return(upload, nil)
	mockClient.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("redis unavailable"))

	body := `{"filename":"drawing.pdf","contentType":"application/pdf"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/quotes/"+quoteID.String()+"/attachments", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	mockQuoteSvc.AssertExpectations(t)
	mockClient.AssertExpectations(t)
}
