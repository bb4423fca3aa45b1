package handlers

import (
	"net/http"

	"mmh_backend/internal/auth"
	"mmh_backend/internal/middleware"
	"mmh_backend/internal/models"
	"mmh_backend/internal/services"
	"mmh_backend/internal/services/dto"
	"mmh_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

type OfferHandler struct {
	*BaseHandler
	offerService    services.OfferService
	documentService services.OfferDocumentService
}

func NewOfferHandler(base *BaseHandler, offerService services.OfferService, documentService services.OfferDocumentService) *OfferHandler {
	return &OfferHandler{
		BaseHandler:     base,
		offerService:    offerService,
		documentService: documentService,
	}
}

func (h *OfferHandler) RegisterRoutes(rg *gin.RouterGroup, authMw gin.HandlerFunc) {
	offers := rg.Group("/offers", authMw, middleware.RequirePermission(auth.PermOffersRead))
	writers := middleware.RequirePermission(auth.PermOffersWrite)
	{
		offers.GET("", h.List)
		offers.GET("/published", h.ListPublished)
		offers.GET("/:id", h.Get)
		offers.POST("", writers, h.Create)
		offers.PUT("/:id", writers, h.Update)
		offers.DELETE("/:id", writers, h.Delete)
		offers.POST("/:id/publish", writers, h.Publish)
		offers.POST("/:id/archive", writers, h.Archive)
		offers.POST("/:id/technical-conditions", writers, h.UploadTechnicalConditions)
	}
}

// List godoc
// @Summary List offers
// @Description Agencies see published offers only; media users also see their own drafts and archive.
// @Tags offers
// @Security BearerAuth
// @Produce json
// @Param status query string false "draft, published or archived"
// @Param mediaType query string false "Media type"
// @Param mediaUserId query string false "Owner"
// @Param from query string false "Window overlaps from (YYYY-MM-DD)"
// @Param to query string false "Window overlaps until (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.PaginatedResponse
// @Router /offers [get]
func (h *OfferHandler) List(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var filter dto.OfferFilter
	if !h.BindAndValidate_Query(c, &filter) {
		return
	}
	normalizePage(&filter.Page, &filter.PageSize)

	offers, total, err := h.offerService.List(c.Request.Context(), h.GetDB(c), actor, &filter)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewPaginatedResponse(dto.NewOfferResponses(offers), total, filter.Page, filter.PageSize))
}

// ListPublished godoc
// @Summary Offers orderable right now
// @Tags offers
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.PaginatedResponse
// @Router /offers/published [get]
func (h *OfferHandler) ListPublished(c *gin.Context) {
	page, pageSize := ParsePagination(c)

	offers, total, err := h.offerService.ListPublishedNow(c.Request.Context(), h.GetDB(c), page, pageSize)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewPaginatedResponse(dto.NewOfferResponses(offers), total, page, pageSize))
}

// Get godoc
// @Summary Get an offer
// @Tags offers
// @Security BearerAuth
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} dto.OfferResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /offers/{id} [get]
func (h *OfferHandler) Get(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	offer, err := h.offerService.GetByID(c.Request.Context(), h.GetDB(c), actor, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOfferResponse(offer))
}

// Create godoc
// @Summary Create a draft offer
// @Description Media users own the offer; admins must pass mediaUserId.
// @Tags offers
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.OfferRequest true "Offer"
// @Success 201 {object} dto.OfferResponse
// @Failure 400 {object} apperrors.ErrorResponse
// @Router /offers [post]
func (h *OfferHandler) Create(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.OfferRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	offer, err := h.offerService.Create(c.Request.Context(), h.GetDB(c), actor, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewOfferResponse(offer))
}

// Update godoc
// @Summary Replace an offer's mutable fields
// @Tags offers
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Offer ID"
// @Param request body dto.OfferRequest true "Offer"
// @Success 200 {object} dto.OfferResponse
// @Failure 409 {object} apperrors.ErrorResponse
// @Router /offers/{id} [put]
func (h *OfferHandler) Update(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.OfferRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	offer, err := h.offerService.Update(c.Request.Context(), h.GetDB(c), actor, c.Param("id"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOfferResponse(offer))
}

// Delete godoc
// @Summary Delete an offer
// @Description Rejected with 409 while orders reference the offer.
// @Tags offers
// @Security BearerAuth
// @Param id path string true "Offer ID"
// @Success 204
// @Failure 409 {object} apperrors.ErrorResponse
// @Router /offers/{id} [delete]
func (h *OfferHandler) Delete(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	if err := h.offerService.Delete(c.Request.Context(), h.GetDB(c), actor, c.Param("id")); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Publish godoc
// @Summary Publish an offer
// @Tags offers
// @Security BearerAuth
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} dto.OfferResponse
// @Failure 409 {object} apperrors.ErrorResponse
// @Router /offers/{id}/publish [post]
func (h *OfferHandler) Publish(c *gin.Context) {
	h.transition(c, models.OfferStatusPublished)
}

// Archive godoc
// @Summary Archive an offer
// @Tags offers
// @Security BearerAuth
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} dto.OfferResponse
// @Router /offers/{id}/archive [post]
func (h *OfferHandler) Archive(c *gin.Context) {
	h.transition(c, models.OfferStatusArchived)
}

// UploadTechnicalConditions godoc
// @Summary Attach a technical conditions document
// @Description Accepts PDF, PNG, JPEG or DOCX. The stored file's URL replaces technicalConditionsUrl.
// @Tags offers
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Offer ID"
// @Param file formData file true "Document"
// @Success 200 {object} dto.OfferResponse
// @Failure 400 {object} apperrors.ErrorResponse
// @Failure 403 {object} apperrors.ErrorResponse
// @Router /offers/{id}/technical-conditions [post]
func (h *OfferHandler) UploadTechnicalConditions(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.HandleServiceError(c, apperrors.FieldError("file", "A file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.HandleServiceError(c, apperrors.InternalError(err))
		return
	}
	defer file.Close()

	offer, err := h.documentService.AttachTechnicalConditions(c.Request.Context(), h.GetDB(c), actor, c.Param("id"), &dto.DocumentUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		Content:  file,
	})
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOfferResponse(offer))
}

func (h *OfferHandler) transition(c *gin.Context, to models.OfferStatus) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	var (
		offer *models.Offer
		err   error
	)
	if to == models.OfferStatusPublished {
		offer, err = h.offerService.Publish(c.Request.Context(), h.GetDB(c), actor, c.Param("id"))
	} else {
		offer, err = h.offerService.Archive(c.Request.Context(), h.GetDB(c), actor, c.Param("id"))
	}
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOfferResponse(offer))
}
