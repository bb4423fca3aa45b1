package handlers

import (
	"net/http"

	"mmh_backend/internal/auth"
	"mmh_backend/internal/logger"
	"mmh_backend/internal/middleware"
	"mmh_backend/internal/services"
	"mmh_backend/internal/services/dto"
	"mmh_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	*BaseHandler
	userService services.UserService
}

func NewUserHandler(base *BaseHandler, userService services.UserService) *UserHandler {
	return &UserHandler{
		BaseHandler: base,
		userService: userService,
	}
}

// RegisterRoutes mounts /users behind authMw.
func (h *UserHandler) RegisterRoutes(rg *gin.RouterGroup, authMw gin.HandlerFunc) {
	users := rg.Group("/users", authMw)
	adminOnly := middleware.RequirePermission(auth.PermUsersManage)
	{
		users.GET("", adminOnly, h.List)
		users.POST("", adminOnly, h.Create)
		users.GET("/:id", h.Get)
		users.PUT("/:id", h.Update)
		users.DELETE("/:id", adminOnly, h.Delete)
		users.PUT("/:id/status", adminOnly, h.UpdateStatus)
	}
}

// List godoc
// @Summary List users
// @Tags users
// @Security BearerAuth
// @Produce json
// @Param role query string false "Role filter"
// @Param status query string false "Status filter"
// @Param search query string false "Email, company or contact substring"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.PaginatedResponse
// @Failure 403 {object} apperrors.ErrorResponse
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	var filter dto.UserFilter
	if !h.BindAndValidate_Query(c, &filter) {
		return
	}
	normalizePage(&filter.Page, &filter.PageSize)

	users, total, err := h.userService.List(c.Request.Context(), h.GetDB(c), &filter)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewPaginatedResponse(dto.NewUserResponses(users), total, filter.Page, filter.PageSize))
}

// Create godoc
// @Summary Create a user
// @Description Admin only. The password may be supplied pre-hashed with bcrypt.
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.CreateUserRequest true "User"
// @Success 201 {object} dto.UserResponse
// @Failure 409 {object} apperrors.ErrorResponse
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req dto.CreateUserRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	user, err := h.userService.Create(c.Request.Context(), h.GetDB(c), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewUserResponse(user))
}

// Get godoc
// @Summary Get a user
// @Description Admins can read anyone, other users only themselves.
// @Tags users
// @Security BearerAuth
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} dto.UserResponse
// @Failure 403 {object} apperrors.ErrorResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := h.selfOrAdmin(c)
	if !ok {
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), h.GetDB(c), id)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// Update godoc
// @Summary Update profile fields
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body dto.UpdateUserRequest true "Profile"
// @Success 200 {object} dto.UserResponse
// @Failure 403 {object} apperrors.ErrorResponse
// @Router /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := h.selfOrAdmin(c)
	if !ok {
		return
	}

	var req dto.UpdateUserRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), h.GetDB(c), id, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// Delete godoc
// @Summary Delete a user
// @Description Rejected with 409 while the user owns offers or takes part in orders.
// @Tags users
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Failure 409 {object} apperrors.ErrorResponse
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if id == middleware.GetUserID(c) {
		h.HandleServiceError(c, apperrors.ErrInvalidOperation("user", "You cannot delete your own account"))
		return
	}

	if err := h.userService.Delete(c.Request.Context(), h.GetDB(c), id); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	logger.CtxInfo(c.Request.Context(), "User deleted", "target_user_id", id)
	c.Status(http.StatusNoContent)
}

// UpdateStatus godoc
// @Summary Change a user's status
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body dto.UpdateUserStatusRequest true "Status"
// @Success 200 {object} dto.UserResponse
// @Router /users/{id}/status [put]
func (h *UserHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateUserStatusRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	user, err := h.userService.UpdateStatus(c.Request.Context(), h.GetDB(c), c.Param("id"), req.Status)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// selfOrAdmin returns the :id parameter when the caller is that user or an admin.
func (h *UserHandler) selfOrAdmin(c *gin.Context) (string, bool) {
	actor, ok := h.Actor(c)
	if !ok {
		return "", false
	}
	id := c.Param("id")
	if id != actor.UserID && !actor.IsAdmin() {
		h.HandleServiceError(c, apperrors.ErrInsufficientPermissions)
		return "", false
	}
	return id, true
}
