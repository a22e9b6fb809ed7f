package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"medreel/internal/auth"
	"medreel/internal/models"
	"medreel/internal/service/account"
	"medreel/internal/service/chat"
	"medreel/internal/service/review"
	"medreel/internal/validate"
)

// ChatEngine is the conversation capability the chat routes drive.
type ChatEngine interface {
	Send(ctx context.Context, sessionID string, userID int64, input string) (*chat.SendResult, error)
	FetchMessages(ctx context.Context, sessionID string) ([]chat.ChatMessage, error)
	Reset(ctx context.Context, sessionID string) error
}

// Handler wires HTTP routes to the services.
type Handler struct {
	accounts *account.Service
	auth     *auth.Service
	engine   ChatEngine
	review   *review.Service
}

// NewHandler constructs a Handler instance.
func NewHandler(accounts *account.Service, authService *auth.Service, engine ChatEngine, reviewService *review.Service) *Handler {
	return &Handler{
		accounts: accounts,
		auth:     authService,
		engine:   engine,
		review:   reviewService,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/auth/register", h.registerUser)
	api.POST("/auth/login", h.loginUser)

	authMW := h.auth.Middleware()
	csrfMW := h.auth.CSRFMiddleware()

	authed := api.Group("")
	authed.Use(authMW, csrfMW)
	authed.POST("/auth/logout", h.logoutUser)

	chatRoutes := api.Group("/chat")
	chatRoutes.Use(authMW, auth.RequireRole(models.RoleDoctor), csrfMW)
	chatRoutes.POST("/send", h.sendMessage)
	chatRoutes.GET("/messages", h.fetchMessages)
	chatRoutes.DELETE("/messages", h.deleteMessages)

	adminRoutes := api.Group("/admin/scripts")
	adminRoutes.Use(authMW, auth.RequireRole(models.RoleAdmin), csrfMW)
	adminRoutes.GET("", h.listScripts)
	adminRoutes.POST("/:script_id/approve", h.approveScript)
	adminRoutes.POST("/:script_id/reject", h.rejectScript)
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.accounts.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"name":       user.Name,
		"role":       user.Role,
		"created_at": user.CreatedAt,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) loginUser(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	authToken, sessionID, err := h.auth.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	h.setAuthCookies(c, authToken, csrfToken)
	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"name":       user.Name,
		"role":       user.Role,
		"session_id": sessionID,
		"auth_token": authToken,
	})
}

func (h *Handler) logoutUser(c *gin.Context) {
	if authToken, ok := auth.AuthTokenFromContext(c); ok {
		_ = h.auth.RevokeToken(c.Request.Context(), authToken)
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

type sendRequest struct {
	Content string `json:"content"`
}

func (h *Handler) sendMessage(c *gin.Context) {
	ident, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	content := validate.SanitizeMessage(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message cannot be empty"})
		return
	}

	result, err := h.engine.Send(c.Request.Context(), ident.SessionID, ident.UserID, content)
	if err != nil {
		// The client gets a retry-eligible generic error; nothing was
		// persisted for this turn.
		c.JSON(http.StatusBadGateway, gin.H{"error": "script generation failed, please retry"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) fetchMessages(c *gin.Context) {
	ident, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	messages, err := h.engine.FetchMessages(c.Request.Context(), ident.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) deleteMessages(c *gin.Context) {
	ident, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	if err := h.engine.Reset(c.Request.Context(), ident.SessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listScripts(c *gin.Context) {
	filter := review.ListFilter{
		UserID:   c.Query("user_id"),
		Email:    c.Query("email"),
		ScriptID: c.Query("script_id"),
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		switch models.ScriptStatus(status) {
		case models.ScriptPending, models.ScriptApproved, models.ScriptRejected:
			filter.Status = models.ScriptStatus(status)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}
	}
	if v := c.Query("page_index"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page_index"})
			return
		}
		filter.PageIndex = n
	}
	if v := c.Query("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page_size"})
			return
		}
		filter.PageSize = n
	}

	result, err := h.review.ListScripts(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

type approveRequest struct {
	VideoURL string `json:"video_url"`
}

func (h *Handler) approveScript(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	err := h.review.ApproveScript(c.Request.Context(), c.Param("script_id"), req.VideoURL)
	h.writeReviewResult(c, err)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) rejectScript(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	err := h.review.RejectScript(c.Request.Context(), c.Param("script_id"), req.Reason)
	h.writeReviewResult(c, err)
}

func (h *Handler) writeReviewResult(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, sql.ErrNoRows):
		c.JSON(http.StatusNotFound, gin.H{"error": "script not found"})
	case errors.Is(err, review.ErrAlreadyReviewed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	ttl := int(h.auth.TokenTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	setCookie(c, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    authToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setCookie(c, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{h.auth.AuthCookieName(), h.auth.CSRFCookieName()} {
		setCookie(c, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.auth.AuthCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}
