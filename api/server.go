package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/DoctorGattino/blog/types"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	ctxUsername = "username"
	ctxToken    = "token"
)

var setupValidator sync.Once

// NewRouter constructs a Gin engine serving the platform API under /api.
func NewRouter(b *Backend, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	setupValidator.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			if err := types.RegisterValidations(v); err != nil {
				logger.Error("failed to register validations", "error", err)
			}
		}
	})
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	RegisterHealthRoutes(r)

	g := r.Group("/api")
	g.Use(authenticate(b))
	RegisterUserRoutes(g, b)
	RegisterArticleRoutes(g, b)
	return r
}

// RegisterHealthRoutes registers the liveness endpoint.
func RegisterHealthRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// authenticate resolves "Authorization: Token <jwt>" when present. Unknown
// tokens are rejected even on public routes.
func authenticate(b *Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(header, "Token ")
		if !ok {
			token, ok = strings.CutPrefix(header, "Bearer ")
		}
		username, known := b.Authenticate(strings.TrimSpace(token))
		if !ok || !known {
			respondError(c, types.ErrUnauthenticated)
			c.Abort()
			return
		}
		c.Set(ctxUsername, username)
		c.Set(ctxToken, strings.TrimSpace(token))
		c.Next()
	}
}

func requireAuth(c *gin.Context) {
	if viewer(c) == "" {
		respondError(c, types.ErrUnauthenticated)
		c.Abort()
		return
	}
	c.Next()
}

func viewer(c *gin.Context) string {
	return c.GetString(ctxUsername)
}

// bindJSON decodes the request body into obj. Malformed JSON is a 400; failed
// binding rules are reported per field with a 422.
func bindJSON(c *gin.Context, obj any) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		respondError(c, types.AsValidationError(err))
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"body": []string{err.Error()}}})
	return false
}

// respondError writes err in the platform's {"errors": {field: [msg]}} shape
func respondError(c *gin.Context, err error) {
	var ve *types.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": ve.Fields})
	case errors.Is(err, types.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"errors": gin.H{"token": []string{"is missing or invalid"}}})
	case errors.Is(err, errForbidden):
		c.JSON(http.StatusForbidden, gin.H{"errors": gin.H{"article": []string{"is owned by another user"}}})
	case errors.Is(err, types.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"errors": gin.H{"article": []string{"not found"}}})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"errors": gin.H{"server": []string{err.Error()}}})
	}
}
