package api

import (
	"net/http"
	"strconv"

	"github.com/DoctorGattino/blog/types"

	"github.com/gin-gonic/gin"
)

const defaultListLimit = 20

// RegisterArticleRoutes registers article-related routes.
func RegisterArticleRoutes(g *gin.RouterGroup, b *Backend) {
	g.GET("/articles", handleListArticles(b))
	g.GET("/articles/:slug", handleGetArticle(b))
	g.POST("/articles", requireAuth, handleCreateArticle(b))
	g.PUT("/articles/:slug", requireAuth, handleUpdateArticle(b))
	g.DELETE("/articles/:slug", requireAuth, handleDeleteArticle(b))
	g.POST("/articles/:slug/favorite", requireAuth, handleFavorite(b, true))
	g.DELETE("/articles/:slug/favorite", requireAuth, handleFavorite(b, false))
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func handleListArticles(b *Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := queryInt(c, "limit", defaultListLimit)
		if !ok {
			respondError(c, &types.ValidationError{Fields: map[string][]string{"limit": {"must be a non-negative integer"}}})
			return
		}
		offset, ok := queryInt(c, "offset", 0)
		if !ok {
			respondError(c, &types.ValidationError{Fields: map[string][]string{"offset": {"must be a non-negative integer"}}})
			return
		}
		c.JSON(http.StatusOK, b.List(viewer(c), limit, offset))
	}
}

func handleGetArticle(b *Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := b.Get(viewer(c), c.Param("slug"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, types.ArticleEnvelope{Article: a})
	}
}

func handleCreateArticle(b *Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.DraftEnvelope
		if !bindJSON(c, &req) {
			return
		}
		a, err := b.Create(viewer(c), req.Article)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, types.ArticleEnvelope{Article: a})
	}
}

func handleUpdateArticle(b *Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.PatchEnvelope
		if !bindJSON(c, &req) {
			return
		}
		a, err := b.Update(viewer(c), c.Param("slug"), req.Article)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, types.ArticleEnvelope{Article: a})
	}
}

func handleDeleteArticle(b *Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := b.Delete(viewer(c), c.Param("slug")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleFavorite(b *Backend, on bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := b.SetFavorite(viewer(c), c.Param("slug"), on)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, types.ArticleEnvelope{Article: a})
	}
}
