package api

import (
	"net/http"

	"github.com/DoctorGattino/blog/types"

	"github.com/gin-gonic/gin"
)

// RegisterUserRoutes registers sign-up, sign-in and profile endpoints.
func RegisterUserRoutes(g *gin.RouterGroup, b *Backend) {
	g.POST("/users", handleRegister(b))
	g.POST("/users/login", handleLogin(b))
	g.GET("/user", requireAuth, handleCurrentUser(b))
	g.PUT("/user", requireAuth, handleUpdateUser(b))
}

type registrationRequest struct {
	User types.Registration `json:"user"`
}

type credentialsRequest struct {
	User types.Credentials `json:"user"`
}

type profileRequest struct {
	User types.ProfileUpdate `json:"user"`
}

func handleRegister(b *Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registrationRequest
		if !bindJSON(c, &req) {
			return
		}
		user, err := b.Register(req.User)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, types.UserEnvelope{User: user})
	}
}

func handleLogin(b *Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if !bindJSON(c, &req) {
			return
		}
		user, err := b.Login(req.User)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, types.UserEnvelope{User: user})
	}
}

func handleCurrentUser(b *Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := b.CurrentUser(viewer(c), c.GetString(ctxToken))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, types.UserEnvelope{User: user})
	}
}

func handleUpdateUser(b *Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req profileRequest
		if !bindJSON(c, &req) {
			return
		}
		user, err := b.UpdateUser(viewer(c), c.GetString(ctxToken), req.User)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, types.UserEnvelope{User: user})
	}
}
