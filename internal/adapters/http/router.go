package http

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/dkeye/huddle/internal/adapters/rtc"
	"github.com/dkeye/huddle/internal/adapters/signal"
	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/config"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Deps struct {
	Orch     *orch.Orchestrator
	Signal   *signal.SignalWSController
	RTC      webrtc.Configuration
	Gatherer prometheus.Gatherer
	// Health reports whether the store is reachable.
	Health func(context.Context) error
}

// BearerAuthMiddleware resolves the Authorization header to a user id.
func BearerAuthMiddleware(v core.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "token missing"})
			return
		}
		uid, err := v.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}
		c.Set("user_id", string(uid))
		c.Next()
	}
}

func statusFor(err error) int {
	switch core.Kind(err) {
	case "not_found":
		return http.StatusNotFound
	case "authorization":
		return http.StatusForbidden
	case "authentication":
		return http.StatusUnauthorized
	case "invalid":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	if cfg.StaticPath != "" {
		if _, err := os.Stat(cfg.StaticPath); err == nil {
			r.Static("/static", cfg.StaticPath)
			r.GET("/", func(c *gin.Context) {
				c.File(cfg.StaticPath + "/index.html")
			})
		}
	}

	r.GET("/healthz", func(c *gin.Context) {
		if d.Health != nil {
			if err := d.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		d.Signal.HandleSignal(ctx, c)
	})

	authed := api.Group("", BearerAuthMiddleware(d.Orch.Auth))

	// GET /api/rooms/:id/users — who is in the room right now
	authed.GET("/rooms/:id/users", func(c *gin.Context) {
		roomID := domain.RoomID(c.Param("id"))
		users, err := d.Orch.RoomUsers(c.Request.Context(), roomID)
		if err != nil {
			code := statusFor(err)
			msg := err.Error()
			if code == http.StatusInternalServerError {
				log.Error().Err(err).Str("module", "adapters.http").Str("room", string(roomID)).Msg("room users")
				msg = "internal error"
			}
			c.JSON(code, gin.H{"message": msg})
			return
		}
		c.JSON(http.StatusOK, gin.H{"roomId": roomID, "users": users})
	})

	// GET /api/users/:id/presence
	authed.GET("/users/:id/presence", func(c *gin.Context) {
		uid := domain.UserID(c.Param("id"))
		status := domain.StatusOffline
		if d.Orch.Registry.IsOnline(uid) {
			status = domain.StatusOnline
		}
		c.JSON(http.StatusOK, gin.H{
			"userId":      uid,
			"status":      status,
			"connections": len(d.Orch.Registry.ConnectionsOf(uid)),
		})
	})

	// GET /api/rtc/config — ICE servers for RTCPeerConnection
	authed.GET("/rtc/config", func(c *gin.Context) {
		c.JSON(http.StatusOK, rtc.View(d.RTC))
	})

	return r
}
