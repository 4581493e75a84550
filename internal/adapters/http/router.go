package http

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/devicefarm/internal/adapters/rtc"
	"github.com/dkeye/devicefarm/internal/adapters/signal"
	"github.com/dkeye/devicefarm/internal/app"
	"github.com/dkeye/devicefarm/internal/config"
	"github.com/dkeye/devicefarm/internal/domain"
)

const clientTokenKey = "ct"

// ClientTokenMiddleware gives every browser a stable token kept in the
// cookie session. It only tags logs; routing never uses it.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// CORSMiddleware allows any origin, so the device farm UI can be served from
// a different host than the relay.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, relay *app.Relay) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// ClientIP is the socket peer; forwarded headers are not trusted.
	_ = r.SetTrustedProxies(nil)
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware())

	secret := cfg.Secret
	if secret == "" {
		secret = uuid.NewString()
	}
	store := cookie.NewStore([]byte(secret))
	r.Use(sessions.Sessions("DeviceFarmSessions", store))
	r.Use(ClientTokenMiddleware())

	ctrl := signal.NewSignalWSController(
		relay,
		signal.NewAcceptLimiter(cfg.AcceptLimit, cfg.AcceptWindow),
		signal.Options{
			ReadLimit:  cfg.ReadLimit,
			WriteWait:  cfg.WriteWait,
			SendBuffer: cfg.SendBuffer,
		},
	)
	iceConfig := rtc.Configuration(cfg.ICEServers)

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		if websocket.IsWebSocketUpgrade(c.Request) {
			ctrl.HandleSignal(ctx, c)
			return
		}
		c.File(filepath.Join(cfg.StaticPath, "index.html"))
	})
	r.GET("/ws", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, domain.Health{OK: true, TS: relay.Now()})
	})

	api := r.Group("/api")
	api.GET("/ice", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": iceConfig.ICEServers})
	})
	api.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, relay.Stats())
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
