package http

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/dkeye/voicerelay/internal/adapters/ws"
	"github.com/dkeye/voicerelay/internal/app/relay"
	"github.com/dkeye/voicerelay/internal/config"
	"github.com/dkeye/voicerelay/internal/core"
	"github.com/dkeye/voicerelay/internal/domain"
	"github.com/dkeye/voicerelay/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Deps are the collaborators the relay endpoints need.
type Deps struct {
	Registry *relay.Registry
	Dialer   core.Dialer
	Metrics  *metrics.Metrics
}

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("VoiceSessions", store))
	r.Use(ClientTokenMiddleware())

	h := &relayHandler{
		deps:       deps,
		readLimit:  cfg.ReadLimit,
		pingPeriod: cfg.PingPeriod,
	}

	r.GET(relay.RootPath, func(c *gin.Context) { h.serve(ctx, c) })
	r.GET("/healthz", h.health)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	r.NoRoute(h.reject)

	log.Info().Str("module", "adapters.http").Int("port", cfg.Port).Msg("router setup")
	return r
}

type relayHandler struct {
	deps       Deps
	readLimit  int64
	pingPeriod time.Duration
}

func (h *relayHandler) serve(ctx context.Context, c *gin.Context) {
	if !relay.Accept(c.Request) || !websocket.IsWebSocketUpgrade(c.Request) {
		h.reject(c)
		return
	}
	client := c.GetString("client_token")
	connections := countConnection(c)

	conn, err := ws.Upgrade(c.Writer, c.Request, h.readLimit, cookieHeader(c))
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ws upgrade")
		return
	}

	sid := domain.NewSessionID()
	sess := relay.NewSession(sid, conn, h.deps.Dialer, h.deps.Metrics)
	unregister := h.deps.Registry.Register(sess)
	log.Info().Str("module", "adapters.http").Str("sid", string(sid)).Str("client", client).Int("connections", connections).Msg("relay session accepted")

	conn.KeepAlive(h.pingPeriod)
	go func() {
		defer unregister()
		if err := sess.Run(ctx); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Str("sid", string(sid)).Msg("relay session ended")
		}
	}()
}

// reject closes connections on any path but the root. Websocket clients
// are upgraded and closed at once; plain requests get an empty 404.
func (h *relayHandler) reject(c *gin.Context) {
	if h.deps.Metrics != nil {
		h.deps.Metrics.RejectedPaths.Inc()
	}
	log.Warn().Str("module", "adapters.http").Str("path", c.Request.URL.Path).Msg("rejected connection")
	if websocket.IsWebSocketUpgrade(c.Request) {
		if conn, err := ws.Upgrade(c.Writer, c.Request, h.readLimit, nil); err == nil {
			conn.Close()
		}
		c.Abort()
		return
	}
	c.AbortWithStatus(nethttp.StatusNotFound)
}

// countConnection records per-browser connection counts in the cookie session.
func countConnection(c *gin.Context) int {
	session := sessions.Default(c)
	n, _ := session.Get("connections").(int)
	n++
	session.Set("connections", n)
	if err := session.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("save cookie session")
	}
	return n
}

// cookieHeader carries cookies set by middleware into the upgrade response.
func cookieHeader(c *gin.Context) nethttp.Header {
	cookies := c.Writer.Header().Values("Set-Cookie")
	if len(cookies) == 0 {
		return nil
	}
	return nethttp.Header{"Set-Cookie": cookies}
}
