// Package adminapi is the bridge daemon's debug and health HTTP surface:
// health/readiness, live tick-loop status, the controller table, and the
// prometheus endpoint.
package adminapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/tickbridge/tickbridge/internal/observability"
)

// ControllerStatus is one controller row in the admin view.
type ControllerStatus struct {
	Name        string `json:"name"`
	Kind        string `json:"kind,omitempty"`
	Owner       string `json:"owner,omitempty"`
	Active      bool   `json:"active"`
	Script      string `json:"script,omitempty"`
	ScriptID    string `json:"script_id,omitempty"`
	LastOutcome string `json:"last_outcome,omitempty"`
	Ticks       uint64 `json:"ticks"`
}

// TickSummary is one recent controller execution.
type TickSummary struct {
	Controller string    `json:"controller"`
	Outcome    string    `json:"outcome"`
	Commands   int       `json:"commands"`
	Applied    int       `json:"applied"`
	Skipped    int       `json:"skipped"`
	Duration   string    `json:"duration"`
	At         time.Time `json:"at"`
}

// Status is the live view of the tick loop the daemon exposes.
type Status struct {
	ID        string        `json:"id"`
	World     string        `json:"world"`
	Mode      string        `json:"mode"`
	TickRate  float64       `json:"tick_rate"`
	Frame     uint64        `json:"frame"`
	Elapsed   float64       `json:"elapsed_seconds"`
	Ended     bool          `json:"ended"`
	Restarts  int           `json:"restarts"`
	Recent    []TickSummary `json:"recent,omitempty"`
	StartedAt time.Time     `json:"started_at"`
}

// StatusSource is implemented by the running service. Calls must be safe
// while the tick loop runs.
type StatusSource interface {
	Status() Status
	Controllers() []ControllerStatus
}

// Server is the admin HTTP endpoint for one bridge daemon.
type Server struct {
	id      string
	addr    string
	source  StatusSource
	router  *gin.Engine
	started time.Time
}

// New builds the admin server and registers its routes. corsOrigins empty
// means localhost development defaults.
func New(id, addr string, corsOrigins []string, source StatusSource) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log.Logger))
	r.Use(requestMetrics(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		id:      id,
		addr:    addr,
		source:  source,
		router:  r,
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Serve blocks on the listener. Run it in a goroutine and let process
// shutdown take the listener down with it.
func (s *Server) Serve() error {
	return s.router.Run(s.addr)
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.started).String(),
			"bridge": s.id,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":  s.source != nil,
			"uptime": time.Since(s.started).String(),
			"bridge": s.id,
		})
	})

	s.router.GET("/status", func(c *gin.Context) {
		if s.source == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "status source not attached"})
			return
		}
		c.JSON(http.StatusOK, s.source.Status())
	})

	s.router.GET("/controllers", func(c *gin.Context) {
		if s.source == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "status source not attached"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"controllers": s.source.Controllers()})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
