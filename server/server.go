package server

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"sync"
	"time"

	"chatrelay/pkg/config"
	"chatrelay/pkg/health"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/presence"
	"chatrelay/pkg/protocol"
	"chatrelay/pkg/storage"
	"chatrelay/pkg/uploads"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, implement proper origin checking
	},
}

// Server ties the hub, presence tracker, uploads and roster together
// behind one HTTP listener
type Server struct {
	config  *config.ServerConfig
	hub     *Hub
	tracker *presence.Tracker
	store   storage.Store
	blobs   uploads.BlobStore
	monitor *health.Monitor

	httpServer *http.Server
	serverMu   sync.Mutex
	started    bool
	startedMu  sync.Mutex
}

// NewServer creates a server instance. The roster store is optional;
// the server keeps running without persistence when it cannot open.
func NewServer(cfg *config.ServerConfig) (*Server, error) {
	log := logger.Get()
	monitor := health.NewMonitor()

	store, err := storage.NewStore(cfg.Database)
	if err != nil {
		log.WarnWith("failed to open roster database, continuing without persistence", "error", err)
		monitor.SetComponentStatus("roster", health.StatusDegraded, "database unavailable")
		store = nil
	} else if store != nil {
		monitor.SetComponentStatus("roster", health.StatusHealthy, "")
	}

	blobs, err := uploads.NewDiskStore(cfg.UploadsPath(), cfg.BaseURL, cfg.Uploads.URLPrefix)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	tracker := presence.NewTracker()
	hub := NewHub(tracker, store, cfg.WebSocket, cfg.Rooms.WelcomeText)

	return &Server{
		config:  cfg,
		hub:     hub,
		tracker: tracker,
		store:   store,
		blobs:   blobs,
		monitor: monitor,
	}, nil
}

// Start runs the hub and serves HTTP until Shutdown
func (s *Server) Start() error {
	s.startedMu.Lock()
	if s.started {
		logger.Get().Warn("server already started, skipping duplicate start")
		s.startedMu.Unlock()
		return nil
	}
	s.started = true
	s.startedMu.Unlock()

	go s.hub.Run()

	if s.store != nil {
		go s.sweepStaleUsers()
	}

	router := s.buildRouter()

	httpServer := &http.Server{
		Addr:    s.config.Address,
		Handler: router,
	}
	s.serverMu.Lock()
	s.httpServer = httpServer
	s.serverMu.Unlock()

	if s.config.TLS.Enabled {
		httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		err := httpServer.ListenAndServeTLS(s.config.TLS.CertFile, s.config.TLS.KeyFile)
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}

	err := httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// buildRouter assembles the gin router with all routes
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.Use(CORSMiddleware())

	router.GET("/ws", s.handleWebSocket)
	router.POST("/register", s.handleRegisterHTTP)
	router.POST("/updateStatus", s.handleUpdateStatusHTTP)
	router.GET("/connectedUsers", s.handleConnectedUsers)
	router.GET("/healthz", s.handleHealth)
	router.Static(s.config.Uploads.URLPrefix, s.config.UploadsPath())

	return router
}

// Shutdown stops the HTTP listener, the hub and the roster store
func (s *Server) Shutdown(ctx context.Context) error {
	log := logger.Get()
	log.Info("initiating graceful shutdown")

	s.startedMu.Lock()
	s.started = false
	s.startedMu.Unlock()

	s.serverMu.Lock()
	httpServer := s.httpServer
	s.serverMu.Unlock()

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			log.ErrorWithErr("error shutting down HTTP server", err)
			httpServer.Close()
		}
	}

	s.hub.Stop()

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.ErrorWithErr("error closing roster database", err)
		}
	}

	log.Info("graceful shutdown complete")
	return nil
}

// sweepStaleUsers periodically flips roster rows that stopped being seen
func (s *Server) sweepStaleUsers() {
	interval := s.config.Database.OfflineAfter
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if err := s.store.MarkStaleOffline(interval); err != nil {
			logger.Get().WarnWith("stale roster sweep failed", "error", err)
		}
	}
}

// handleWebSocket upgrades the request and hands the connection to the hub
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Get().WarnWith("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(uuid.New().String(), conn, s.config.WebSocket.SendBuffer)
	s.hub.Connect(client)
}

// handleRegisterHTTP registers a presence over plain HTTP, optionally
// storing a profile picture. The connectionId form field is caller
// supplied and not verified against a live connection.
func (s *Server) handleRegisterHTTP(c *gin.Context) {
	log := logger.Get()

	username := protocol.NormalizeUsername(c.PostForm("username"))
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}
	connID := c.PostForm("connectionId")
	status := c.PostForm("status")

	var pictureURL string
	file, header, err := c.Request.FormFile("profilePicture")
	if err == nil {
		defer file.Close()

		maxBytes := s.config.Uploads.MaxUploadMB * 1024 * 1024
		data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
		if err != nil || int64(len(data)) > maxBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "profile picture too large"})
			return
		}

		pictureURL, err = s.blobs.Store(header.Filename, data)
		if err != nil {
			log.ErrorWithErr("failed to store profile picture", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store profile picture"})
			return
		}
	}

	record, usernames := s.tracker.Register(connID, username, pictureURL, status)
	log.InfoWith("user registered over HTTP", "username", record.Username, "connectionId", connID)

	s.hub.saveToRoster(record)
	s.hub.announceUsers(usernames)

	if connID != "" {
		complete, err := protocol.NewEvent(protocol.EventRegistrationComplete,
			protocol.RegistrationCompletePayload{Username: record.Username, ProfilePicture: pictureURL})
		if err == nil {
			if err := s.hub.SendTo(connID, complete); err != nil {
				log.DebugWith("registration target not connected", "connectionId", connID)
			}
		}
	}

	response := gin.H{"username": record.Username}
	if pictureURL != "" {
		response["profilePicture"] = pictureURL
	}
	c.JSON(http.StatusOK, response)
}

// updateStatusRequest is the JSON body of POST /updateStatus
type updateStatusRequest struct {
	ConnectionID string `json:"connectionId" binding:"required"`
	Status       string `json:"status" binding:"required"`
}

// handleUpdateStatusHTTP changes the status of a registered presence
func (s *Server) handleUpdateStatusHTTP(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "connectionId and status are required"})
		return
	}

	if !s.tracker.UpdateStatus(req.ConnectionID, req.Status) {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrNotRegistered.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// handleConnectedUsers returns the registered usernames in order
func (s *Server) handleConnectedUsers(c *gin.Context) {
	usernames := s.tracker.Usernames()
	if usernames == nil {
		usernames = []string{}
	}
	c.JSON(http.StatusOK, usernames)
}

// handleHealth returns the current health snapshot
func (s *Server) handleHealth(c *gin.Context) {
	snapshot := s.monitor.GetHealth(s.hub.ClientCount(), s.tracker.Count())
	status := http.StatusOK
	if snapshot.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, snapshot)
}

// CORSMiddleware allows the browser client to call from any origin
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
