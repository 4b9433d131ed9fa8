// Package server exposes the read API of the feed subsystem.
package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/postmux/postmux/cache"
	"github.com/postmux/postmux/feed"
	"github.com/postmux/postmux/monitor"
	Logger "github.com/postmux/postmux/utils/log"
)

// identityHeader carries the caller's user id, injected by the gateway in
// front of this service.
const identityHeader = "X-User-Id"

type feedResponse struct {
	Posts      []*cache.PostEntry `json:"posts"`
	HasMore    bool               `json:"hasMore"`
	LastPostId *string            `json:"lastPostId"`
}

type Server struct {
	assembler       *feed.Assembler
	monitor         *monitor.Monitor
	defaultPageSize int
}

func NewServer(assembler *feed.Assembler, mon *monitor.Monitor, defaultPageSize int) *Server {
	return &Server{
		assembler:       assembler,
		monitor:         mon,
		defaultPageSize: defaultPageSize,
	}
}

// RegisterRoutes binds the read API onto the router.
func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.GET("/feed", s.handleOwnFeed)
	router.GET("/feed/user/:id", s.handleUserFeed)
	router.GET("/healthz", s.handleHealthz)
}

func (s *Server) handleOwnFeed(c *gin.Context) {
	userId := c.GetHeader(identityHeader)
	if userId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user identity"})
		return
	}
	s.serveFeed(c, userId)
}

func (s *Server) handleUserFeed(c *gin.Context) {
	s.serveFeed(c, c.Param("id"))
}

func (s *Server) serveFeed(c *gin.Context, userId string) {
	pageSize := s.defaultPageSize
	if raw := c.Query("pageSize"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pageSize must be a positive integer"})
			return
		}
		pageSize = parsed
	}

	var lastPostId *string
	if raw := c.Query("lastPostId"); raw != "" {
		lastPostId = &raw
	}

	// Pagination and identity are validated above; an assembler error means
	// the backing stores failed, not the request.
	page, err := s.assembler.GetFeed(c.Request.Context(), userId, lastPostId, pageSize)
	if err != nil {
		Logger.Log.Errorf("fail to assemble feed for user %s: %v", userId, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fail to assemble feed"})
		return
	}

	c.JSON(http.StatusOK, feedResponse{
		Posts:      page.Posts,
		HasMore:    page.HasMore,
		LastPostId: page.Cursor,
	})
}

func (s *Server) handleHealthz(c *gin.Context) {
	state := monitor.StateHealthy
	if s.monitor != nil {
		state = s.monitor.State()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "cache": state})
}
