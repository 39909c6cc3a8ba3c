package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gametrack/gametrack/internal/cache"
	"github.com/gametrack/gametrack/internal/config"
	"github.com/gametrack/gametrack/internal/notify"
	"github.com/gametrack/gametrack/internal/store"
	"github.com/gametrack/gametrack/internal/storefront"
)

// SteamAPI is the slice of the Steam client the tool surface needs.
type SteamAPI interface {
	Search(ctx context.Context, query string) ([]storefront.Game, error)
	AppDetails(ctx context.Context, appID int) (*storefront.Game, error)
	TopDeals(ctx context.Context, limit int) ([]storefront.Game, error)
}

// EpicAPI is the slice of the Epic client the tool surface needs.
type EpicAPI interface {
	Search(ctx context.Context, query string, limit int) ([]storefront.Game, error)
	Price(ctx context.Context, namespace, offerID string) (*storefront.Game, error)
	FreeGames(ctx context.Context) ([]storefront.FreePromotion, error)
}

// Dealer serves the cache-first top-deals list. The tracker implements it.
type Dealer interface {
	TopDeals(ctx context.Context) ([]storefront.Game, error)
}

// PriceCache is the slice of the Redis speed layer the tool surface uses
// for per-app price lookups. A nil *cache.Cache satisfies it as a
// permanent miss.
type PriceCache interface {
	GetPrice(ctx context.Context, appID int) (*storefront.Game, error)
	SetPrice(ctx context.Context, game *storefront.Game) error
}

// Capabilities reports which parts of the service are live. When the
// database is down the service runs search-only: every tool that would
// touch the store fails with a clear message instead of crashing.
type Capabilities struct {
	Database bool `json:"database"`
	Cache    bool `json:"cache"`
	Email    bool `json:"email"`
}

// Server holds the dependencies for the HTTP tool surface.
type Server struct {
	cfg    *config.Config
	store  *store.Store
	steam  SteamAPI
	epic   EpicAPI
	mailer notify.Mailer
	deals  Dealer
	prices PriceCache
	caps   Capabilities
	tools  map[string]toolFunc
}

// New wires the handler. store may be nil; the server then runs in
// search-only mode per caps.Database.
func New(cfg *config.Config, st *store.Store, steam SteamAPI, epic EpicAPI, mailer notify.Mailer, deals Dealer, prices PriceCache, caps Capabilities) *Server {
	if prices == nil {
		prices = (*cache.Cache)(nil)
	}
	s := &Server{
		cfg:    cfg,
		store:  st,
		steam:  steam,
		epic:   epic,
		mailer: mailer,
		deals:  deals,
		prices: prices,
		caps:   caps,
	}
	s.registerTools()
	return s
}

// Router builds the gin engine: /health is open, everything else sits
// behind the bearer token.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger())

	r.GET("/health", s.handleHealth)

	auth := r.Group("/", BearerAuth(s.cfg.AuthToken))
	auth.POST("/mcp/call", s.handleToolCall)
	auth.POST("/tools/:name", s.handleToolAlias)
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"service":      "gametrack",
		"capabilities": s.caps,
	})
}

// toolCallRequest is the MCP-style envelope.
type toolCallRequest struct {
	Tool      string          `json:"tool" binding:"required"`
	Arguments json.RawMessage `json:"arguments"`
}

// toolCallResponse carries the formatted result. Tool-level failures come
// back in-band with is_error set; only protocol problems (bad JSON, unknown
// tool, missing auth) map to HTTP errors.
type toolCallResponse struct {
	Tool    string        `json:"tool"`
	Content []contentItem `json:"content"`
	IsError bool          `json:"is_error"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *Server) handleToolCall(c *gin.Context) {
	var req toolCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.dispatch(c, req.Tool, req.Arguments)
}

func (s *Server) handleToolAlias(c *gin.Context) {
	name := c.Param("name")
	var args json.RawMessage
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&args); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	s.dispatch(c, name, args)
}

func (s *Server) dispatch(c *gin.Context, name string, args json.RawMessage) {
	tool, ok := s.tools[name]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tool: " + name})
		return
	}

	text, err := tool(c.Request.Context(), args)
	if err != nil {
		c.JSON(http.StatusOK, toolCallResponse{
			Tool:    name,
			Content: []contentItem{{Type: "text", Text: "Error: " + err.Error()}},
			IsError: true,
		})
		return
	}
	c.JSON(http.StatusOK, toolCallResponse{
		Tool:    name,
		Content: []contentItem{{Type: "text", Text: text}},
	})
}
