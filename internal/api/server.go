// Package api is the HTTP surface the demo dashboard reads from. It is a
// thin presentation stand-in: snapshots come from the engine, and nothing
// here writes to the store directly.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/crossmesh/bridgekit/internal/bridge"
	"github.com/crossmesh/bridgekit/internal/chains"
	"github.com/crossmesh/bridgekit/internal/prover"
)

// ChainHealth reports the proving service's sync view of one chain.
// Implemented by the prover client; nil in demo mode.
type ChainHealth interface {
	ChainStatus(ctx context.Context, chainID string) (*prover.ChainStatus, error)
}

type Server struct {
	orch       *bridge.Orchestrator
	estimator  *bridge.CostEstimator
	reconciler *bridge.Reconciler
	registry   *chains.Registry
	health     ChainHealth
	logger     *zap.Logger
}

func NewServer(orch *bridge.Orchestrator, estimator *bridge.CostEstimator, reconciler *bridge.Reconciler, registry *chains.Registry, health ChainHealth, logger *zap.Logger) *Server {
	return &Server{
		orch:       orch,
		estimator:  estimator,
		reconciler: reconciler,
		registry:   registry,
		health:     health,
		logger:     logger.Named("api"),
	}
}

// Router builds the gin handler; exposed separately for tests.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/chains", s.listChains)
	router.GET("/chains/:key/status", s.chainStatus)
	router.GET("/transfers", s.listTransfers)
	router.GET("/transfers/:id", s.getTransfer)
	router.POST("/transfers", s.submitTransfer)
	router.POST("/estimate", s.estimate)
	router.GET("/healthz", s.healthz)

	return router
}

// RunWithContext serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) RunWithContext(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server shutdown error", zap.Error(err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) listChains(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"chains": s.registry.List()})
}

// chainStatus reports the proving service's sync position on one chain. In
// demo mode there is no proving service, so known chains report as active.
func (s *Server) chainStatus(c *gin.Context) {
	key := c.Param("key")
	d, err := s.registry.Resolve(key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "chain not found"})
		return
	}

	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"chain_status": prover.ChainStatus{
			ChainID:    d.Key,
			Status:     "active",
			LastUpdate: time.Now().Unix(),
		}})
		return
	}

	status, err := s.health.ChainStatus(c.Request.Context(), key)
	if err != nil {
		s.logger.Warn("Chain status lookup failed",
			zap.String("chain", key), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chain_status": status})
}

func (s *Server) listTransfers(c *gin.Context) {
	account := c.Query("account")
	if account == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transfers": s.orch.ListTransfers(account)})
}

func (s *Server) getTransfer(c *gin.Context) {
	t, err := s.orch.GetTransfer(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "transfer not found"})
		return
	}
	resp := gin.H{"transfer": t}
	if t.SourceTxRef != "" {
		if link := s.registry.ExplorerTxURL(t.SourceChain, t.SourceTxRef); link != "" {
			resp["source_explorer_url"] = link
		}
	}
	if t.DestinationTxRef != "" {
		if link := s.registry.ExplorerTxURL(t.DestinationChain, t.DestinationTxRef); link != "" {
			resp["destination_explorer_url"] = link
		}
	}
	c.JSON(http.StatusOK, resp)
}

type transferBody struct {
	SourceChain      string `json:"source_chain" binding:"required"`
	DestinationChain string `json:"destination_chain" binding:"required"`
	Amount           string `json:"amount" binding:"required"`
	Sender           string `json:"sender" binding:"required"`
	Recipient        string `json:"recipient"`
}

func (s *Server) submitTransfer(c *gin.Context) {
	var body transferBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	recipient := body.Recipient
	if recipient == "" {
		recipient = body.Sender
	}

	t, err := s.orch.Submit(c.Request.Context(), bridge.TransferRequest{
		Route:     chains.Route{Source: body.SourceChain, Destination: body.DestinationChain},
		Amount:    amount,
		Sender:    body.Sender,
		Recipient: recipient,
	})
	if err != nil {
		if ve, ok := bridge.AsValidationError(err); ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  ve.Error(),
				"reason": string(ve.Reason),
			})
			return
		}
		if errors.Is(err, bridge.ErrSubmitInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("Transfer submission failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transfer": t})
}

type estimateBody struct {
	SourceChain      string `json:"source_chain" binding:"required"`
	DestinationChain string `json:"destination_chain" binding:"required"`
	Amount           string `json:"amount" binding:"required"`
}

func (s *Server) estimate(c *gin.Context) {
	var body estimateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || !amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	route := chains.Route{Source: body.SourceChain, Destination: body.DestinationChain}
	est := s.estimator.Estimate(c.Request.Context(), route, amount)
	info := s.registry.RouteInfo(route)
	c.JSON(http.StatusOK, gin.H{
		"estimate":           est,
		"estimated_duration": info.EstimatedDuration.String(),
		"min_transfer":       info.MinTransfer,
	})
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"tracked_transfers": s.reconciler.TrackedCount(),
	})
}
