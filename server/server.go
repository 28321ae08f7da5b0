package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"schemamapper/analyzer"
	"schemamapper/confirmation"
	"schemamapper/escalation"
	"schemamapper/evaluator"
	"schemamapper/feedback"
	"schemamapper/internal/config"
	"schemamapper/knowledge"
	"schemamapper/pipeline"
	"schemamapper/server/middleware"
)

// Server HTTP-сервер маппинга колонок
type Server struct {
	config    *config.Config
	pipeline  *pipeline.Pipeline
	kb        *knowledge.KnowledgeBase
	feedback  *feedback.Analyzer
	escalator *escalation.Escalator

	httpServer     *http.Server
	httpHandler    http.Handler
	handlerOnce    sync.Once
	handlerInitErr error
}

// NewServer собирает сервер и все стадии конвейера из конфигурации
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	kb, err := knowledge.Open(cfg.Knowledge)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}

	localAnalyzer, err := analyzer.NewLocalAnalyzer(cfg.Analyzer)
	if err != nil {
		kb.Close()
		return nil, err
	}

	confidenceEvaluator, err := evaluator.NewEvaluator(cfg.Evaluator)
	if err != nil {
		kb.Close()
		return nil, err
	}

	// Без API-ключа эскалация отключена: конвейер работает на локальном анализе
	var escalator *escalation.Escalator
	if cfg.EscalationEnabled() {
		escalator, err = escalation.NewEscalator(cfg.Escalation)
		if err != nil {
			kb.Close()
			return nil, err
		}
	} else {
		log.Printf("[Server] LLM escalation disabled: no API key configured")
	}

	sessionStore := confirmation.NewInMemorySessionStore(cfg.SessionTTL, cfg.SessionCleanupInterval)
	engine := confirmation.NewEngine(sessionStore)

	mappingPipeline, err := pipeline.New(cfg.Pipeline, localAnalyzer, confidenceEvaluator, escalator, engine, kb)
	if err != nil {
		kb.Close()
		return nil, err
	}

	feedbackAnalyzer, err := feedback.NewAnalyzer(cfg.Feedback, kb)
	if err != nil {
		kb.Close()
		return nil, err
	}

	return &Server{
		config:    cfg,
		pipeline:  mappingPipeline,
		kb:        kb,
		feedback:  feedbackAnalyzer,
		escalator: escalator,
	}, nil
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	handler, err := s.ensureHTTPHandler()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting HTTP server on %s...", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Shutdown корректно останавливает сервер и закрывает базу знаний
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("[Server] HTTP shutdown error: %v", err)
		}
	}
	return s.kb.Close()
}

// ServeHTTP реализует http.Handler для тестов
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler, err := s.ensureHTTPHandler()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	handler.ServeHTTP(w, r)
}

func (s *Server) ensureHTTPHandler() (http.Handler, error) {
	s.handlerOnce.Do(func() {
		s.httpHandler, s.handlerInitErr = s.buildHTTPHandler()
	})
	return s.httpHandler, s.handlerInitErr
}

func (s *Server) buildHTTPHandler() (http.Handler, error) {
	if ginMode := os.Getenv("GIN_MODE"); ginMode == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.GinRequestIDMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.GinGzipMiddleware())
	router.Use(middleware.GinLoggerMiddleware())
	router.Use(gin.Recovery())

	s.registerRoutes(router)

	return router, nil
}

// registerRoutes регистрирует все маршруты приложения
func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/health", s.handleHealth)

	api := router.Group("/api/v1")

	mapping := api.Group("/mapping")
	{
		mapping.POST("/analyze", s.handleAnalyze)
		mapping.GET("/stats", s.handleStats)

		sessions := mapping.Group("/sessions")
		{
			sessions.GET("/:id", s.handleGetSession)
			sessions.POST("/:id/select", s.handleSelect)
			sessions.POST("/:id/finalize", s.handleFinalize)
		}
	}

	fb := api.Group("/feedback")
	{
		fb.GET("/report", s.handleFeedbackReport)
		fb.POST("/adopt", s.handleAdoptProposal)
	}

	kbGroup := api.Group("/knowledge")
	{
		kbGroup.POST("/decay", s.handleDecay)
		kbGroup.GET("/consensus", s.handleConsensus)
	}
}
