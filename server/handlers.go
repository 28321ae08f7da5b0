package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schemamapper/analyzer"
	"schemamapper/feedback"
	"schemamapper/preprocessing"
	"schemamapper/schema"
)

// maxUploadBytes лимит размера загружаемого файла
const maxUploadBytes = 50 << 20

// handleAnalyze принимает табличный файл и прогоняет его через конвейер.
// Ответ содержит сессию подтверждения и сводку стратегии маппинга
func (s *Server) handleAnalyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	userID := c.PostForm("user_id")
	if userID == "" {
		userID = "anonymous"
	}

	result, err := s.pipeline.Analyze(c.Request.Context(), userID, header.Filename, file)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":   result.Session.ID,
		"file_name":    result.Session.FileName,
		"auto_applied": result.Session.AutoApplied,
		"dropdowns":    result.Session.Dropdowns,
		"kb_resolved":  result.KBResolved,
		"escalated":    result.Escalated,
		"strategy": gin.H{
			"category_counts":     result.Strategy.CategoryCounts,
			"action_counts":       result.Strategy.ActionCounts,
			"immediate_analytics": result.Strategy.ImmediateAnalytics,
			"potential_analytics": result.Strategy.PotentialAnalytics,
		},
	})
}

// handleGetSession возвращает состояние сессии подтверждения
func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.pipeline.Session(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":   session.ID,
		"file_name":    session.FileName,
		"auto_applied": session.AutoApplied,
		"dropdowns":    session.Dropdowns,
		"selections":   session.Selections(),
		"complete":     session.IsComplete(),
	})
}

// selectRequest тело запроса выбора пользователя
type selectRequest struct {
	Header   string `json:"header" binding:"required"`
	Selected string `json:"selected"`
	Skip     bool   `json:"skip"`
}

// handleSelect записывает выбор пользователя по колонке
func (s *Server) handleSelect(c *gin.Context) {
	session, err := s.pipeline.Session(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Skip {
		if err := session.SkipColumn(req.Header); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	} else {
		canonical, ok := schema.Parse(req.Selected)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown canonical type: " + req.Selected})
			return
		}
		if err := session.RecordSelection(req.Header, canonical); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"complete":   session.IsComplete(),
	})
}

// handleFinalize завершает сессию и возвращает итоговый маппинг
func (s *Server) handleFinalize(c *gin.Context) {
	final, err := s.pipeline.Finalize(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, final)
}

// handleStats возвращает анонимизированную статистику базы знаний и кэшей
func (s *Server) handleStats(c *gin.Context) {
	aggregates, err := s.kb.Aggregates()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response := gin.H{
		"knowledge_base":    aggregates,
		"pending_retries":   s.kb.PendingRetries(),
		"unresolved_writes": len(s.kb.UnresolvedWrites()),
	}
	if s.escalator != nil {
		response["escalation_cache"] = s.escalator.CacheStats()
	}

	c.JSON(http.StatusOK, response)
}

// handleFeedbackReport строит отчет обратной связи с предложениями
// порогов и весов
func (s *Server) handleFeedbackReport(c *gin.Context) {
	rule, fuzzy, typ := s.config.Analyzer.NormalizedWeights()
	report, err := s.feedback.BuildReport(
		s.config.Evaluator.AutoMapThreshold,
		s.config.Evaluator.SuggestedMin,
		map[string]float64{
			analyzer.MethodRule:  rule,
			analyzer.MethodFuzzy: fuzzy,
			analyzer.MethodType:  typ,
		},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// handleAdoptProposal явно принимает предложение порога
func (s *Server) handleAdoptProposal(c *gin.Context) {
	var proposal feedback.Proposal
	if err := c.ShouldBindJSON(&proposal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if proposal.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "proposal name is required"})
		return
	}

	if err := s.feedback.Adopt(proposal); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"adopted": proposal.Name, "value": proposal.Proposed})
}

// handleConsensus возвращает межпользовательский консенсус по заголовку:
// сколько разных пользователей подтвердили каждый канонический тип
func (s *Server) handleConsensus(c *gin.Context) {
	header := c.Query("header")
	if header == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "header query parameter is required"})
		return
	}

	normalized := preprocessing.NewHeaderNormalizer().Normalize(header)
	consensus, err := s.kb.HeaderConsensus(normalized)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"normalized_header": normalized,
		"consensus":         consensus,
	})
}

// handleDecay запускает проход устаревания записей базы знаний
func (s *Server) handleDecay(c *gin.Context) {
	decayed, err := s.kb.ApplyDecay()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"decayed": decayed})
}

// handleHealth проверка живости сервиса
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"escalation_enabled": s.escalator != nil,
	})
}
