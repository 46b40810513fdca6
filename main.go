package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// server wires the council, storage and content cache into HTTP handlers.
type server struct {
	cfg     *Config
	council *Council
	store   *ConversationStore
	cache   *ContentCache
	fetcher *http.Client
}

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	client, err := NewChatClient(cfg)
	if err != nil {
		log.Fatalf("Provider error: %v", err)
	}

	s := &server{
		cfg:     cfg,
		council: NewCouncil(cfg, client, log.Default()),
		store:   NewConversationStore(cfg.DataDir),
		cache:   NewContentCache(cfg.ContentCacheTTL),
		fetcher: &http.Client{Timeout: cfg.FetchTimeout},
	}

	router := s.setupRouter()

	log.Printf("Starting LLM Council backend on %s...", cfg.ListenAddr)
	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupRouter builds the gin router with middleware and routes.
func (s *server) setupRouter() *gin.Engine {
	router := gin.Default()

	// Request size limit middleware
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxRequestBodySize)
		c.Next()
	})

	// CORS middleware with dynamic origin validation
	router.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			// In production, use environment-configured origins
			if len(s.cfg.CORSAllowedOrigins) > 0 {
				for _, allowedOrigin := range s.cfg.CORSAllowedOrigins {
					if origin == allowedOrigin {
						return true
					}
				}
				return false
			}
			// In development, allow any localhost/127.0.0.1 origin
			return strings.HasPrefix(origin, "http://localhost") ||
				strings.HasPrefix(origin, "http://127.0.0.1")
		},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	router.GET("/", s.healthCheck)
	router.GET("/api/conversations", s.listConversationsHandler)
	router.POST("/api/conversations", s.createConversationHandler)
	router.GET("/api/conversations/:id", s.getConversationHandler)
	router.POST("/api/conversations/:id/message", s.sendMessageHandler)
	router.POST("/api/conversations/:id/message/stream", s.sendMessageStreamHandler)
	router.POST("/api/fetch-url", s.fetchURLHandler)

	return router
}

// healthCheck returns a simple health check response.
// GET / - Returns service status information.
func (s *server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "LLM Council API",
	})
}

// listConversationsHandler lists all conversations with metadata only.
// GET /api/conversations - Returns array of conversation metadata sorted by date.
func (s *server) listConversationsHandler(c *gin.Context) {
	conversations, err := s.store.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to list conversations: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// createConversationHandler creates a new conversation.
// POST /api/conversations - Generates a new UUID and creates an empty conversation.
func (s *server) createConversationHandler(c *gin.Context) {
	conversation, err := s.store.Create(uuid.New().String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to create conversation: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, conversation)
}

// getConversationHandler gets a specific conversation by ID.
// GET /api/conversations/:id - Returns full conversation including all messages.
func (s *server) getConversationHandler(c *gin.Context) {
	conversation, err := s.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to get conversation: %v", err),
		})
		return
	}

	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Conversation not found",
		})
		return
	}

	c.JSON(http.StatusOK, conversation)
}

// sendMessageHandler sends a message and runs the 3-stage council process.
// POST /api/conversations/:id/message - Runs the full council and returns the
// run result, including any stages that completed before a failure.
// Use sendMessageStreamHandler for the SSE streaming version.
func (s *server) sendMessageHandler(c *gin.Context) {
	conversationID := c.Param("id")

	var request SendMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	conversation, err := s.store.Get(conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to get conversation: %v", err),
		})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Conversation not found",
		})
		return
	}

	isFirstMessage := len(conversation.Messages) == 0

	if err := s.store.AddUserMessage(conversationID, request.Content); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to add user message: %v", err),
		})
		return
	}

	// Generate title if first message (run in background)
	if isFirstMessage {
		go s.generateTitle(conversationID, request.Content, nil)
	}

	ctx := context.Background()
	result := s.council.Run(ctx, request.Content)

	// Persist whatever the run produced; partial results are still useful
	// conversation history.
	if result.Stage1 != nil {
		if err := s.store.AddAssistantMessage(conversationID, result); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": fmt.Sprintf("Failed to add assistant message: %v", err),
			})
			return
		}
	}

	c.JSON(http.StatusOK, result)
}

// generateTitle generates and stores a conversation title. When done is
// non-nil the final title (or "") is sent on it before closing.
func (s *server) generateTitle(conversationID, content string, done chan<- string) {
	if done != nil {
		defer close(done)
	}

	title, err := s.council.GenerateTitle(context.Background(), content)
	if err != nil {
		log.Printf("Failed to generate title: %v", err)
		s.store.UpdateTitle(conversationID, "New Conversation")
		return
	}

	s.store.UpdateTitle(conversationID, title)
	if done != nil {
		done <- title
	}
}

// sendMessageStreamHandler sends a message and streams the 3-stage council process via SSE.
// POST /api/conversations/:id/message/stream - Streams progress events as each stage completes.
// Events: stage1_start, stage1_complete, stage2_start, stage2_complete, stage3_start, stage3_complete, complete.
func (s *server) sendMessageStreamHandler(c *gin.Context) {
	conversationID := c.Param("id")

	var request SendMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	conversation, err := s.store.Get(conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to get conversation: %v", err),
		})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Conversation not found",
		})
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	isFirstMessage := len(conversation.Messages) == 0

	if err := s.store.AddUserMessage(conversationID, request.Content); err != nil {
		sendSSEError(c, fmt.Sprintf("Failed to add user message: %v", err))
		return
	}

	ctx := context.Background()

	// Start title generation in background if first message
	var titleChan chan string
	if isFirstMessage {
		titleChan = make(chan string, 1)
		go s.generateTitle(conversationID, request.Content, titleChan)
	}

	result := &CouncilResult{Query: request.Content}

	// Stage 1
	sendSSEEvent(c, gin.H{"type": "stage1_start"})
	stage1, err := s.council.Stage1CollectResponses(ctx, request.Content)
	if err != nil {
		sendSSEError(c, fmt.Sprintf("Stage 1 failed: %v", err))
		return
	}
	result.Stage1 = stage1
	sendSSEEvent(c, gin.H{"type": "stage1_complete", "data": stage1})

	// Stage 2 - never aborts the run; synthesis can proceed on responses alone
	sendSSEEvent(c, gin.H{"type": "stage2_start"})
	rankings, labelToModel := s.council.Stage2CollectRankings(ctx, request.Content, stage1)
	result.Stage2 = &Stage2Result{
		Rankings:          rankings,
		LabelToModel:      labelToModel,
		AggregateRankings: CalculateAggregateRankings(rankings, labelToModel),
	}
	sendSSEEvent(c, gin.H{
		"type": "stage2_complete",
		"data": rankings,
		"metadata": gin.H{
			"label_to_model":     labelToModel,
			"aggregate_rankings": result.Stage2.AggregateRankings,
		},
	})

	// Stage 3
	sendSSEEvent(c, gin.H{"type": "stage3_start"})
	stage3, err := s.council.Stage3SynthesizeFinal(ctx, request.Content, stage1, rankings)
	if err != nil {
		// Completed stages are still saved before reporting the failure
		s.store.AddAssistantMessage(conversationID, result)
		sendSSEError(c, fmt.Sprintf("Stage 3 failed: %v", err))
		return
	}
	result.Stage3 = stage3
	sendSSEEvent(c, gin.H{"type": "stage3_complete", "data": stage3})

	// Wait for title if it was being generated
	if titleChan != nil {
		if title := <-titleChan; title != "" {
			sendSSEEvent(c, gin.H{"type": "title_complete", "data": gin.H{"title": title}})
		}
	}

	if err := s.store.AddAssistantMessage(conversationID, result); err != nil {
		sendSSEError(c, fmt.Sprintf("Failed to save message: %v", err))
		return
	}

	// Send completion event
	sendSSEEvent(c, gin.H{"type": "complete"})
}

// fetchURLHandler fetches and extracts readable content from a given URL so
// it can be attached to a council question.
// POST /api/fetch-url - Body: {"url": "https://..."}
func (s *server) fetchURLHandler(c *gin.Context) {
	var request struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	if content, ok := s.cache.Get(request.URL); ok {
		c.JSON(http.StatusOK, gin.H{"content": content, "cached": true})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FetchTimeout)
	defer cancel()

	content, err := FetchURLContent(ctx, s.fetcher, request.URL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to fetch URL content: %v", err),
		})
		return
	}

	s.cache.Set(request.URL, content)

	c.JSON(http.StatusOK, gin.H{"content": content, "cached": false})
}

// sendSSEEvent sends a Server-Sent Event.
// Marshals data to JSON and writes as SSE format with "data: " prefix.
func sendSSEEvent(c *gin.Context, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("Failed to marshal SSE event: %v", err)
		return
	}
	c.Writer.WriteString(fmt.Sprintf("data: %s\n\n", string(jsonData)))
	c.Writer.Flush()
}

// sendSSEError sends an error event via SSE.
// Convenience wrapper for sending error-type SSE events.
func sendSSEError(c *gin.Context, message string) {
	sendSSEEvent(c, gin.H{"type": "error", "message": message})
}
