package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"trade-ledger/config"
	"trade-ledger/internal/handlers"
	"trade-ledger/internal/ingest"
	"trade-ledger/internal/services"
	"trade-ledger/internal/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

func main() {
	// Load environment variables
	err := godotenv.Load()
	if err != nil {
		log.Fatal("Error loading .env file")
	}

	// Initialize MongoDB
	config.ConnectDB()
	defer config.DisconnectDB()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Initialize services
	store := storage.NewMongoStore()
	feed := services.NewTradeFeed()
	tradeService := services.NewTradeService(store)
	batchService := services.NewBatchService(store, tradeService, logger)
	authService := services.NewAuthService()

	// Start trade feed hub in goroutine
	go feed.Run()

	// Start local bulk-order polling
	poller := ingest.NewPoller(
		bulkOrderPath(),
		bulkOrderInterval(),
		batchService,
		authService,
		logger,
	)
	go poller.Run(context.Background())

	// Create Gin router
	router := gin.Default()

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Initialize handlers
	tradeHandler := handlers.NewTradeHandler(tradeService, batchService, store, feed)
	authHandler := handlers.NewAuthHandler(authService)

	// Auth middleware helper
	authMiddleware := authHandler.AuthMiddleware()

	// Routes
	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "OK",
			"message": "Trade Ledger API",
			"version": "1.0.0",
			"endpoints": []string{
				"GET /health",
				"GET /ws",
				"POST /api/trades",
				"POST /api/trades/bulk",
				"GET /api/trades",
				"GET /api/portfolio",
				"POST /api/auth/register",
				"POST /api/auth/login",
				"POST /api/auth/logout",
				"GET /api/auth/me",
			},
		})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "OK",
			"message": "Trade Ledger API is running",
		})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		username := c.Query("username")
		if username == "" {
			username = "Anonymous"
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("Failed to upgrade connection: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to upgrade to WebSocket"})
			return
		}

		client := feed.RegisterClient(conn, username)
		log.Printf("WebSocket connection established for user: %s", username)

		// Start client pumps
		go client.WritePump()
		go client.ReadPump()
	})

	// Protected trade routes - require authentication
	router.POST("/api/trades", authMiddleware, tradeHandler.PlaceTrade)
	router.POST("/api/trades/bulk", authMiddleware, tradeHandler.PlaceBulkTrades)
	router.GET("/api/trades", authMiddleware, tradeHandler.GetTrades)
	router.GET("/api/portfolio", authMiddleware, tradeHandler.GetPortfolio)

	// Auth routes
	router.POST("/api/auth/register", authHandler.Register)
	router.POST("/api/auth/login", authHandler.Login)
	router.POST("/api/auth/logout", authHandler.Logout)
	router.GET("/api/auth/me", authMiddleware, authHandler.GetCurrentUser)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	fmt.Printf("🚀 Trade Ledger Backend running on port %s\n", port)
	fmt.Printf("📊 API available at http://localhost:%s\n", port)
	fmt.Printf("🔌 WebSocket available at ws://localhost:%s/ws\n", port)
	fmt.Printf("🔐 Auth available at http://localhost:%s/api/auth\n", port)
	router.Run(":" + port)
}

func bulkOrderPath() string {
	if path := os.Getenv("BULK_ORDER_CSV"); path != "" {
		return path
	}
	cwd, _ := os.Getwd()
	return cwd + "/bulk_order_local.csv"
}

func bulkOrderInterval() time.Duration {
	raw := os.Getenv("BULK_ORDER_INTERVAL")
	if raw == "" {
		return time.Minute
	}
	interval, err := time.ParseDuration(raw)
	if err != nil || interval <= 0 {
		log.Printf("Invalid BULK_ORDER_INTERVAL %q, using 1m", raw)
		return time.Minute
	}
	return interval
}
