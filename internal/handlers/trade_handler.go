package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"trade-ledger/internal/ingest"
	"trade-ledger/internal/models"
	"trade-ledger/internal/services"
)

type TradeHandler struct {
	tradeService *services.TradeService
	batchService *services.BatchService
	positions    services.PositionSource
	feed         *services.TradeFeed
}

func NewTradeHandler(tradeService *services.TradeService, batchService *services.BatchService, positions services.PositionSource, feed *services.TradeFeed) *TradeHandler {
	return &TradeHandler{
		tradeService: tradeService,
		batchService: batchService,
		positions:    positions,
		feed:         feed,
	}
}

// PlaceTrade validates and executes one order for the authenticated user.
// Validation failures come back as the complete field→messages map so the
// caller can fix everything in one round-trip.
func (h *TradeHandler) PlaceTrade(c *gin.Context) {
	username, exists := c.Get("username")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var raw models.RawOrder
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	validator := services.NewTradeValidator(h.positions, username.(string), raw)
	ok, err := validator.IsValid(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, validator.Errors())
		return
	}

	order := validator.CleanedOrder()
	msg, err := h.tradeService.ExecuteTrade(c.Request.Context(), order)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.feed.BroadcastTrade(services.TradeEvent{
		Actor:     order.Owner,
		Symbol:    order.Symbol,
		Action:    order.Action,
		Quantity:  order.Quantity,
		Message:   msg,
		Timestamp: time.Now(),
	})

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// PlaceBulkTrades takes a CSV upload and runs it through the atomic batch
// pipeline: every row must validate before anything executes, and the
// execution itself is all-or-nothing.
func (h *TradeHandler) PlaceBulkTrades(c *gin.Context) {
	username, exists := c.Get("username")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	if err := ingest.CheckFilename(fileHeader.Filename); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	rows, err := ingest.ParseOrders(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The upload belongs to the authenticated user; any username column
	// in the file is ignored.
	batchRows := make([]services.BatchRow, len(rows))
	for i, row := range rows {
		batchRows[i] = services.BatchRow{Owner: username.(string), Order: row.Order}
	}

	valid, rowErrs, err := h.batchService.ValidateBatch(c.Request.Context(), batchRows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(rowErrs) > 0 {
		c.JSON(http.StatusBadRequest, rowErrs)
		return
	}

	executed, err := h.batchService.ExecuteBatch(c.Request.Context(), valid)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Write failure " + err.Error()})
		return
	}

	for i, order := range valid {
		h.feed.BroadcastTrade(services.TradeEvent{
			Actor:     order.Owner,
			Symbol:    order.Symbol,
			Action:    order.Action,
			Quantity:  order.Quantity,
			Message:   executed[i],
			Timestamp: time.Now(),
		})
	}

	c.JSON(http.StatusCreated, executed)
}

// GetPortfolio returns every position the authenticated user holds.
func (h *TradeHandler) GetPortfolio(c *gin.Context) {
	username, exists := c.Get("username")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	portfolio, err := h.tradeService.GetPortfolio(c.Request.Context(), username.(string))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch portfolio: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"portfolio": portfolio})
}

// GetTrades returns the authenticated user's trade history, newest first.
func (h *TradeHandler) GetTrades(c *gin.Context) {
	username, exists := c.Get("username")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	trades, err := h.tradeService.GetTradeHistory(c.Request.Context(), username.(string))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch trades: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"trades": trades})
}
