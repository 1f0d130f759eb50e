package services

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// TradeEvent is what the feed pushes to connected clients after a trade
// commits.
type TradeEvent struct {
	Actor     string    `json:"actor"`
	Symbol    string    `json:"symbol"`
	Action    string    `json:"action"`
	Quantity  int       `json:"quantity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// TradeFeed fans executed-trade confirmations out to WebSocket clients.
type TradeFeed struct {
	clients    map[*FeedClient]bool
	broadcast  chan TradeEvent
	register   chan *FeedClient
	unregister chan *FeedClient
}

type FeedClient struct {
	feed     *TradeFeed
	conn     *websocket.Conn
	send     chan []byte
	username string
}

func NewTradeFeed() *TradeFeed {
	return &TradeFeed{
		clients:    make(map[*FeedClient]bool),
		broadcast:  make(chan TradeEvent),
		register:   make(chan *FeedClient),
		unregister: make(chan *FeedClient),
	}
}

func (f *TradeFeed) Run() {
	for {
		select {
		case client := <-f.register:
			f.clients[client] = true
			log.Printf("Feed client connected. Total clients: %d", len(f.clients))

		case client := <-f.unregister:
			if _, ok := f.clients[client]; ok {
				delete(f.clients, client)
				close(client.send)
				log.Printf("Feed client disconnected. Total clients: %d", len(f.clients))
			}

		case event := <-f.broadcast:
			message, err := json.Marshal(event)
			if err != nil {
				log.Printf("Error marshaling trade event: %v", err)
				continue
			}

			for client := range f.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(f.clients, client)
				}
			}
		}
	}
}

func (f *TradeFeed) BroadcastTrade(event TradeEvent) {
	f.broadcast <- event
}

func (f *TradeFeed) RegisterClient(conn *websocket.Conn, username string) *FeedClient {
	client := &FeedClient{
		feed:     f,
		conn:     conn,
		send:     make(chan []byte, 256),
		username: username,
	}
	f.register <- client
	return client
}

func (c *FeedClient) ReadPump() {
	defer func() {
		c.feed.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

func (c *FeedClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
