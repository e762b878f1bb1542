package connection

import (
	"errors"
	"time"

	"github.com/rickgao/quotefeed/internal/model"
)

// Errors
var (
	ErrSendBufferFull = errors.New("send buffer full")
)

// MessageTypePrice is the only message type sent to subscribers.
const MessageTypePrice = "price"

// PriceMessage is the wire form of a price event.
type PriceMessage struct {
	Type   string  `json:"type"`
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Time   string  `json:"time"` // UTC, model.TimeLayout
}

// NewPriceMessage converts an event to its wire form.
func NewPriceMessage(ev model.Event) PriceMessage {
	return PriceMessage{
		Type:   MessageTypePrice,
		Symbol: ev.Symbol,
		Price:  ev.Price,
		Time:   ev.Time.UTC().Format(model.TimeLayout),
	}
}

// Config configures a subscriber connection.
type Config struct {
	SendBuffer   int           // Queued messages before drops start
	WriteTimeout time.Duration // Write deadline for each frame
	PingInterval time.Duration // How often to ping the peer
	PongTimeout  time.Duration // Max time without a pong before the connection is stale
	ReadLimit    int64         // Max inbound frame size
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SendBuffer:   64,
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
		PongTimeout:  60 * time.Second,
		ReadLimit:    4096,
	}
}
