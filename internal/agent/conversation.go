package agent

import (
	"sync"

	"github.com/dshills/gorag/pkg/types"
)

// Conversation is the message memory of one chat session. It is safe for
// concurrent use.
type Conversation struct {
	mu       sync.Mutex
	messages []types.Message
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Append adds messages in order.
func (c *Conversation) Append(msgs ...types.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msgs...)
}

// Recent returns a copy of the last n messages, oldest first.
func (c *Conversation) Recent(n int) []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 {
		return nil
	}
	start := len(c.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]types.Message, len(c.messages)-start)
	copy(out, c.messages[start:])
	return out
}

// Len returns the number of stored messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Reset forgets all messages.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}
