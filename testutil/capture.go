package testutil

import (
	"sync"

	"github.com/c360/docstreams/document"
	"github.com/c360/docstreams/node"
)

// Capture is a consumer that records everything pushed into it. Err, when
// set, is returned from every Consume call. Capture is safe for concurrent
// use so tests can observe sources that emit from their own goroutines.
type Capture struct {
	node.Emitter
	Err error

	mu     sync.Mutex
	values []any
}

// NewCapture creates a Capture with the given node name.
func NewCapture(name string) *Capture {
	return &Capture{Emitter: node.NewEmitter(name)}
}

// Consume implements node.Consumer.
func (c *Capture) Consume(v any) error {
	c.mu.Lock()
	c.values = append(c.values, v)
	c.mu.Unlock()
	return c.Err
}

// Values returns a snapshot of everything captured so far, in order.
func (c *Capture) Values() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.values))
	copy(out, c.values)
	return out
}

// Documents returns the captured values that are documents, in order.
func (c *Capture) Documents() []document.Document {
	var docs []document.Document
	for _, v := range c.Values() {
		if d, ok := v.(document.Document); ok {
			docs = append(docs, d)
		}
	}
	return docs
}

// Kinds returns the kind sequence of the captured documents.
func (c *Capture) Kinds() []document.Kind {
	docs := c.Documents()
	kinds := make([]document.Kind, len(docs))
	for i, d := range docs {
		kinds[i] = d.Kind()
	}
	return kinds
}
