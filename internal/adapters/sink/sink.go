// Package sink publishes successful quote snapshots to outbound stores.
// Nothing here is read back by the controller.
package sink

import (
	"encoding/json"

	"github.com/FrancoRivero2025/quote-average/internal/domain"
)

// Sink is a named publisher. The name labels publish error metrics.
type Sink interface {
	domain.Publisher
	Name() string
}

type closer interface {
	Close() error
}

// CloseAll closes every sink that holds a connection and returns the first
// error.
func CloseAll(sinks ...Sink) error {
	var first error
	for _, s := range sinks {
		if c, ok := s.(closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

func encode(qs domain.QuoteSet) ([]byte, error) {
	return json.Marshal(qs)
}
