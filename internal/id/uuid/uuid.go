// Package uuid generates run identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator hands out UUIDv7 run IDs. Version 7 embeds the creation time, so
// run IDs and archive records sort by start time.
type Generator struct {
	// newV7 is swapped in tests.
	newV7 func() (uuid.UUID, error)
}

// New returns a Generator backed by uuid.NewV7.
func New() *Generator {
	return &Generator{newV7: uuid.NewV7}
}

// NewRawID implements crawler.RunIDGenerator.
func (g *Generator) NewRawID() (uuid.UUID, error) {
	id, err := g.newV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate run id: %w", err)
	}
	return id, nil
}
