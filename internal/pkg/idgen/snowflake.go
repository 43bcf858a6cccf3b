package idgen

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node     *snowflake.Node
	initOnce sync.Once
)

// Initialize sets up the Snowflake ID generator with a node ID.
// Safe to call more than once; only the first call takes effect.
func Initialize(nodeID int64) error {
	var err error
	initOnce.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// GenerateID generates a new Snowflake ID as a string
func GenerateID() string {
	if node == nil {
		// Fall back to node 1 when the caller never initialized
		_ = Initialize(1)
	}
	return node.Generate().String()
}
