package gen

import (
	"fmt"

	"smallbiznis-crm/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("snowflake", fx.Provide(NewSnowflakeNode))

// NewSnowflakeNode builds the ID generator for this process; NODE_ID must be unique per replica.
func NewSnowflakeNode(cfg *config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("init snowflake node %d: %w", cfg.NodeID, err)
	}
	return node, nil
}
