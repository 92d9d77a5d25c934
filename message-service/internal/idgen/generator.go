// Package idgen produces identifiers for messages, notifications and edit
// history rows. Every scheme fits the varchar(36) id columns.
package idgen

import (
	"fmt"
	"strings"

	"github.com/weiawesome/wes-io-live/message-service/internal/config"
)

// MaxLength is the width of every id column.
const MaxLength = 36

const (
	StrategyUUID      = "uuid"
	StrategyULID      = "ulid"
	StrategyKSUID     = "ksuid"
	StrategyNanoID    = "nanoid"
	StrategyCUID2     = "cuid2"
	StrategySnowflake = "snowflake"
)

// Generator issues and recognises ids of one scheme.
type Generator interface {
	Generate() (string, error)
	Validate(id string) (bool, string) // (valid, reason)
}

// New builds the generator selected by cfg.Strategy.
func New(cfg config.IDConfig) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Strategy)) {
	case "", StrategyUUID:
		return NewUUIDGenerator(), nil
	case StrategyULID:
		return NewULIDGenerator(), nil
	case StrategyKSUID:
		return NewKSUIDGenerator(), nil
	case StrategyNanoID:
		return NewNanoIDGenerator(cfg.NanoID.Size, cfg.NanoID.Alphabet)
	case StrategyCUID2:
		return NewCUID2Generator(cfg.CUID2.Length)
	case StrategySnowflake:
		return NewSnowflakeGenerator(cfg.Snowflake.MachineID, cfg.Snowflake.Epoch)
	default:
		return nil, fmt.Errorf("unknown id strategy %q", cfg.Strategy)
	}
}
