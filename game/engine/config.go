package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/wricardo/pokemon-memory-game/game/leaderboard"
)

// ErrInvalidConfig is wrapped by every configuration validation failure
var ErrInvalidConfig = errors.New("config validation")

// ValidateGameConfig validates a game configuration for correctness and playability
func ValidateGameConfig(config *GameConfig) error {
	if config == nil {
		return fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}

	// Validate grid size
	if config.GridSize <= 0 {
		return fmt.Errorf("%w: grid_size must be positive, got %d", ErrInvalidConfig, config.GridSize)
	}
	if config.GridSize%2 != 0 {
		return fmt.Errorf("%w: grid_size must be even, got %d", ErrInvalidConfig, config.GridSize)
	}
	if config.GridSize < MinGridSize || config.GridSize > MaxGridSize {
		return fmt.Errorf("%w: grid_size must be between %d and %d, got %d", ErrInvalidConfig, MinGridSize, MaxGridSize, config.GridSize)
	}

	// Validate players
	if config.PlayerCount < MinPlayers || config.PlayerCount > MaxPlayers {
		return fmt.Errorf("%w: player_count must be between %d and %d, got %d", ErrInvalidConfig, MinPlayers, MaxPlayers, config.PlayerCount)
	}
	if len(config.PlayerNames) > config.PlayerCount {
		return fmt.Errorf("%w: %d player names given for %d players", ErrInvalidConfig, len(config.PlayerNames), config.PlayerCount)
	}

	if config.PowerUpChance < 0 || config.PowerUpChance > 1 {
		return fmt.Errorf("%w: power_up_chance must be between 0 and 1, got %g", ErrInvalidConfig, config.PowerUpChance)
	}

	t := config.Timings
	if t.ResolveDelayMs < 0 || t.MismatchDelayMs < 0 || t.PowerUpRevealMs < 0 {
		return fmt.Errorf("%w: timings must not be negative", ErrInvalidConfig)
	}

	return nil
}

// NewConfig returns a configuration with default rules for the given board
func NewConfig(gridSize, playerCount int) *GameConfig {
	return &GameConfig{
		Name:          strings.ToLower(DifficultyTier(gridSize)),
		Description:   fmt.Sprintf("%dx%d board, %d player(s)", gridSize, gridSize, playerCount),
		GridSize:      gridSize,
		PlayerCount:   playerCount,
		PowerUpChance: DefaultPowerUpChance,
	}
}

// Clone returns a deep copy of the configuration
func (c *GameConfig) Clone() *GameConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.PlayerNames = append([]string(nil), c.PlayerNames...)
	return &out
}

// LoadGameConfig loads and validates a game configuration from a JSON file
func LoadGameConfig(filename string) (*GameConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var config GameConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := ValidateGameConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// DifficultyTier returns the label for a grid size
func DifficultyTier(gridSize int) string {
	return leaderboard.DifficultyTier(gridSize)
}

// TotalPairs returns the number of pairs on a gridSize x gridSize board
func TotalPairs(gridSize int) int {
	return gridSize * gridSize / 2
}
