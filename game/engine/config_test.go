package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateGameConfig_ValidConfig(t *testing.T) {
	for _, grid := range []int{2, 4, 6, 8, 12} {
		for players := MinPlayers; players <= MaxPlayers; players++ {
			if err := ValidateGameConfig(NewConfig(grid, players)); err != nil {
				t.Errorf("Expected %dx%d with %d players to be valid, got %v", grid, grid, players, err)
			}
		}
	}
}

func TestValidateGameConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*GameConfig)
		message string
	}{
		{"zero grid", func(c *GameConfig) { c.GridSize = 0 }, "must be positive"},
		{"negative grid", func(c *GameConfig) { c.GridSize = -4 }, "must be positive"},
		{"odd grid", func(c *GameConfig) { c.GridSize = 5 }, "must be even"},
		{"grid too large", func(c *GameConfig) { c.GridSize = 14 }, "between 2 and 12"},
		{"no players", func(c *GameConfig) { c.PlayerCount = 0 }, "player_count"},
		{"three players", func(c *GameConfig) { c.PlayerCount = 3 }, "player_count"},
		{"too many names", func(c *GameConfig) { c.PlayerNames = []string{"a", "b"} }, "player names"},
		{"negative chance", func(c *GameConfig) { c.PowerUpChance = -0.1 }, "power_up_chance"},
		{"chance above one", func(c *GameConfig) { c.PowerUpChance = 1.5 }, "power_up_chance"},
		{"negative timing", func(c *GameConfig) { c.Timings.ResolveDelayMs = -1 }, "timings"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := NewConfig(4, 1)
			test.modify(config)
			err := ValidateGameConfig(config)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), test.message) {
				t.Errorf("Expected error containing %q, got %v", test.message, err)
			}
		})
	}

	if err := ValidateGameConfig(nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for nil config, got %v", err)
	}
}

func TestNewConfig(t *testing.T) {
	config := NewConfig(6, 2)
	if config.Name != "medium" {
		t.Errorf("Expected name medium, got %s", config.Name)
	}
	if config.PowerUpChance != DefaultPowerUpChance {
		t.Errorf("Expected default power-up chance, got %g", config.PowerUpChance)
	}
	if config.Timings.ResolveDelay() != DefaultResolveDelay {
		t.Errorf("Expected default resolve delay, got %v", config.Timings.ResolveDelay())
	}
}

func TestGameConfig_Clone(t *testing.T) {
	config := NewConfig(4, 2)
	config.PlayerNames = []string{"Ash"}
	clone := config.Clone()
	clone.PlayerNames[0] = "Gary"
	clone.GridSize = 8

	if config.PlayerNames[0] != "Ash" || config.GridSize != 4 {
		t.Error("Expected clone to be independent of the original")
	}
}

func TestLoadGameConfig(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.json")
	content := `{"name":"duel","description":"two players","grid_size":6,"player_count":2,"power_up_chance":0.1,"timings":{"resolve_delay_ms":500}}`
	if err := os.WriteFile(valid, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := LoadGameConfig(valid)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if config.GridSize != 6 || config.PlayerCount != 2 {
		t.Errorf("Unexpected config: %+v", config)
	}
	if config.Timings.ResolveDelay().Milliseconds() != 500 {
		t.Errorf("Expected resolve delay 500ms, got %v", config.Timings.ResolveDelay())
	}
	if config.Timings.MismatchDelay() != DefaultMismatchDelay {
		t.Errorf("Expected default mismatch delay, got %v", config.Timings.MismatchDelay())
	}

	invalid := filepath.Join(dir, "invalid.json")
	if err := os.WriteFile(invalid, []byte(`{"name":"bad","grid_size":5,"player_count":1}`), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadGameConfig(invalid); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}

	broken := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(broken, []byte(`{not json`), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadGameConfig(broken); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for malformed JSON, got %v", err)
	}

	if _, err := LoadGameConfig(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestDifficultyTierAndPairs(t *testing.T) {
	tests := []struct {
		grid  int
		tier  string
		pairs int
	}{
		{2, "Custom", 2},
		{4, "Easy", 8},
		{6, "Medium", 18},
		{8, "Hard", 32},
		{10, "Custom", 50},
	}
	for _, test := range tests {
		if got := DifficultyTier(test.grid); got != test.tier {
			t.Errorf("DifficultyTier(%d): expected %s, got %s", test.grid, test.tier, got)
		}
		if got := TotalPairs(test.grid); got != test.pairs {
			t.Errorf("TotalPairs(%d): expected %d, got %d", test.grid, test.pairs, got)
		}
	}
}
