// Command validate provides a small CLI that validates the difficulty preset
// JSON files in the ../configs directory (or the directory given as the
// first argument). It checks:
//   - JSON structure, with unknown fields rejected
//   - The rules the game engine enforces (even grid size in range, 1-2 players,
//     player names, power-up chance, non-negative timings)
//   - That the board fits in the Pokémon face pool
//   - Timings short enough to keep the game playable
//   - Unique preset names across the directory
//
// Power-up chances on boards too small to carry a power-up are reported as
// warnings; they do not fail validation.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/pokemon-memory-game/game/assets"
	"github.com/wricardo/pokemon-memory-game/game/engine"
)

// MaxDelayMs is the longest delay a preset may configure
const MaxDelayMs = 10000

// ValidationResult captures the outcome of validating a single file.
// Errors fail validation; Info lines are printed for valid files and
// Warnings for every file.
type ValidationResult struct {
	File     string
	Name     string
	Valid    bool
	Errors   []string
	Warnings []string
	Info     []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single preset file
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(filePath),
		Valid: true,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	var config engine.GameConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&config); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}
	result.Name = config.Name

	if strings.TrimSpace(config.Name) == "" {
		result.fail("name is required")
	}

	if err := engine.ValidateGameConfig(&config); err != nil {
		result.fail("%s", strings.TrimPrefix(err.Error(), engine.ErrInvalidConfig.Error()+": "))
		return result
	}

	pairs := engine.TotalPairs(config.GridSize)
	if pairs > assets.MaxPokemonID {
		result.fail("%d pairs need more faces than the %d available", pairs, assets.MaxPokemonID)
	}

	delays := map[string]int{
		"resolve_delay_ms":   config.Timings.ResolveDelayMs,
		"mismatch_delay_ms":  config.Timings.MismatchDelayMs,
		"power_up_reveal_ms": config.Timings.PowerUpRevealMs,
	}
	for _, key := range []string{"resolve_delay_ms", "mismatch_delay_ms", "power_up_reveal_ms"} {
		if delays[key] > MaxDelayMs {
			result.fail("%s must be at most %d, got %d", key, MaxDelayMs, delays[key])
		}
	}

	if config.PowerUpChance > 0 && config.GridSize*config.GridSize <= engine.PowerUpMinCards {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("power_up_chance is ignored on a %dx%d board", config.GridSize, config.GridSize))
	}
	if strings.TrimSpace(config.Description) == "" {
		result.Warnings = append(result.Warnings, "description is empty")
	}

	if result.Valid {
		result.Info = append(result.Info,
			fmt.Sprintf("✓ Name: %s", config.Name),
			fmt.Sprintf("✓ Grid: %dx%d (%s, %d pairs)", config.GridSize, config.GridSize, engine.DifficultyTier(config.GridSize), pairs),
			fmt.Sprintf("✓ Players: %d", config.PlayerCount),
			fmt.Sprintf("✓ Power-up chance: %.0f%%", config.PowerUpChance*100),
			fmt.Sprintf("✓ Delays: resolve %s, mismatch %s, power-up %s",
				config.Timings.ResolveDelay(), config.Timings.MismatchDelay(), config.Timings.PowerUpReveal()),
		)
	}

	return result
}

// validateDir validates every *.json file in dir and flags preset names
// used by more than one file
func validateDir(dir string) ([]ValidationResult, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no preset files in %s", dir)
	}

	results := make([]ValidationResult, 0, len(files))
	owners := make(map[string]string)
	for _, file := range files {
		result := validateConfig(file)
		if result.Name != "" {
			key := strings.ToLower(result.Name)
			if first, ok := owners[key]; ok {
				result.fail("name %q is already used by %s", result.Name, first)
			} else {
				owners[key] = result.File
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// main validates the preset directory, printing a concise report and
// exiting with non-zero status if any preset is invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	results, err := validateDir(configDir)
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	for _, result := range results {
		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Info {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Println("  ❌ " + err)
			}
		}
		for _, warning := range result.Warnings {
			fmt.Println("  ⚠️  " + warning)
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
