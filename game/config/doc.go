// Package config provides configuration management for the memory game server.
//
// The config package handles two kinds of configuration:
//   - Difficulty presets: JSON files in the configs directory, each an
//     engine.GameConfig (grid size, player count, power-up chance, timings)
//   - Server settings: listener, logging, leaderboard backend, asset
//     provider and rate limits, loaded with viper
//
// Presets:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Load a specific preset
//	hard, err := manager.LoadConfig("hard")
//
//	// easy.json, or a built-in 4x4 board when it is missing
//	def := manager.GetDefault()
//
// Settings:
//
// LoadSettings applies defaults, then an optional YAML or JSON file, then
// MEMORY_* environment variables (MEMORY_SERVER_PORT,
// MEMORY_LEADERBOARD_BACKEND, ...), and validates the result with
// go-playground/validator struct tags.
package config
