// Package engine provides the core game logic for the Pokémon memory match game.
//
// The engine package implements the game mechanics including:
//   - Board construction from a list of card faces (two copies per face, shuffled)
//   - Turn handling for one or two players
//   - Delayed pair resolution, mismatch reverts and power-up peeks
//   - Scoring, streaks, combos and end-of-game bonuses
//   - Configuration validation
//
// Core Types:
//
// GameEngine owns a single board and is the only writer of its state. Every
// mutation produces a GameState snapshot which is handed to the listener
// registered with OnChange. Timed transitions go through a Clock, so tests
// drive them with a ManualClock instead of sleeping.
//
// Usage:
//
//	config := engine.NewConfig(4, 1)
//	gameEngine, err := engine.NewEngine(config, engine.WithRecorder(record))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameEngine.OnChange(func(state *engine.GameState, events []engine.Event) {
//		// push state to clients
//	})
//	if err := gameEngine.Start(faces); err != nil {
//		log.Fatal(err)
//	}
//	state, accepted := gameEngine.Flip(3)
//
// Game Rules:
//
// Players flip two cards per turn. A matching pair stays face up and scores
// a point; a mismatch is hidden again and the turn passes to the next player.
// The game is won when every pair is matched. A solo player earns a perfect
// bonus for finishing in the minimum number of moves and a speed bonus for
// finishing in under a minute.
package engine
