// Package session provides session management for the memory game server.
//
// Each session owns one engine.GameEngine. Sessions live in memory only;
// boards are ephemeral and only the leaderboard is persisted.
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs for easy reference, matched
// case-insensitively. The manager retries on collision.
//
// Concurrency:
//
// The manager is safe for concurrent use. Deleting or expiring a session
// closes its engine so no pending resolve or revert fires afterwards.
//
// Usage:
//
//	manager := session.NewManager()
//
//	sess, err := manager.Create("", engine.NewConfig(4, 1))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Drop sessions idle for more than four hours
//	removed := manager.CleanupExpiredSessions(4 * time.Hour)
package session
