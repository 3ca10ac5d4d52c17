// Package leaderboard keeps the ranked list of finished games.
//
// Entries are ordered by grid size ascending, then score descending, then
// elapsed time ascending, then move count ascending. Each grid size keeps
// its best MaxEntriesPerTier entries. The whole list is stored as one JSON
// blob under a fixed key in a BlobStore, so the same ranking works on top
// of a directory, a Postgres table or memory.
//
// Storage failures never break a game: a missing or corrupt blob loads as
// an empty leaderboard, and a failed save keeps the in-memory list.
package leaderboard
