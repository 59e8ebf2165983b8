// Package storage keeps an append-only audit log of administrative actions and
// weekly leaderboard snapshots. Study state itself lives in memory only.
package storage
