package app

import (
	"context"
	"database/sql"
	"fmt"

	"shiksharaha/internal/db"
	"shiksharaha/internal/migrate"
	"shiksharaha/internal/store"
)

// Open prepares a workspace: ensures the directory, opens the database, runs
// migrations and returns a ready store. The caller owns the connection.
func Open(workspace string) (*sql.DB, *store.Store, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return conn, store.New(conn), nil
}

// SeedCommunity inserts starter discussions when the community is empty, so a
// fresh workspace is not a blank page.
func SeedCommunity(ctx context.Context, s *store.Store) error {
	existing, err := s.ListDiscussions(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	starters := []string{
		"How do you run stakeholder workshops remotely?",
		"Sharing our logframe for a rural literacy program",
		"Monitoring indicators that actually get collected",
	}
	for _, title := range starters {
		if _, err := s.CreateDiscussion(ctx, title); err != nil {
			return err
		}
	}
	return nil
}
