package main

import (
	"context"
	"fmt"
	"log"
	"time"
)

const directorySyncTimeout = 5 * time.Minute

func runSyncDirectory(_ []string) {
	cfg := mustLoadMinimalConfig()
	database := mustOpenDB(cfg)
	defer database.Close()

	dir := newDirectory(cfg, database)
	if dir == nil {
		log.Fatal("sync-directory: SLACK_BOT_TOKEN is not set")
	}
	ctx, cancel := context.WithTimeout(
		context.Background(), directorySyncTimeout,
	)
	defer cancel()

	res, err := dir.Sync(ctx)
	if err != nil {
		log.Fatalf("sync-directory: %v", err)
	}
	fmt.Printf("Synced %d channels and %d users\n", res.Channels, res.Users)
}
