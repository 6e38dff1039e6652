package main

import (
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/pharmasync_backend/config"
	"bitbucket.org/mmdatafocus/pharmasync_backend/models"
)

// The supplier markup table is maintained directly in the database. Run this
// after editing it so running instances stop serving the cached map before its
// TTL expires.
func main() {
	config.ConnectRedisWithRetry()

	if err := models.InvalidateMarkupCache(); err != nil {
		fmt.Fprintf(os.Stderr, "flush markup cache: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("markup cache flushed")
}
