package main

import (
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/pharmasync_backend/utils"
)

// Prints the bcrypt hash of a service token, for SYNC_API_TOKEN_HASH.
func main() {
	if len(os.Args) != 2 || os.Args[1] == "" {
		fmt.Fprintln(os.Stderr, "usage: token-hash <token>")
		os.Exit(2)
	}

	hash, err := utils.HashToken(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(hash))
}
