// dotbot: repository introspection for .bot-managed repositories.
//
// Usage:
//
//	dotbot serve              # Start MCP server (stdio transport)
//	dotbot projects           # List discovered projects
//	dotbot health -l comprehensive
//	dotbot --help
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/HendryAvila/dotbot/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	// A .env in the working directory may carry DOTBOT_* overrides.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: reading .env: %v\n", err)
	}

	if err := cli.NewRootCmd().Execute(); err != nil {
		if !errors.Is(err, cli.ErrStatus) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
