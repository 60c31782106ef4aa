// Command paperlens answers questions over a collection of scientific papers.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/paperlens/internal/adapters/driving/cli"
	"github.com/custodia-labs/paperlens/internal/app"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	cfg, err := app.LoadConfig("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	cli.SetVersion(version)
	cli.SetConfigPorts(cfg.Ports())
	cli.SetServiceFactory(app.ServiceFactory(cfg))
	os.Exit(cli.Execute())
}
