// Command notifyd watches directories and serves the resulting change events
// over HTTP, WebSocket and gRPC.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ajkula/GoNotify/adapter/outbound/backend"
	"github.com/ajkula/GoNotify/config"
)

// Version is set at build time
var Version = "dev"

type CLI struct {
	Serve          serveCommand          `cmd:"" default:"withargs" help:"Run the watch daemon"`
	Watch          watchCommand          `cmd:"" help:"Print change events for paths as JSON lines"`
	GenerateConfig generateConfigCommand `cmd:"" name:"generate-config" help:"Write a default configuration file"`
	Version        versionCommand        `cmd:"" help:"Show version information"`
}

type generateConfigCommand struct {
	Config string `short:"c" default:"config.yaml" placeholder:"PATH" help:"Where to write the configuration"`
}

func (c *generateConfigCommand) Run() error {
	if err := config.SaveConfig(config.DefaultConfig(), c.Config); err != nil {
		return fmt.Errorf("generating config file: %w", err)
	}
	fmt.Printf("Default configuration file generated at: %s\n", c.Config)
	return nil
}

type versionCommand struct{}

func (versionCommand) Run() error {
	fmt.Println("GoNotify", Version)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("notifyd"),
		kong.Description("File system change notification daemon"),
		kong.UsageOnError(),
		kong.Vars{"backends": strings.Join(backend.Names(), ", ")},
	)
	if err := ctx.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
