package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"

	"github.com/pixiscript/dashboard/lib/logger"
)

// CLI represents the command line of the daemon.
type CLI struct {
	Debug     bool         `help:"Enable debug logging."`
	Start     StartCmd     `cmd:"" help:"Start the session keep-alive daemon."`
	Configure ConfigureCmd `cmd:"" help:"Print an example configuration file."`
	Version   VersionCmd   `cmd:"" help:"Print the version."`
}

// StartCmd runs the daemon.
type StartCmd struct {
	Config string `help:"Path to the TOML configuration file." short:"c" required:"" env:"PIXISCRIPT_DASHBOARD_CONFIG"`
}

// ConfigureCmd prints an example configuration file.
type ConfigureCmd struct{}

// VersionCmd prints the version.
type VersionCmd struct{}

var cli CLI

// Run starts the daemon.
func (c *StartCmd) Run() error {
	conf, err := LoadConfig(c.Config)
	if err != nil {
		return trace.Wrap(err)
	}

	if err := logger.Setup(conf.Log); err != nil {
		return trace.Wrap(err)
	}
	if cli.Debug {
		log.SetLevel(log.DebugLevel)
		log.Debugf("DEBUG logging enabled")
	}

	app, err := NewApp(*conf)
	if err != nil {
		return trace.Wrap(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infof("Starting PixiScript dashboard session daemon %s:%s", Version, Gitref)
	return trace.Wrap(app.Run(ctx))
}

// Run prints the example config.
func (c *ConfigureCmd) Run() error {
	fmt.Print(exampleConfig)
	return nil
}

// Run prints the version.
func (c *VersionCmd) Run() error {
	fmt.Printf("pixiscript-dashboard %s git:%s\n", Version, Gitref)
	return nil
}

func main() {
	logger.Init()
	ctx := kong.Parse(
		&cli,
		kong.UsageOnError(),
		kong.Name("pixiscript-dashboard"),
		kong.Description("Maintains an authenticated PixiScript backend session"),
	)

	err := ctx.Run()
	if cli.Debug && err != nil {
		fmt.Printf("%v\n", trace.DebugReport(err))
	}
	ctx.FatalIfErrorf(err)
}
