// telegram quiz bot: guess which museum a painting hangs in
package main

import (
	"context"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/igorrodygin/museum-quiz-bot/cfg"
)

// command-line options
type options struct {
	DataPath string `short:"d" long:"data" description:"Path to the paintings dataset file (overrides config)"`
	DBPath   string `long:"db" description:"Path to the sqlite database file (overrides config)"`
	Verbose  bool   `short:"v" long:"verbose" description:"Print verbose logs"`
}

func main() {
	launchedAt := time.Now()

	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	config, err := cfg.GetConfig()
	if err != nil {
		_stderr.Fatalf("failed to load config: %s", err)
	}

	// command-line options override everything
	if opts.DataPath != "" {
		config.DataPath = opts.DataPath
	}
	if opts.DBPath != "" {
		config.DBPath = opts.DBPath
	}
	if opts.Verbose {
		config.IsVerbose = true
	}

	if config.APIToken == "" {
		_stderr.Fatalf("no bot token: set %s or `api_token` in the config file", cfg.EnvBotToken)
	}

	paintings, err := LoadPaintings(config.DataPath)
	if err != nil {
		_stderr.Fatalf("failed to load paintings: %s", err)
	}
	_stdout.Printf("loaded %d painting(s) from: %s", len(paintings), config.DataPath)

	runBot(context.Background(), config, paintings, launchedAt)
}
