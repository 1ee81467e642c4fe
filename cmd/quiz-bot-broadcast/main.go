// send a broadcast message to all chats of the running quiz bot,
// through its local CLI server
package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"

	"github.com/igorrodygin/museum-quiz-bot/cfg"
	"github.com/igorrodygin/museum-quiz-bot/consts"
)

// command-line options
type options struct {
	Port int `short:"p" long:"port" description:"Port number of the bot's local CLI server (default: from config)"`

	Args struct {
		Message []string `positional-arg-name:"message" required:"1"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cliPort := opts.Port
	if cliPort <= 0 {
		// read port number from config file
		if config, err := cfg.GetConfig(); err == nil {
			cliPort = config.CLIPort
		} else {
			fmt.Printf("failed to load config, using default port number: %d (%s)\n", consts.DefaultCLIPortNumber, err)

			cliPort = consts.DefaultCLIPortNumber
		}
	}

	message := strings.Join(opts.Args.Message, " ")

	if _, err := http.PostForm(fmt.Sprintf("http://localhost:%d%s", cliPort, consts.HTTPBroadcastPath), url.Values{
		consts.ParamMessage: {message},
	}); err != nil {
		fmt.Printf("*** %s\n", err)
	}
}
