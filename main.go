package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/boypt/u2convert/engine"
	"github.com/boypt/u2convert/lookup"
	"github.com/jpillora/opts"
)

var VERSION = "0.0.0-src" //set with ldflags

const keyHelpURL = "https://u2.dmhy.org/privatetorrents.php"

type cli struct {
	ConfigPath     string `help:"Configuration file path"`
	Watch          bool   `help:"Keep running and convert torrents added to the input directory"`
	Debug          bool   `help:"Trace lookup requests and responses"`
	DisableLogTime bool   `help:"Don't print timestamp in log"`
}

func main() {
	c := cli{ConfigPath: "u2convert.yaml"}
	opts.New(&c).Name("u2convert").Version(VERSION).Parse()

	if c.DisableLogTime {
		log.SetFlags(0)
		engine.SetLoggerFlag(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	code := run(ctx, c)
	stop()
	os.Exit(code)
}

// run returns the process exit code. Missing input or key is not an error:
// the user is told what to put where and nothing else happens.
func run(ctx context.Context, c cli) int {
	conf, err := engine.InitConf(c.ConfigPath)
	if err != nil {
		log.Println(err)
		return 1
	}
	if c.Debug {
		conf.Debug = true
	}

	if st, err := os.Stat(conf.InputDirectory); err != nil || !st.IsDir() {
		log.Printf("The original torrent files should be placed into %s", conf.InputDirectory)
		return 0
	}
	apiURL, err := conf.ReadKeyFile()
	switch {
	case errors.Is(err, engine.ErrNoKeyFile):
		log.Printf("The API key should be written into %s", conf.KeyFile)
		if err := conf.WriteKeyPlaceholder(); err != nil {
			log.Println(err)
		}
		return 0
	case errors.Is(err, engine.ErrPlaceholderKey):
		log.Printf("You should paste your API Key (obtained from %s) into %s", keyHelpURL, conf.KeyFile)
		return 0
	case err != nil:
		log.Println(err)
		return 1
	}

	e, err := engine.New(*conf, apiURL)
	if err != nil {
		log.Println(err)
		return 1
	}
	sum, err := e.Run(ctx)
	if sum != nil {
		fmt.Println(sum)
	}
	if code, done := exitCode(ctx, err); done {
		return code
	}
	fmt.Println("All files have been processed. Please review log above for anything wrong.")

	if c.Watch {
		if code, done := exitCode(ctx, e.Watch(ctx)); done {
			return code
		}
	}
	return 0
}

// exitCode maps a run error onto the process exit code; done is false
// when there was nothing to report.
func exitCode(ctx context.Context, err error) (int, bool) {
	switch {
	case err == nil:
		return 0, false
	case errors.Is(err, lookup.ErrInvalidKey):
		log.Println("The API key was rejected, please check the url in the key file")
		return 1, true
	case ctx.Err() != nil:
		log.Println("interrupted")
		return 130, true
	default:
		log.Println(err)
		return 1, true
	}
}
