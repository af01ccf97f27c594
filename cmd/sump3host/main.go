// Command sump3host is the interactive/scripted host for the
// acquisition engine: it connects to a backdoor server, accepts the
// scripting vocabulary (create_view, apply_view, sump_arm,
// sump_download, save_pza, ...) one line at a time from stdin or a
// script file, and prints whatever each line returns.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/blackmesalabs/sump3/internal/sumpcfg"
	"github.com/blackmesalabs/sump3/internal/sumphost"
	"github.com/blackmesalabs/sump3/internal/sumplog"
)

func main() {
	cfgPath := pflag.StringP("config", "c", "", "Path to a YAML process config file.")
	script := pflag.StringP("script", "s", "", "Path to a command script; defaults to stdin.")
	debug := pflag.Bool("debug", false, "Enable debug logging.")
	help := pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: sump3host [options]")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	logger := sumplog.New("sump3host", *debug)

	engine := sumphost.New(logger)
	defer engine.Close()

	if *cfgPath != "" {
		cfg, err := sumpcfg.Load(*cfgPath)
		if err != nil {
			logger.Fatal("loading config", "err", err)
		}

		if err := engine.Connect(context.Background(), cfg); err != nil {
			logger.Fatal("connecting", "err", err)
		}
	}

	in := os.Stdin

	if *script != "" {
		f, err := os.Open(*script)
		if err != nil {
			logger.Fatal("opening script", "err", err)
		}
		defer f.Close()

		in = f
	}

	runScript(engine, in, logger)
}

func runScript(engine *sumphost.Engine, in *os.File, logger *log.Logger) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		out, err := engine.Execute(line)
		if err != nil {
			logger.Error("command failed", "line", line, "err", err)

			continue
		}

		if out != "" {
			fmt.Println(out)
		}
	}
}
