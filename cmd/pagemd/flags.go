package main

import (
	"io"

	flag "github.com/spf13/pflag"

	"github.com/use-agent/pagemd/config"
)

// cliFlags holds command-line overrides. Flags win over the config file and
// the environment.
type cliFlags struct {
	config  string
	host    string
	port    int
	driver  string
	version bool

	fs *flag.FlagSet
}

// parseFlags parses args (without the program name).
func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	f := &cliFlags{}
	fs := flag.NewFlagSet("pagemd", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVarP(&f.config, "config", "c", "", "path to a YAML config file")
	fs.StringVar(&f.host, "host", "", "listen host (overrides server.host)")
	fs.IntVarP(&f.port, "port", "p", 0, "listen port (overrides server.port)")
	fs.StringVar(&f.driver, "driver", "", "browser driver: rod or chromedp (overrides browser.driver)")
	fs.BoolVar(&f.version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	f.fs = fs
	return f, nil
}

// apply copies explicitly set flags onto cfg and re-validates it.
func (f *cliFlags) apply(cfg *config.Config) error {
	if f.fs.Changed("host") {
		cfg.Server.Host = f.host
	}
	if f.fs.Changed("port") {
		cfg.Server.Port = f.port
	}
	if f.fs.Changed("driver") {
		cfg.Browser.Driver = f.driver
	}
	return cfg.Validate()
}
