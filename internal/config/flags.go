package config

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// Flags holds the command-line options shared by both binaries.
type Flags struct {
	ConfigPath string
	Tickers    string
	Sleep      int
	Once       bool
	LogLevel   string

	fs *pflag.FlagSet
}

// ParseFlags parses args (without the program name). Errors, including
// pflag.ErrHelp, are returned after the usage text is written to out.
func ParseFlags(name string, args []string, out io.Writer) (*Flags, error) {
	f := &Flags{}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage of %s:\n", name)
		fs.PrintDefaults()
	}

	fs.StringVarP(&f.Tickers, "tickers", "t", DefaultTickers,
		"What tickers do you want to see values for. Separated by commas")
	fs.IntVarP(&f.Sleep, "sleep", "s", DefaultSleepSeconds,
		"How many seconds to sleep for between iterations")
	fs.StringVarP(&f.ConfigPath, "config", "c", "", "path to config file (default: environment only)")
	fs.BoolVar(&f.Once, "once", false, "run a single poll cycle and exit")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(out, err)
			fs.Usage()
		}
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	f.fs = fs
	return f, nil
}

// Apply overrides cfg with every flag that was set explicitly.
func (f *Flags) Apply(cfg *Config) {
	if f.changed("tickers") {
		cfg.Tickers = f.Tickers
	}
	if f.changed("sleep") {
		cfg.Poller.SleepSeconds = f.Sleep
	}
	if f.changed("log-level") {
		cfg.Log.Level = f.LogLevel
	}
}

func (f *Flags) changed(name string) bool {
	return f.fs != nil && f.fs.Changed(name)
}
