package infra

import (
	"fmt"
	"io"
	"strings"
)

// ANSI Color Codes
const (
	ColorReset  = "\033[0m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
)

// PrintBanner writes the startup banner for the configured mode.
func PrintBanner(w io.Writer, cfg *Config) {
	mode := strings.ToUpper(cfg.Simulator.Mode)

	color := ColorGreen
	modeDesc := "MATCHING VERIFICATION"
	if mode == "PAPER" {
		color = ColorCyan
		modeDesc = "PAPER TRADING (NO ORDERS LEAVE)"
	}

	lat := cfg.Latency.Kind
	switch lat {
	case "fixed":
		lat = "fixed " + cfg.Latency.Fixed.String()
	case "random":
		lat = fmt.Sprintf("random %s..%s", cfg.Latency.Min, cfg.Latency.Max)
	}

	line := func(format string, args ...any) {
		fmt.Fprintf(w, "%s"+format+"%s\n", append(append([]any{color}, args...), ColorReset)...)
	}

	fmt.Fprintln(w)
	line("###########################################################")
	line("#                                                         #")
	line("#   %-53s #", cfg.App.Name)
	line("#                                                         #")
	line("#   MODE:    %-44s #", mode)
	line("#   TYPE:    %-44s #", modeDesc)
	line("#   MARKET:  %-44s #", cfg.Market.Symbol)
	line("#   LATENCY: %-44s #", lat)
	line("#   VERSION: %-44s #", cfg.App.Version)
	line("#                                                         #")
	if cfg.Feed.Enabled {
		fmt.Fprintf(w, "%s#   LIVE FEED: %-42s #%s\n", ColorYellow, cfg.Feed.URL, ColorReset)
	}
	line("###########################################################")
	fmt.Fprintln(w)
}
