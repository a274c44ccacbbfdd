// clockcheck prints the session state of every configured market.
// Usage: go run ./cmd/clockcheck --config configs/pulsed.yaml
//
// Pass --at to evaluate a specific instant instead of now, e.g. to check
// whether a holiday or an overnight wrap behaves as expected:
//
//	clockcheck --config configs/pulsed.yaml --at 2025-12-25T15:00:00Z
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/finpulse/marketpulse/internal/clock"
	"github.com/finpulse/marketpulse/internal/config"
)

func main() {
	configPath := flag.String("config", "configs/pulsed.yaml", "path to config file")
	atFlag := flag.String("at", "", "evaluate at this RFC3339 instant instead of now")
	flag.Parse()

	// Defaults only, no full validation: checking the clock should not
	// require a reachable feed or gateway section.
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	at := time.Now()
	if *atFlag != "" {
		at, err = time.Parse(time.RFC3339, *atFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid -at value:", err)
			os.Exit(1)
		}
	}

	defs, err := cfg.MarketDefinitions()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to resolve markets:", err)
		os.Exit(1)
	}
	if len(defs) == 0 {
		fmt.Fprintln(os.Stderr, "no markets configured")
		os.Exit(1)
	}

	fmt.Printf("as of %s\n\n", at.UTC().Format(time.RFC3339))
	for _, def := range defs {
		status := clock.StatusAt(def, at)
		local := at.In(def.Location)
		session := clock.SessionDate(def, at)
		fmt.Printf("%-8s %-7s local %s  session %s  hours %s-%s %s (%s)\n",
			def.Code,
			status.Status,
			local.Format("Mon 15:04"),
			session.Format("2006-01-02"),
			def.Open, def.Close,
			def.Weekdays,
			def.Timezone,
		)
	}
}
