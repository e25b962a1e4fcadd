package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ctafram/ctago/entry"
	_ "github.com/ctafram/ctago/strat"
)

const VERSION = "0.1.0"

var subHelp = map[string]string{
	"trade":    "run the live engine",
	"backtest": "backtest with strategies and stored bars",
	"optimize": "sweep strategy parameters over a backtest window",
}

func main() {
	if len(os.Args) < 2 {
		printAndExit()
	}
	cmdName := os.Args[1]
	var args entry.CmdArgs
	sub := flag.NewFlagSet(cmdName, flag.ExitOnError)
	sub.StringVar(&args.Config, "config", "config.yml", "config path to use")
	sub.StringVar(&args.Logfile, "logfile", "", "log to the file specified")
	sub.BoolVar(&args.Debug, "debug", false, "set logging level to debug")
	if err := sub.Parse(os.Args[2:]); err != nil {
		fmt.Printf("Error: %v\n", err)
		printAndExit()
	}
	switch cmdName {
	case "trade":
		os.Exit(entry.RunLive(&args))
	case "backtest":
		os.Exit(entry.RunBackTest(&args))
	case "optimize":
		os.Exit(entry.RunOptimize(&args))
	default:
		printAndExit()
	}
}

func printAndExit() {
	fmt.Printf("ctago %v\nplease run with a subcommand:\n", VERSION)
	for k, v := range subHelp {
		fmt.Println("  ", k)
		fmt.Println("\t", v)
	}
	os.Exit(1)
}
