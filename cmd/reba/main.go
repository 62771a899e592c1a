package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/banshee-data/posture.report/internal/version"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "score":
		err = runScore(args, os.Stdout)
	case "analyze":
		err = runAnalyze(args, os.Stdout)
	case "serve":
		err = runServe(args)
	case "tables":
		err = runTables(args, os.Stdout)
	case "version":
		fmt.Println(version.Current())
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "reba %s: %v\n", command, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`reba - REBA ergonomic risk scoring from pose landmarks

Usage: reba <command> [options]

Commands:
  score      Score six joint angles and print the REBA breakdown
  analyze    Score a JSON-lines landmark file and write CSV, JSON, Markdown and PNG reports
  serve      Run the HTTP API, optionally reading landmarks from a serial device
  tables     Print REBA Table C
  version    Show build information
  help       Show this help message

Common Flags:
  --config <file>        JSON configuration file (defaults apply for omitted fields)
  --mode <mode>          strict or best_effort
  --load <kg>            Load or force handled, in kilograms
  --coupling <grip>      good, fair, poor or unacceptable
  --side <side>          right or left
  --static, --repetitive, --rapid, --shock
                         Activity and load flags
  --debug                Log the per-stage scoring trace

Examples:
  # Score a posture by hand
  reba score --neck 25 --trunk 30 --upper-arm 135 --forearm 80 --wrist 10 --leg 175 --load 5 --coupling fair

  # Analyze a recorded session and store it
  reba analyze --input shift.jsonl --output-dir reports --db reba.db

  # Serve the API with a pose tracker on a serial port
  reba serve --listen :8080 --serial /dev/ttyUSB0 --db reba.db`)
}
