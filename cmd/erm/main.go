// Package main is the erm CLI entry point.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/erm/config.yaml"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		printUsage(os.Stdout)
		return 1
	}
	rest := args[1:]
	switch args[0] {
	case "server":
		return runServer(rest)
	case "ingest":
		return runIngest(rest, os.Stdout, os.Stderr)
	case "process":
		return runProcess(rest, os.Stdout, os.Stderr)
	case "review":
		return runReview(rest, os.Stdout, os.Stderr)
	case "status":
		return runStatus(rest, os.Stdout, os.Stderr)
	case "watch":
		return runWatch(rest, os.Stdout, os.Stderr)
	case "version", "--version", "-v":
		fmt.Printf("erm version %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(os.Stdout)
		return 0
	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		printUsage(os.Stdout)
		return 1
	}
}
