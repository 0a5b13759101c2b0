package main

import (
	"log"
	"os"

	"github.com/google/gops/agent"
	"github.com/viant/kdb/service"
)

const (
	exitError       = 1
	exitUsage       = 2
	exitInterrupted = 130
)

func main() {
	startGops()
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.Execute()
	switch {
	case err == nil:
		return 0
	case service.IsInterrupted(err):
		log.Printf("interrupted: progress saved, rerun to resume")
		return exitInterrupted
	case isUsage(err):
		log.Printf("error: %v", err)
		return exitUsage
	default:
		log.Printf("error: %v", err)
		return exitError
	}
}

func startGops() {
	if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
		log.Printf("gops: %v", err)
	}
}
