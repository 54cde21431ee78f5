package main

import (
	"fmt"
	"os"

	"github.com/js0n-statham/Cab-Driving-Agent/benchmarks"
)

// main entry point to all the commands
func main() {
	// rootCommand defines a command line argument parser (some arguments and a subcommand to run)
	rootCommand := benchmarks.GetRootCommand()
	if err := rootCommand.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
