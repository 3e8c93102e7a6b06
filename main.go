// Package main provides the entry point for cachesim, a trace-driven
// set-associative cache simulator.
package main

import "github.com/sarchlab/cachesim/cmd"

func main() {
	cmd.Execute()
}
