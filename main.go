// Package main is the entry point for the csimpact CLI tool, which scores CS2
// players with PIV and rates teams with TIR from tabular match statistics.
package main

import "github.com/pable/cs-impact/cmd"

func main() {
	cmd.Execute()
}
