// Package main is the entry point for the powerexec CLI.
package main

import (
	"powerexec/cli/cmd"
)

func main() {
	cmd.Execute()
}
