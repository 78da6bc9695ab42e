package main

import (
	"os"

	"abitudini/gridrange/cmd/gridrange/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
