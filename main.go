package main

import (
	"os"

	"github.com/newswire-app/newswire/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
