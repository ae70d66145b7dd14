package main

import (
	"os"

	"firestige.xyz/schc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
