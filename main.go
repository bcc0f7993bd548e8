package main

import (
	"os"

	"github.com/getlawrence/cattach/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
