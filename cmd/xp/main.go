package main

import (
	"os"

	"github.com/bnema/x402-pay-cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
