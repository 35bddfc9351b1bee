package main

import (
	"os"

	"github.com/Aman-CERP/docidx/cmd/docidx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
