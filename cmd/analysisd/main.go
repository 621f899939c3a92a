package main

import (
	"os"

	"github.com/iwealthdemo/asset-management-workflow-sub001/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
