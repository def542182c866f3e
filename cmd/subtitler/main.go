package main

import (
	"os"

	"github.com/obiente/translate/subtitler/cmd/subtitler/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
