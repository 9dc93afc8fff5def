package main

import (
	"os"

	"github.com/dshills/recall/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
