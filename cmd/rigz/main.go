package main

import (
	"os"

	"github.com/funvibe/rigz/pkg/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
