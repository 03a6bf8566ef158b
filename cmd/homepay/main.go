package main

import (
	"os"

	"homepay/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
