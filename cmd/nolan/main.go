package main

import "github.com/nolanhq/nolan/internal/cli"

func main() {
	cli.Execute()
}
