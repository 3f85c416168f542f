package main

import "github.com/mcoot/rublocks/internal/cli"

func main() {
	cli.Execute()
}
