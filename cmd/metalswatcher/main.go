package main

import "github.com/Paint3141/precious-metals/internal/cli"

func main() {
	cli.Execute()
}
