package main

import "duck/internal/cli"

func main() {
	cli.Execute()
}
