package main

import "arena/internal/cli"

func main() {
	cli.Execute()
}
