package main

import "metalpulse/internal/cli"

func main() {
	cli.Execute()
}
