package main

import "kestrel/internal/cli"

func main() {
	cli.Execute()
}
