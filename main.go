package main

import "tokostore/internal/cli"

func main() {
	cli.Execute()
}
