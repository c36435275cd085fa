package main

import "mock-interview/internal/cli"

func main() {
	cli.Execute()
}
