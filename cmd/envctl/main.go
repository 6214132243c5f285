package main

import "github.com/smukkama/env-monitor/internal/cli"

func main() {
	cli.Execute()
}
