package main

import "github.com/pfrederiksen/bamf-monitor/internal/cli"

func main() {
	cli.Execute()
}
