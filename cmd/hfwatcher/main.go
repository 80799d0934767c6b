package main

import "aave-hf-watcher/internal/cli"

func main() {
	cli.Execute()
}
