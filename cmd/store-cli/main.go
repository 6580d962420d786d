package main

import "github.com/vicinaehq/backend/internal/cli"

func main() {
	cli.Execute()
}
