package main

import (
	"github.com/haytac/emoji-cdn/internal/cli"
	"github.com/haytac/emoji-cdn/internal/logging"
)

func main() {
	// Basic logger until the root command has loaded the configured one.
	logging.Setup(logging.Config{Level: "info", Console: true, TimeFormat: "15:04:05"})

	cli.Execute()
}
