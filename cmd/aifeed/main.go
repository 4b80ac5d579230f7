package main

import (
	"aifeed/cmd/cmd"
	"aifeed/internal/logger"
)

func main() {
	logger.Init()
	cmd.Execute()
}
