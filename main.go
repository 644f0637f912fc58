package main

import (
	"github.com/MazarSayed/stock-platform/cmd"
	_ "github.com/MazarSayed/stock-platform/pkg/logger/autoload"
)

func main() {
	cmd.Execute()
}
