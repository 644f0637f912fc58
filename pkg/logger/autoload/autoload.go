// Package autoload initialises the global zerolog logger from LOG_*
// variables when imported.
package autoload

import (
	"github.com/MazarSayed/stock-platform/pkg/config"
	logx "github.com/MazarSayed/stock-platform/pkg/logger"
)

func init() {
	conf, err := config.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*conf)
}
