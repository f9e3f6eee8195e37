// 命令行入口：直接调用地名站点客户端，便于排查解析、拉取与索引结果
package main

import (
	"os"

	"gopkg.in/urfave/cli.v1"

	"pleiades-api/internal/logger"
	"pleiades-api/internal/version"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		logger.L().Error("command_error", "err", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "pleiades"
	app.HelpName = os.Args[0]
	app.Usage = "Pleiades gazetteer client"
	app.Version = version.Version + " (" + version.Commit + ")"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "path to a YAML config file", EnvVar: "PLEIADES_CONFIG"},
		cli.StringFlag{Name: "user-agent", Usage: "User-Agent sent to the gazetteer"},
		cli.StringFlag{Name: "from", Usage: "From header (contact address)"},
		cli.StringFlag{Name: "base-url", Usage: "gazetteer base url"},
		cli.BoolFlag{Name: "no-cache", Usage: "disable the on-disk response cache"},
	}
	app.Commands = []cli.Command{
		resolveCommand,
		getCommand,
		lookupCommand,
		suggestCommand,
		searchCommand,
	}
	app.Before = func(ctx *cli.Context) error {
		logger.Setup()
		return nil
	}
	return app
}
