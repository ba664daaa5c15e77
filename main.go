package main

import (
	"embed"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	logx "voxchat/pkg/logger"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	logx.Init()
	app := NewApp()

	err := wails.Run(&options.App{
		Title:  "VoxChat",
		Width:  960,
		Height: 720,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("application exited with error")
	}
}
