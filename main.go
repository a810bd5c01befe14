package main

import (
	"github.com/AlexxIT/go2cam/internal/api"
	"github.com/AlexxIT/go2cam/internal/api/ws"
	"github.com/AlexxIT/go2cam/internal/app"
	"github.com/AlexxIT/go2cam/internal/camera"
	"github.com/AlexxIT/go2cam/internal/mdns"
	"github.com/AlexxIT/go2cam/pkg/shell"
)

func main() {
	app.Init() // init config and logs

	api.Init() // init HTTP API server
	ws.Init()  // init WebSocket API

	camera.Init() // load cameras list
	mdns.Init()   // announce HTTP API

	sig := shell.RunUntilSignal()
	app.Logger.Info().Str("signal", sig.String()).Msg("[app] exit")

	mdns.Close()
	camera.Close()
}
