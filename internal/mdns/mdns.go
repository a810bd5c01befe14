package mdns

import (
	"os"

	"github.com/AlexxIT/go2cam/internal/api"
	"github.com/AlexxIT/go2cam/internal/app"
	"github.com/AlexxIT/go2cam/pkg/mdns"
	"github.com/rs/zerolog"
)

type Config struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
}

func Init() {
	var cfg struct {
		Mod Config `yaml:"mdns"`
	}

	app.LoadConfig(&cfg)

	log = app.GetLogger("mdns")

	if !cfg.Mod.Enabled {
		return
	}

	if api.Port == 0 {
		log.Warn().Msg("[mdns] api listener disabled")
		return
	}

	name := instanceName(cfg.Mod.Name)

	var err error
	if server, err = mdns.NewServer(name, mdns.ServiceAPI, api.Port, nil, txt()); err != nil {
		log.Error().Err(err).Caller().Send()
		return
	}

	log.Info().Str("name", name).Int("port", api.Port).Msg("[mdns] announce")
}

func Close() {
	if server != nil {
		_ = server.Shutdown()
		server = nil
	}
}

var log zerolog.Logger
var server interface{ Shutdown() error }

func instanceName(name string) string {
	if name != "" {
		return name
	}
	if name, _ = os.Hostname(); name != "" {
		return name
	}
	return "go2cam"
}

func txt() []string {
	return []string{"version=" + app.Version, "path=/api"}
}
