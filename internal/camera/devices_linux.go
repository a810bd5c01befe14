//go:build linux

package camera

import (
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/AlexxIT/go2cam/internal/api"
	"github.com/AlexxIT/go2cam/pkg/v4l2/device"
	"github.com/AlexxIT/go2cam/pkg/v4l2/format"
	"github.com/rs/zerolog"
)

var errUnsupportedPlatform error

// devices are shared by path, so cameras and API calls reuse one descriptor
var devices = map[string]*device.Device{}
var devicesMu sync.Mutex

func getDevice(path string, log zerolog.Logger) *device.Device {
	devicesMu.Lock()
	defer devicesMu.Unlock()
	dev := devices[path]
	if dev == nil {
		dev = device.New(path, log)
		devices[path] = dev
	}
	return dev
}

func openDevice(path string, log zerolog.Logger) (Driver, io.Closer, error) {
	dev := getDevice(path, log)
	conn, err := dev.Connect()
	if err != nil {
		return nil, nil, err
	}
	return dev, conn, nil
}

type Source struct {
	Path     string               `json:"path"`
	Driver   string               `json:"driver,omitempty"`
	Card     string               `json:"card,omitempty"`
	BusInfo  string               `json:"bus_info,omitempty"`
	Formats  []format.Description `json:"formats,omitempty"`
	Controls []*device.Control    `json:"controls,omitempty"`
	Error    string               `json:"error,omitempty"`
}

func apiV4L2(w http.ResponseWriter, r *http.Request) {
	files, err := os.ReadDir("/dev")
	if err != nil {
		api.Error(w, err, http.StatusInternalServerError)
		return
	}

	var sources []*Source

	for _, file := range files {
		if !strings.HasPrefix(file.Name(), "video") {
			continue
		}

		source := &Source{Path: "/dev/" + file.Name()}
		if err = readSource(source); err != nil {
			source.Error = err.Error()
		}
		sources = append(sources, source)
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })

	api.ResponsePrettyJSON(w, sources)
}

func readSource(source *Source) error {
	dev := getDevice(source.Path, log)
	conn, err := dev.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	caps, err := dev.Capability()
	if err != nil {
		return err
	}
	source.Driver = caps.Driver
	source.Card = caps.Card
	source.BusInfo = caps.BusInfo

	if source.Formats, err = format.Catalogue(dev); err != nil {
		return err
	}

	source.Controls, _ = dev.Controls()

	return nil
}
