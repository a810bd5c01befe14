package camera

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/AlexxIT/go2cam/internal/api"
	"github.com/AlexxIT/go2cam/internal/api/ws"
	"github.com/AlexxIT/go2cam/internal/app"
	"github.com/AlexxIT/go2cam/pkg/convert"
	"github.com/AlexxIT/go2cam/pkg/mjpeg"
	"github.com/AlexxIT/go2cam/pkg/session"
	"github.com/AlexxIT/go2cam/pkg/v4l2/device"
	"github.com/rs/zerolog"
)

func Init() {
	var cfg struct {
		Mod map[string]Config `yaml:"cameras"`
	}

	app.LoadConfig(&cfg)

	log = app.GetLogger("camera")

	for name, conf := range cfg.Mod {
		cameras[name] = New(name, conf, openDevice, app.GetLogger("session"))
	}

	api.HandleFunc("api/v4l2", apiV4L2)
	api.HandleFunc("api/cameras", apiCameras)
	api.HandleFunc("api/camera/controls", apiControls)
	api.HandleFunc("api/frame.jpeg", apiFrame)
	api.HandleFunc("api/stream.mjpeg", apiStream)

	ws.HandleFunc("capture", wsCapture)
}

// Close stops all camera sessions
func Close() {
	mu.Lock()
	defer mu.Unlock()
	for _, cam := range cameras {
		cam.Close()
	}
}

var log zerolog.Logger

var cameras = map[string]*Camera{}
var mu sync.Mutex

func GetCamera(name string) *Camera {
	mu.Lock()
	defer mu.Unlock()
	return cameras[name]
}

func apiCameras(w http.ResponseWriter, r *http.Request) {
	mu.Lock()
	items := make([]*Info, 0, len(cameras))
	for _, cam := range cameras {
		items = append(items, cam.Info())
	}
	mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	api.ResponsePrettyJSON(w, items)
}

func apiControls(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	cam := GetCamera(query.Get("src"))
	if cam == nil {
		http.Error(w, ErrUnknown.Error(), http.StatusNotFound)
		return
	}

	s := query.Get("id")
	if s == "" {
		controls, err := cam.Controls()
		if err != nil {
			api.Error(w, err, status(err))
			return
		}
		api.ResponseJSON(w, controls)
		return
	}

	id, err := ParseControlID(s)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var value int32

	switch r.Method {
	case "GET":
		value, err = cam.Control(id)
	case "POST":
		var v int64
		if v, err = strconv.ParseInt(query.Get("value"), 10, 32); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if value, err = cam.SetControl(id, int32(v)); err == nil && query.Get("save") != "" {
			err = app.PatchConfig(FormatControlID(id), value, "cameras", cam.Name, "controls")
		}
	default:
		http.Error(w, "Method not allowed", http.StatusBadRequest)
		return
	}

	if err != nil {
		api.Error(w, err, status(err))
		return
	}

	api.ResponseJSON(w, map[string]any{"id": FormatControlID(id), "value": value})
}

func parseRequest(r *http.Request) Request {
	query := r.URL.Query()
	var req Request
	req.Width, _ = strconv.Atoi(query.Get("width"))
	req.Height, _ = strconv.Atoi(query.Get("height"))
	req.Rotation, _ = strconv.Atoi(query.Get("rotation"))
	return req
}

func apiFrame(w http.ResponseWriter, r *http.Request) {
	cam := GetCamera(r.URL.Query().Get("src"))
	if cam == nil {
		http.Error(w, ErrUnknown.Error(), http.StatusNotFound)
		return
	}

	b, err := cam.Capture(r.Context(), parseRequest(r))
	if err != nil {
		api.Error(w, err, status(err))
		return
	}

	h := w.Header()
	h.Set("Content-Length", strconv.Itoa(len(b)))
	h.Set("Cache-Control", "no-cache")
	api.Response(w, b, api.MimeJPEG)
}

func apiStream(w http.ResponseWriter, r *http.Request) {
	cam := GetCamera(r.URL.Query().Get("src"))
	if cam == nil {
		http.Error(w, ErrUnknown.Error(), http.StatusNotFound)
		return
	}

	req := parseRequest(r)
	wr := mjpeg.NewWriter(w)

	for {
		b, err := cam.Capture(r.Context(), req)
		if err != nil {
			if r.Context().Err() == nil {
				log.Warn().Err(err).Msgf("[camera] stream %s", cam.Name)
			}
			return
		}
		if _, err = wr.Write(b); err != nil {
			return
		}
	}
}

func wsCapture(tr *ws.Transport, msg *ws.Message) error {
	var req struct {
		Src string `json:"src"`
		Request
	}
	if err := msg.Unmarshal(&req); err != nil {
		return err
	}

	cam := GetCamera(req.Src)
	if cam == nil {
		return ErrUnknown
	}

	ctx, cancel := context.WithCancel(tr.Request.Context())
	defer cancel()
	tr.OnClose(cancel)

	for ctx.Err() == nil {
		b, err := cam.Capture(ctx, req.Request)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err = tr.Write(b); err != nil {
			return nil
		}
	}

	return nil
}

func status(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidArgument), errors.Is(err, device.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, convert.ErrUnsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, device.ErrNotConnected), errors.Is(err, errUnsupportedPlatform):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
