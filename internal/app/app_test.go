package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseConfString(t *testing.T) {
	require.Equal(t, "{log: {level: trace}}", string(parseConfString("log.level=trace")))
	require.Equal(t, "{cameras: {front: {width: 640}}}", string(parseConfString("cameras.front.width=640")))
	require.Nil(t, parseConfString("level=trace"))
	require.Nil(t, parseConfString("go2cam.yaml"))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("GO2CAM_DEVICE", "/dev/video2")

	path := filepath.Join(t.TempDir(), "go2cam.yaml")
	require.Nil(t, os.WriteFile(path, []byte("cameras:\n  front:\n    device: ${GO2CAM_DEVICE}\n    width: ${WIDTH:640}\n"), 0644))

	configs, ConfigPath = nil, ""
	t.Cleanup(func() { configs, ConfigPath = nil, "" })

	initConfig(flagConfig{path, "cameras.front.height=480", `{"log": {"level": "debug"}}`})
	require.Equal(t, path, ConfigPath)

	var cfg struct {
		Cameras map[string]struct {
			Device string `yaml:"device"`
			Width  int    `yaml:"width"`
			Height int    `yaml:"height"`
		} `yaml:"cameras"`
		Log map[string]string `yaml:"log"`
	}
	LoadConfig(&cfg)

	require.Equal(t, "/dev/video2", cfg.Cameras["front"].Device)
	require.Equal(t, 640, cfg.Cameras["front"].Width)
	require.Equal(t, 480, cfg.Cameras["front"].Height)
	require.Equal(t, "debug", cfg.Log["level"])

	require.Nil(t, PatchConfig("rotation", 90, "cameras", "front"))
	b, err := os.ReadFile(path)
	require.Nil(t, err)
	require.True(t, strings.HasSuffix(string(b), "    rotation: 90\n"), string(b))
}

func TestPatchConfigDisabled(t *testing.T) {
	ConfigPath = ""
	require.ErrorIs(t, PatchConfig("level", "info", "log"), ErrConfigDisabled)
}

func TestGetLogger(t *testing.T) {
	Logger = zerolog.New(nil).Level(zerolog.InfoLevel)
	modules = map[string]string{"session": "trace", "api": "warn", "bad": "loud"}

	require.Equal(t, zerolog.TraceLevel, GetLogger("session").GetLevel())
	require.Equal(t, zerolog.WarnLevel, GetLogger("api").GetLevel())
	require.Equal(t, zerolog.InfoLevel, GetLogger("bad").GetLevel())
	require.Equal(t, zerolog.InfoLevel, GetLogger("camera").GetLevel())
}

func TestMemoryLog(t *testing.T) {
	logger := newLogger(map[string]string{"level": "debug", "format": "json"})
	logger.Debug().Msg("[camera] open")

	buf := bytes.NewBuffer(nil)
	_, err := MemoryLog.WriteTo(buf)
	require.Nil(t, err)
	require.Contains(t, buf.String(), `"message":"[camera] open"`)

	MemoryLog.Reset()
	buf.Reset()
	_, err = MemoryLog.WriteTo(buf)
	require.Nil(t, err)
	require.Zero(t, buf.Len())
}

func TestCircularBuffer(t *testing.T) {
	b := newBuffer(2)

	chunk := bytes.Repeat([]byte{'a'}, chunkSize)
	_, _ = b.Write(chunk)
	_, _ = b.Write(bytes.Repeat([]byte{'b'}, chunkSize))
	_, _ = b.Write([]byte("c"))

	// the oldest chunk is overwritten
	buf := bytes.NewBuffer(nil)
	_, err := b.WriteTo(buf)
	require.Nil(t, err)
	require.Equal(t, chunkSize+1, buf.Len())
	require.Equal(t, byte('b'), buf.Bytes()[0])
	require.Equal(t, byte('c'), buf.Bytes()[chunkSize])
}
