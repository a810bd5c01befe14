package yaml

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPatch(t *testing.T) {
	b := []byte(`# prefix`)

	b, err := Patch(b, "device", "/dev/video0", "cameras", "front")
	require.Nil(t, err)

	require.Equal(t, `# prefix
cameras:
  front:
    device: /dev/video0
`, string(b))

	b, err = Patch(b, "width", 640, "cameras", "front")
	require.Nil(t, err)

	b, err = Patch(b, "device", "/dev/video2", "cameras", "front")
	require.Nil(t, err)

	require.Equal(t, `# prefix
cameras:
  front:
    device: /dev/video2
    width: 640
`, string(b))

	b, err = Patch(b, "device", nil, "cameras", "front")
	require.Nil(t, err)

	require.Equal(t, `# prefix
cameras:
  front:
    width: 640
`, string(b))

	// removing missing key is a no-op
	b2, err := Patch(b, "device", nil, "cameras", "back")
	require.Nil(t, err)
	require.Equal(t, b, b2)
}

func TestPatchMissingPath(t *testing.T) {
	b := []byte(`cameras:
  front:
    device: /dev/video0
log:
  level: info
`)

	b, err := Patch(b, "9963776", 128, "cameras", "front", "controls")
	require.Nil(t, err)

	require.Equal(t, `cameras:
  front:
    device: /dev/video0
    controls:
      "9963776": 128
log:
  level: info
`, string(b))

	b, err = Patch(b, "9963776", 64, "cameras", "front", "controls")
	require.Nil(t, err)

	var cfg struct {
		Cameras map[string]struct {
			Controls map[string]int32 `yaml:"controls"`
		} `yaml:"cameras"`
	}
	require.Nil(t, Unmarshal(b, &cfg))
	require.Equal(t, int32(64), cfg.Cameras["front"].Controls["9963776"])
}
