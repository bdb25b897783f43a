package capture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSystemProfiler(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		expectedWidth  int
		expectedHeight int
		expectError    bool
	}{
		{
			name: "Built-in display with Retina",
			input: `Graphics/Displays:

    Apple M4 Max:

      Chipset Model: Apple M4 Max
      Type: GPU
      Bus: Built-In
      Displays:
        Color LCD:
          Display Type: Built-in Liquid Retina XDR Display
          Resolution: 3456 x 2234 Retina
          Mirror: Off
          Online: Yes
        Mi 27 NU:
          Resolution: 3840 x 2160 (2160p/4K UHD 1 - Ultra High Definition)
          Main Display: Yes
          Mirror: Off`,
			expectedWidth:  3456,
			expectedHeight: 2234,
		},
		{
			name: "Main Display priority when no Built-in",
			input: `Graphics/Displays:

    Apple GPU:

      Displays:
        External Display:
          Resolution: 3840 x 2160 (2160p/4K UHD 1 - Ultra High Definition)
          Main Display: Yes
          Mirror: Off
        Color LCD:
          Resolution: 2560 x 1440
          Mirror: Off`,
			expectedWidth:  3840,
			expectedHeight: 2160,
		},
		{
			name: "First display when no Built-in or Main Display",
			input: `Graphics/Displays:

    Apple GPU:

      Displays:
        Display 1:
          Resolution: 1920 x 1080
          Mirror: Off
        Display 2:
          Resolution: 2560 x 1440
          Mirror: Off`,
			expectedWidth:  1920,
			expectedHeight: 1080,
		},
		{
			name: "Built-in takes priority over Main Display",
			input: `Graphics/Displays:

    Apple GPU:

      Displays:
        External Display:
          Resolution: 3840 x 2160
          Main Display: Yes
        Color LCD:
          Display Type: Built-in Liquid Retina XDR Display
          Resolution: 3456 x 2234 Retina`,
			expectedWidth:  3456,
			expectedHeight: 2234,
		},
		{
			name: "No displays section",
			input: `Graphics/Displays:

    Apple GPU:

      Chipset Model: Apple GPU`,
			expectError: true,
		},
		{
			name: "No resolution found",
			input: `Graphics/Displays:

    Apple GPU:

      Displays:
        Color LCD:
          Display Type: Built-in
          Mirror: Off`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := parseSystemProfiler(tt.input)
			if tt.expectError {
				assert.ErrorIs(t, err, ErrResolutionUnknown)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedWidth, w)
			assert.Equal(t, tt.expectedHeight, h)
		})
	}
}

func TestParseXrandr(t *testing.T) {
	primary := `Screen 0: minimum 320 x 200, current 4480 x 1440, maximum 16384 x 16384
HDMI-1 connected 2560x1440+1920+0 (normal left inverted right x axis y axis) 597mm x 336mm
   2560x1440     59.95*+
eDP-1 connected primary 1920x1080+0+0 (normal left inverted right x axis y axis) 344mm x 193mm
   1920x1080     60.01*+  59.97
   1680x1050     59.95
`
	w, h, err := parseXrandr(primary)
	require.NoError(t, err)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)

	noPrimary := `Screen 0: minimum 8 x 8, current 1280 x 800, maximum 32767 x 32767
Virtual-1 connected 1280x800+0+0 0mm x 0mm
   1280x800      59.81*+
   1024x768      60.00
`
	w, h, err = parseXrandr(noPrimary)
	require.NoError(t, err)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 800, h)

	_, _, err = parseXrandr("Can't open display\n")
	assert.ErrorIs(t, err, ErrResolutionUnknown)
}

func TestParseWindowsResolution(t *testing.T) {
	w, h, err := parseWindowsResolution("2560\r\n1440\r\n")
	require.NoError(t, err)
	assert.Equal(t, 2560, w)
	assert.Equal(t, 1440, h)

	_, _, err = parseWindowsResolution("\r\n")
	assert.ErrorIs(t, err, ErrResolutionUnknown)
}

func TestDisplayResolutionUnsupportedOS(t *testing.T) {
	_, _, err := DisplayResolution(context.Background(), "plan9")
	assert.ErrorIs(t, err, ErrResolutionUnknown)
}
