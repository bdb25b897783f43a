package capture

import (
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrResolutionUnknown is returned when the screen size cannot be detected.
var ErrResolutionUnknown = errors.New("could not determine display resolution")

// DisplayResolution asks the platform tools for the size of the primary
// display: system_profiler on darwin, xrandr on linux and PowerShell on
// windows.
func DisplayResolution(ctx context.Context, goos string) (int, int, error) {
	var name string
	var args []string
	var parse func(string) (int, int, error)

	switch goos {
	case "darwin":
		name, args, parse = "system_profiler", []string{"SPDisplaysDataType"}, parseSystemProfiler
	case "linux":
		name, args, parse = "xrandr", nil, parseXrandr
	case "windows":
		name = "powershell"
		args = []string{"-Command", "Get-CimInstance -ClassName Win32_VideoController | Select-Object -First 1 | Select-Object -ExpandProperty CurrentHorizontalResolution, CurrentVerticalResolution"}
		parse = parseWindowsResolution
	default:
		return 0, 0, errors.Wrapf(ErrResolutionUnknown, "unsupported OS %q", goos)
	}

	output, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return 0, 0, errors.Wrapf(ErrResolutionUnknown, "run %s: %v", name, err)
	}
	return parse(string(output))
}

// parseSystemProfiler picks the built-in display, then the main display,
// then the first display listed.
func parseSystemProfiler(output string) (int, int, error) {
	type display struct {
		builtIn bool
		main    bool
		w, h    int
	}

	var displays []display
	var cur display
	inDisplays := false
	flush := func() {
		if cur.w > 0 {
			displays = append(displays, cur)
		}
		cur = display{}
	}

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.Contains(trimmed, "Displays:") {
			inDisplays = true
			continue
		}
		if !inDisplays {
			continue
		}

		// A display starts with an indented "Name:" line.
		if name, ok := strings.CutSuffix(trimmed, ":"); ok && name != "" && !strings.Contains(name, ":") &&
			(strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
			flush()
			continue
		}

		switch {
		case strings.Contains(trimmed, "Display Type: Built-in"), strings.Contains(trimmed, "Built-in: Yes"):
			cur.builtIn = true
		case strings.Contains(trimmed, "Main Display: Yes"):
			cur.main = true
		case strings.HasPrefix(trimmed, "Resolution:"):
			cur.w, cur.h = firstTwoInts(strings.Fields(strings.TrimPrefix(trimmed, "Resolution:")))
		}
	}
	flush()

	if len(displays) == 0 {
		return 0, 0, ErrResolutionUnknown
	}
	pick := displays[0]
	for _, d := range displays {
		if d.main && !pick.main && !pick.builtIn {
			pick = d
		}
		if d.builtIn && !pick.builtIn {
			pick = d
		}
	}
	return pick.w, pick.h, nil
}

// parseXrandr returns the current mode of the primary output, or the first
// current mode when no output is marked primary.
func parseXrandr(output string) (int, int, error) {
	var first [2]int
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if strings.Contains(line, " connected primary ") {
			// "eDP-1 connected primary 1920x1080+0+0 ..."
			for _, f := range strings.Fields(line) {
				if w, h, ok := parseMode(f); ok {
					return w, h, nil
				}
			}
			// Geometry missing: use the starred mode listed under it.
			for _, mode := range lines[i+1:] {
				if !strings.HasPrefix(mode, " ") {
					break
				}
				if strings.Contains(mode, "*") {
					if w, h, ok := parseMode(strings.Fields(mode)[0]); ok {
						return w, h, nil
					}
				}
			}
		}
		if first[0] == 0 && strings.HasPrefix(line, " ") && strings.Contains(line, "*") {
			if w, h, ok := parseMode(strings.Fields(line)[0]); ok {
				first = [2]int{w, h}
			}
		}
	}
	if first[0] > 0 {
		return first[0], first[1], nil
	}
	return 0, 0, ErrResolutionUnknown
}

func parseWindowsResolution(output string) (int, int, error) {
	w, h := firstTwoInts(strings.Fields(output))
	if w == 0 || h == 0 {
		return 0, 0, ErrResolutionUnknown
	}
	return w, h, nil
}

// parseMode parses "1920x1080" with an optional "+x+y" suffix.
func parseMode(s string) (int, int, bool) {
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}
	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, false
	}
	w, err1 := strconv.Atoi(ws)
	h, err2 := strconv.Atoi(hs)
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

func firstTwoInts(fields []string) (int, int) {
	var got []int
	for _, f := range fields {
		if n, err := strconv.Atoi(f); err == nil {
			got = append(got, n)
			if len(got) == 2 {
				return got[0], got[1]
			}
		}
	}
	return 0, 0
}
