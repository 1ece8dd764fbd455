// Package adb drives an Android device through the adb binary, using the
// same shell input commands the platform exposes (input tap/swipe/keyevent,
// screencap). It is the default provider when a device is attached.
package adb

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	device "github.com/tapgrid/cli/internal/device"
	logger "github.com/tapgrid/cli/internal/logger"
)

func init() {
	device.Register(&Provider{})
}

// Provider creates adb-backed controllers
type Provider struct{}

// Info returns metadata about the adb provider
func (p *Provider) Info() device.Info {
	return device.Info{
		Name:           "adb",
		SupportsSwipe:  true,
		SupportsKeys:   true,
		RequiresTarget: false,
	}
}

// IsAvailable reports whether the adb binary is on PATH
func (p *Provider) IsAvailable() bool {
	_, err := exec.LookPath("adb")
	return err == nil
}

// Controller connects to the device with the given serial, or to the
// first attached device when the serial is empty
func (p *Provider) Controller(serial string) (device.Controller, error) {
	c := &Controller{serial: serial}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out, err := c.run(ctx, "get-state")
	if err != nil {
		return nil, fmt.Errorf("no usable android device (serial %q): %w", serial, err)
	}
	if state := strings.TrimSpace(string(out)); state != "device" {
		return nil, fmt.Errorf("android device (serial %q) is in state %q, want \"device\"", serial, state)
	}

	logger.Debug("connected to android device", "serial", serial)
	return c, nil
}

// Controller performs actions on a single Android device
type Controller struct {
	serial string
}

// run executes an adb command scoped to this controller's device
func (c *Controller) run(ctx context.Context, args ...string) ([]byte, error) {
	full := make([]string, 0, len(args)+2)
	if c.serial != "" {
		full = append(full, "-s", c.serial)
	}
	full = append(full, args...)

	cmd := exec.CommandContext(ctx, "adb", full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("adb %s: %w (%s)", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

var sizeRe = regexp.MustCompile(`(Physical|Override) size: (\d+)x(\d+)`)

// parseScreenSize extracts the screen dimensions from `wm size` output.
// An override size, when present, wins over the physical size.
func parseScreenSize(out string) (int, int, error) {
	var w, h int
	found := false
	for _, m := range sizeRe.FindAllStringSubmatch(out, -1) {
		w, _ = strconv.Atoi(m[2])
		h, _ = strconv.Atoi(m[3])
		found = true
		if m[1] == "Override" {
			break
		}
	}
	if !found {
		return 0, 0, fmt.Errorf("could not parse screen size from %q", strings.TrimSpace(out))
	}
	return w, h, nil
}

// ScreenSize returns the device screen dimensions via `wm size`
func (c *Controller) ScreenSize(ctx context.Context) (int, int, error) {
	out, err := c.run(ctx, "shell", "wm", "size")
	if err != nil {
		return 0, 0, err
	}
	return parseScreenSize(string(out))
}

// CaptureScreen takes a screenshot and decodes it
func (c *Controller) CaptureScreen(ctx context.Context) (image.Image, error) {
	data, err := c.CaptureScreenBytes(ctx)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screencap output: %w", err)
	}
	return img, nil
}

// CaptureScreenBytes takes a screenshot and returns it as PNG bytes.
// exec-out avoids the CR/LF mangling of plain `adb shell`.
func (c *Controller) CaptureScreenBytes(ctx context.Context) ([]byte, error) {
	return c.run(ctx, "exec-out", "screencap", "-p")
}

// Tap taps the screen at the given coordinates
func (c *Controller) Tap(ctx context.Context, x, y int) error {
	_, err := c.run(ctx, "shell", "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	if err == nil {
		logger.Debug("tapped", "x", x, "y", y, "serial", c.serial)
	}
	return err
}

// LongPress holds a touch at the given coordinates. Android implements
// this as a zero-distance swipe with a duration.
func (c *Controller) LongPress(ctx context.Context, x, y int, duration time.Duration) error {
	return c.Swipe(ctx, x, y, x, y, duration)
}

// Swipe drags from (x0,y0) to (x1,y1) over the given duration
func (c *Controller) Swipe(ctx context.Context, x0, y0, x1, y1 int, duration time.Duration) error {
	ms := int(duration / time.Millisecond)
	if ms <= 0 {
		ms = 300
	}
	_, err := c.run(ctx, "shell", "input", "swipe",
		strconv.Itoa(x0), strconv.Itoa(y0), strconv.Itoa(x1), strconv.Itoa(y1), strconv.Itoa(ms))
	return err
}

// escapeText prepares a string for `input text`, which treats space and
// several shell metacharacters specially
func escapeText(s string) string {
	r := strings.NewReplacer(
		` `, `%s`,
		`&`, `\&`,
		`<`, `\<`,
		`>`, `\>`,
		`|`, `\|`,
		`;`, `\;`,
		`$`, `\$`,
		`(`, `\(`,
		`)`, `\)`,
		`"`, `\"`,
		`'`, `\'`,
	)
	return r.Replace(s)
}

// TypeText types the given text into the focused input field
func (c *Controller) TypeText(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	_, err := c.run(ctx, "shell", "input", "text", escapeText(text))
	return err
}

var keyCodes = map[device.Key]string{
	device.KeyHome:       "KEYCODE_HOME",
	device.KeyBack:       "KEYCODE_BACK",
	device.KeyEnter:      "KEYCODE_ENTER",
	device.KeyDelete:     "KEYCODE_DEL",
	device.KeyRecents:    "KEYCODE_APP_SWITCH",
	device.KeyPower:      "KEYCODE_POWER",
	device.KeyVolumeUp:   "KEYCODE_VOLUME_UP",
	device.KeyVolumeDown: "KEYCODE_VOLUME_DOWN",
}

// PressKey sends a system key event
func (c *Controller) PressKey(ctx context.Context, key device.Key) error {
	code, ok := keyCodes[key]
	if !ok {
		return fmt.Errorf("key %s is not supported by the adb provider", key)
	}
	_, err := c.run(ctx, "shell", "input", "keyevent", code)
	return err
}

// Close releases the controller; adb connections are per-command, so
// there is nothing to tear down
func (c *Controller) Close() error {
	return nil
}

// Devices lists the serials of all attached devices
func Devices(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "adb", "devices")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("adb devices: %w", err)
	}
	return parseDeviceList(string(out)), nil
}

// parseDeviceList extracts device serials from `adb devices` output,
// skipping the header and anything not in the "device" state
func parseDeviceList(out string) []string {
	var serials []string
	for _, line := range strings.Split(out, "\n")[1:] {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == "device" {
			serials = append(serials, fields[0])
		}
	}
	return serials
}
