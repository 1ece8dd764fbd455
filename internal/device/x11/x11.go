// Package x11 targets an X11 desktop, so grid-driven automation can be
// exercised against emulators or ordinary applications without a phone
// attached. Capture goes through the root drawable; input is synthesized
// with the XTEST extension.
package x11

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	xgb "github.com/BurntSushi/xgb"
	xproto "github.com/BurntSushi/xgb/xproto"
	xtest "github.com/BurntSushi/xgb/xtest"
	xgbutil "github.com/BurntSushi/xgbutil"
	keybind "github.com/BurntSushi/xgbutil/keybind"
	xgraphics "github.com/BurntSushi/xgbutil/xgraphics"

	device "github.com/tapgrid/cli/internal/device"
	logger "github.com/tapgrid/cli/internal/logger"
)

func init() {
	device.Register(&Provider{})
}

// Provider creates X11-backed controllers
type Provider struct{}

// Info returns metadata about the X11 provider
func (p *Provider) Info() device.Info {
	return device.Info{
		Name:           "x11",
		SupportsSwipe:  true,
		SupportsKeys:   true,
		RequiresTarget: false,
	}
}

// IsAvailable reports whether an X11 display is reachable
func (p *Provider) IsAvailable() bool {
	return os.Getenv("DISPLAY") != ""
}

// Controller connects to the given display, defaulting to $DISPLAY
func (p *Provider) Controller(display string) (device.Controller, error) {
	xu, err := xgbutil.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11 display %s: %w", display, err)
	}

	if err := xtest.Init(xu.Conn()); err != nil {
		return nil, fmt.Errorf("failed to initialize XTEST extension: %w", err)
	}

	keybind.Initialize(xu)

	logger.Debug("connected to X11 display", "display", display)

	return &Controller{
		xu:     xu,
		conn:   xu.Conn(),
		screen: xproto.Setup(xu.Conn()).DefaultScreen(xu.Conn()),
	}, nil
}

// Controller performs actions on an X11 screen
type Controller struct {
	xu     *xgbutil.XUtil
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
}

// Close closes the X11 connection
func (c *Controller) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}

// ScreenSize returns the screen width and height
func (c *Controller) ScreenSize(_ context.Context) (int, int, error) {
	return int(c.screen.WidthInPixels), int(c.screen.HeightInPixels), nil
}

// CaptureScreen captures a screenshot of the entire screen
func (c *Controller) CaptureScreen(_ context.Context) (image.Image, error) {
	ximg, err := xgraphics.NewDrawable(c.xu, xproto.Drawable(c.screen.Root))
	if err != nil {
		return nil, fmt.Errorf("failed to create drawable: %w", err)
	}
	return ximg, nil
}

// CaptureScreenBytes captures a screenshot and returns it as PNG bytes
func (c *Controller) CaptureScreenBytes(ctx context.Context) ([]byte, error) {
	img, err := c.CaptureScreen(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// moveTo warps the pointer to absolute coordinates
func (c *Controller) moveTo(x, y int) error {
	err := xproto.WarpPointerChecked(
		c.conn,
		xproto.WindowNone,
		c.screen.Root,
		0, 0,
		0, 0,
		int16(x), int16(y),
	).Check()
	if err != nil {
		return fmt.Errorf("failed to move pointer: %w", err)
	}
	c.conn.Sync()
	return nil
}

// pressButton sends a button press or release at the current pointer position
func (c *Controller) pressButton(event byte) error {
	cookie := xtest.FakeInputChecked(c.conn, event, 1, 0, c.screen.Root, 0, 0, 0)
	if err := cookie.Check(); err != nil {
		return fmt.Errorf("failed to send button event: %w", err)
	}
	return nil
}

// Tap clicks the left button at the given coordinates
func (c *Controller) Tap(_ context.Context, x, y int) error {
	if err := c.moveTo(x, y); err != nil {
		return err
	}
	if err := c.pressButton(xproto.ButtonPress); err != nil {
		return err
	}
	time.Sleep(50 * time.Millisecond)
	if err := c.pressButton(xproto.ButtonRelease); err != nil {
		return err
	}
	c.conn.Sync()
	return nil
}

// LongPress holds the left button at the given coordinates
func (c *Controller) LongPress(_ context.Context, x, y int, duration time.Duration) error {
	if err := c.moveTo(x, y); err != nil {
		return err
	}
	if err := c.pressButton(xproto.ButtonPress); err != nil {
		return err
	}
	time.Sleep(duration)
	if err := c.pressButton(xproto.ButtonRelease); err != nil {
		return err
	}
	c.conn.Sync()
	return nil
}

// Swipe drags the pointer from (x0,y0) to (x1,y1) in small steps over the
// given duration
func (c *Controller) Swipe(_ context.Context, x0, y0, x1, y1 int, duration time.Duration) error {
	const steps = 20
	if duration <= 0 {
		duration = 300 * time.Millisecond
	}

	if err := c.moveTo(x0, y0); err != nil {
		return err
	}
	if err := c.pressButton(xproto.ButtonPress); err != nil {
		return err
	}

	stepDelay := duration / steps
	for i := 1; i <= steps; i++ {
		x := x0 + (x1-x0)*i/steps
		y := y0 + (y1-y0)*i/steps
		if err := c.moveTo(x, y); err != nil {
			return err
		}
		time.Sleep(stepDelay)
	}

	if err := c.pressButton(xproto.ButtonRelease); err != nil {
		return err
	}
	c.conn.Sync()
	return nil
}

// TypeText types the given text by synthesizing key events. Characters
// without a keycode on the current layout are skipped.
func (c *Controller) TypeText(_ context.Context, text string) error {
	for _, char := range text {
		keyStr, needsShift := mapChar(char)

		keycodes := keybind.StrToKeycodes(c.xu, keyStr)
		if len(keycodes) == 0 {
			logger.Debug("no keycode for character", "char", string(char))
			continue
		}

		if err := c.typeKeycode(keycodes[0], needsShift); err != nil {
			return err
		}
	}
	c.conn.Sync()
	return nil
}

// shiftedChars maps characters that need the shift modifier to their X11 key names
var shiftedChars = map[rune]string{
	'!': "exclam", '@': "at", '#': "numbersign", '$': "dollar",
	'%': "percent", '^': "asciicircum", '&': "ampersand", '*': "asterisk",
	'(': "parenleft", ')': "parenright", '_': "underscore", '+': "plus",
	'?': "question", ':': "colon", '"': "quotedbl", '~': "asciitilde",
}

// plainChars maps unshifted punctuation to X11 key names
var plainChars = map[rune]string{
	'.': "period", ',': "comma", ';': "semicolon", '\'': "apostrophe",
	'/': "slash", '\\': "backslash", '-': "minus", '=': "equal",
	' ': "space", '\n': "Return", '\t': "Tab",
}

// mapChar converts a character to its X11 key name and shift requirement
func mapChar(char rune) (string, bool) {
	if char >= 'A' && char <= 'Z' {
		return string(char + 'a' - 'A'), true
	}
	if keyStr, ok := shiftedChars[char]; ok {
		return keyStr, true
	}
	if keyStr, ok := plainChars[char]; ok {
		return keyStr, false
	}
	return string(char), false
}

// typeKeycode presses and releases a single key, optionally under shift
func (c *Controller) typeKeycode(keycode xproto.Keycode, needsShift bool) error {
	if needsShift {
		shiftKeycodes := keybind.StrToKeycodes(c.xu, "Shift_L")
		if len(shiftKeycodes) > 0 {
			_ = xtest.FakeInput(c.conn, xproto.KeyPress, byte(shiftKeycodes[0]), 0, c.screen.Root, 0, 0, 0)
			defer func() {
				_ = xtest.FakeInput(c.conn, xproto.KeyRelease, byte(shiftKeycodes[0]), 0, c.screen.Root, 0, 0, 0)
			}()
		}
	}

	_ = xtest.FakeInput(c.conn, xproto.KeyPress, byte(keycode), 0, c.screen.Root, 0, 0, 0)
	time.Sleep(5 * time.Millisecond)
	_ = xtest.FakeInput(c.conn, xproto.KeyRelease, byte(keycode), 0, c.screen.Root, 0, 0, 0)
	return nil
}

// keyNames maps the device key enumeration onto desktop equivalents
var keyNames = map[device.Key]string{
	device.KeyHome:   "Super_L",
	device.KeyBack:   "Escape",
	device.KeyEnter:  "Return",
	device.KeyDelete: "BackSpace",
}

// PressKey presses a system key. Android-only keys have no desktop
// equivalent and are rejected.
func (c *Controller) PressKey(_ context.Context, key device.Key) error {
	name, ok := keyNames[key]
	if !ok {
		return fmt.Errorf("key %s is not supported by the x11 provider", key)
	}

	keycodes := keybind.StrToKeycodes(c.xu, name)
	if len(keycodes) == 0 {
		return fmt.Errorf("no keycode for key %s", key)
	}
	return c.typeKeycode(keycodes[0], false)
}
