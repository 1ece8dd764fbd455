// Package robot is a portable desktop provider built on RobotGo. It
// covers macOS and Windows, where the X11 provider cannot run.
package robot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	robotgo "github.com/go-vgo/robotgo"

	device "github.com/tapgrid/cli/internal/device"
)

func init() {
	device.Register(&Provider{})
}

// Provider creates RobotGo-backed controllers
type Provider struct{}

// Info returns metadata about the robot provider
func (p *Provider) Info() device.Info {
	return device.Info{
		Name:           "robot",
		SupportsSwipe:  true,
		SupportsKeys:   true,
		RequiresTarget: false,
	}
}

// IsAvailable reports whether RobotGo can see a screen
func (p *Provider) IsAvailable() bool {
	w, h := robotgo.GetScreenSize()
	return w > 0 && h > 0
}

// Controller returns a controller for the primary display; RobotGo has no
// notion of a selectable target
func (p *Provider) Controller(_ string) (device.Controller, error) {
	w, h := robotgo.GetScreenSize()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("no screen detected")
	}
	return &Controller{width: w, height: h}, nil
}

// Controller performs actions on the primary display via RobotGo
type Controller struct {
	width  int
	height int
}

// ScreenSize returns the primary display dimensions
func (c *Controller) ScreenSize(_ context.Context) (int, int, error) {
	return c.width, c.height, nil
}

// CaptureScreen captures the entire primary display
func (c *Controller) CaptureScreen(_ context.Context) (image.Image, error) {
	bitmap := robotgo.CaptureScreen(0, 0, c.width, c.height)
	if bitmap == nil {
		return nil, fmt.Errorf("failed to capture screen")
	}
	defer robotgo.FreeBitmap(bitmap)

	img := robotgo.ToImage(bitmap)
	if img == nil {
		return nil, fmt.Errorf("failed to convert bitmap to image")
	}
	return img, nil
}

// CaptureScreenBytes captures the screen and returns it as PNG bytes
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

// checkBounds rejects coordinates outside the screen
func (c *Controller) checkBounds(x, y int) error {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return fmt.Errorf("coordinates (%d,%d) outside screen bounds %dx%d", x, y, c.width, c.height)
	}
	return nil
}

// Tap clicks the left button at the given coordinates
func (c *Controller) Tap(_ context.Context, x, y int) error {
	if err := c.checkBounds(x, y); err != nil {
		return err
	}
	robotgo.Move(x, y)
	robotgo.Click("left", false)
	return nil
}

// LongPress holds the left button at the given coordinates
func (c *Controller) LongPress(_ context.Context, x, y int, duration time.Duration) error {
	if err := c.checkBounds(x, y); err != nil {
		return err
	}
	robotgo.Move(x, y)
	if err := robotgo.Toggle("left", "down"); err != nil {
		return fmt.Errorf("failed to press button: %w", err)
	}
	time.Sleep(duration)
	if err := robotgo.Toggle("left", "up"); err != nil {
		return fmt.Errorf("failed to release button: %w", err)
	}
	return nil
}

// Swipe drags from (x0,y0) to (x1,y1) over the given duration
func (c *Controller) Swipe(_ context.Context, x0, y0, x1, y1 int, duration time.Duration) error {
	if err := c.checkBounds(x0, y0); err != nil {
		return err
	}
	if err := c.checkBounds(x1, y1); err != nil {
		return err
	}

	const steps = 20
	if duration <= 0 {
		duration = 300 * time.Millisecond
	}

	robotgo.Move(x0, y0)
	if err := robotgo.Toggle("left", "down"); err != nil {
		return fmt.Errorf("failed to press button: %w", err)
	}

	stepDelay := duration / steps
	for i := 1; i <= steps; i++ {
		robotgo.Move(x0+(x1-x0)*i/steps, y0+(y1-y0)*i/steps)
		time.Sleep(stepDelay)
	}

	if err := robotgo.Toggle("left", "up"); err != nil {
		return fmt.Errorf("failed to release button: %w", err)
	}
	return nil
}

// TypeText types the given text
func (c *Controller) TypeText(_ context.Context, text string) error {
	robotgo.TypeStr(text)
	return nil
}

// keyTaps maps the device key enumeration onto RobotGo key names
var keyTaps = map[device.Key]string{
	device.KeyHome:   "cmd",
	device.KeyBack:   "esc",
	device.KeyEnter:  "enter",
	device.KeyDelete: "backspace",
}

// PressKey presses a system key. Android-only keys have no desktop
// equivalent and are rejected.
func (c *Controller) PressKey(_ context.Context, key device.Key) error {
	name, ok := keyTaps[key]
	if !ok {
		return fmt.Errorf("key %s is not supported by the robot provider", key)
	}
	return robotgo.KeyTap(name)
}

// Close releases the controller; RobotGo holds no connection state
func (c *Controller) Close() error {
	return nil
}
