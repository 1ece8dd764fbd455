package device

import (
	"context"
	"image"
	"time"
)

// Controller abstracts a touch target: an Android device over adb, an X11
// desktop, or a portable robotgo-driven desktop. Coordinates are absolute
// screen pixels, matching what grid.ScreenSpec.CellCenter produces.
type Controller interface {
	// Screen operations
	ScreenSize(ctx context.Context) (width, height int, err error)
	CaptureScreen(ctx context.Context) (image.Image, error)
	CaptureScreenBytes(ctx context.Context) ([]byte, error)

	// Touch operations
	Tap(ctx context.Context, x, y int) error
	LongPress(ctx context.Context, x, y int, duration time.Duration) error
	Swipe(ctx context.Context, x0, y0, x1, y1 int, duration time.Duration) error

	// Input operations
	TypeText(ctx context.Context, text string) error
	PressKey(ctx context.Context, key Key) error

	// Lifecycle
	Close() error
}

// Info contains metadata about a device provider
type Info struct {
	Name           string // "adb", "x11", "robot"
	SupportsSwipe  bool
	SupportsKeys   bool
	RequiresTarget bool // provider needs an explicit target (serial, display)
}

// Provider creates Controller instances for a class of devices
type Provider interface {
	// Controller connects to the given target; an empty target picks the
	// provider's default device
	Controller(target string) (Controller, error)

	// Info returns metadata about the provider
	Info() Info

	// IsAvailable returns true if this provider can run on the current system
	IsAvailable() bool
}
