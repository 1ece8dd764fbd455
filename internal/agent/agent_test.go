package agent

import (
	"context"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/tapgrid/cli/config"
	device "github.com/tapgrid/cli/internal/device"
	grid "github.com/tapgrid/cli/internal/grid"
	logger "github.com/tapgrid/cli/internal/logger"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name        string
		answer      string
		expected    Action
		expectError bool
	}{
		{
			name:     "bare json",
			answer:   `{"action": "tap", "cell": 42, "reason": "open settings"}`,
			expected: Action{Kind: "tap", Cell: 42, Reason: "open settings"},
		},
		{
			name:     "json in code fence",
			answer:   "```json\n{\"action\": \"done\", \"reason\": \"finished\"}\n```",
			expected: Action{Kind: "done", Reason: "finished"},
		},
		{
			name:     "json wrapped in prose",
			answer:   `Sure! Here is the next step: {"action": "swipe", "cell": 10, "target_cell": 100}`,
			expected: Action{Kind: "swipe", Cell: 10, TargetCell: 100},
		},
		{
			name:        "no json",
			answer:      "tap cell 42",
			expectError: true,
		},
		{
			name:        "missing action field",
			answer:      `{"cell": 42}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := ParseAction(tt.answer)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, action)
		})
	}
}

func TestValidateCells(t *testing.T) {
	spec := grid.ScreenSpec{WidthPx: 1080, HeightPx: 2400, CellSizePx: 91} // 324 cells

	tests := []struct {
		name        string
		action      Action
		expectError bool
	}{
		{name: "valid tap", action: Action{Kind: "tap", Cell: 1}},
		{name: "tap past the end", action: Action{Kind: "tap", Cell: 325}, expectError: true},
		{name: "valid swipe", action: Action{Kind: "swipe", Cell: 10, TargetCell: 300}},
		{name: "swipe with bad target", action: Action{Kind: "swipe", Cell: 10, TargetCell: 0}, expectError: true},
		{name: "type needs no cell", action: Action{Kind: "type", Text: "hello"}},
		{name: "done needs no cell", action: Action{Kind: "done"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCells(tt.action, spec)
			if tt.expectError {
				var rangeErr *grid.CellOutOfRangeError
				require.ErrorAs(t, err, &rangeErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

// fakeController records actions instead of touching a device
type fakeController struct {
	width  int
	height int
	taps   []image.Point
	typed  []string
	keys   []device.Key
}

func (f *fakeController) ScreenSize(context.Context) (int, int, error) {
	return f.width, f.height, nil
}

func (f *fakeController) CaptureScreen(context.Context) (image.Image, error) {
	return image.NewNRGBA(image.Rect(0, 0, f.width, f.height)), nil
}

func (f *fakeController) CaptureScreenBytes(ctx context.Context) ([]byte, error) {
	img, _ := f.CaptureScreen(ctx)
	return grid.EncodePNG(img)
}

func (f *fakeController) Tap(_ context.Context, x, y int) error {
	f.taps = append(f.taps, image.Pt(x, y))
	return nil
}

func (f *fakeController) LongPress(_ context.Context, x, y int, _ time.Duration) error {
	f.taps = append(f.taps, image.Pt(x, y))
	return nil
}

func (f *fakeController) Swipe(_ context.Context, x0, y0, _, _ int, _ time.Duration) error {
	f.taps = append(f.taps, image.Pt(x0, y0))
	return nil
}

func (f *fakeController) TypeText(_ context.Context, text string) error {
	f.typed = append(f.typed, text)
	return nil
}

func (f *fakeController) PressKey(_ context.Context, key device.Key) error {
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeController) Close() error { return nil }

// scriptedVision returns canned answers in order
type scriptedVision struct {
	answers []string
	calls   int
	prompts []string
}

func (s *scriptedVision) Describe(_ context.Context, _ []byte, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.calls >= len(s.answers) {
		return "", fmt.Errorf("no more scripted answers")
	}
	answer := s.answers[s.calls]
	s.calls++
	return answer, nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Grid.CellSizePx = 91
	cfg.Activity.Enabled = false
	cfg.Agent.MaxSteps = 5
	return cfg
}

func TestRun_TapThenDone(t *testing.T) {
	controller := &fakeController{width: 1080, height: 2400}
	vision := &scriptedVision{answers: []string{
		`{"action": "tap", "cell": 1, "reason": "tap the icon"}`,
		`{"action": "done", "reason": "task complete"}`,
	}}

	runner := NewRunner(testConfig(), controller, grid.NewRenderer(grid.DefaultStyle()), vision, nil)
	err := runner.Run(context.Background(), "open the app")
	require.NoError(t, err)

	require.Len(t, controller.taps, 1)
	assert.Equal(t, image.Pt(45, 45), controller.taps[0])
}

func TestRun_RequeriesOnceOnOutOfRangeCell(t *testing.T) {
	controller := &fakeController{width: 1080, height: 2400}
	vision := &scriptedVision{answers: []string{
		`{"action": "tap", "cell": 999, "reason": "hallucinated"}`,
		`{"action": "tap", "cell": 12, "reason": "corrected"}`,
		`{"action": "done", "reason": "finished"}`,
	}}

	ctx, logs := logger.ObservedContext()
	runner := NewRunner(testConfig(), controller, grid.NewRenderer(grid.DefaultStyle()), vision, nil)
	err := runner.Run(ctx, "tap the corner")
	require.NoError(t, err)

	// The retry prompt names the invalid cell and the valid range.
	require.GreaterOrEqual(t, len(vision.prompts), 2)
	assert.Contains(t, vision.prompts[1], "cell 999")
	assert.Contains(t, vision.prompts[1], "1 to 324")

	assert.Equal(t, 1, logs.FilterMessage("model chose an out-of-range cell, re-querying").Len())

	require.Len(t, controller.taps, 1)
	assert.Equal(t, image.Pt(1040, 45), controller.taps[0])
}

func TestRun_PersistentOutOfRangeFails(t *testing.T) {
	controller := &fakeController{width: 1080, height: 2400}
	vision := &scriptedVision{answers: []string{
		`{"action": "tap", "cell": 999}`,
		`{"action": "tap", "cell": 1000}`,
	}}

	runner := NewRunner(testConfig(), controller, grid.NewRenderer(grid.DefaultStyle()), vision, nil)
	err := runner.Run(context.Background(), "tap something")

	var rangeErr *grid.CellOutOfRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Empty(t, controller.taps)
}

func TestRun_GivesUpAfterMaxSteps(t *testing.T) {
	controller := &fakeController{width: 1080, height: 2400}
	vision := &scriptedVision{answers: []string{
		`{"action": "key", "key": "back"}`,
		`{"action": "key", "key": "back"}`,
		`{"action": "key", "key": "back"}`,
	}}

	cfg := testConfig()
	cfg.Agent.MaxSteps = 3

	runner := NewRunner(cfg, controller, grid.NewRenderer(grid.DefaultStyle()), vision, nil)
	err := runner.Run(context.Background(), "never finishes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gave up after 3 steps")
	assert.Len(t, controller.keys, 3)
}
