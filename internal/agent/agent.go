// Package agent runs the automation loop: capture the screen, overlay
// the touch grid, ask a model for the next action, perform it through
// the device controller, and validate the outcome.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	zap "go.uber.org/zap"

	config "github.com/tapgrid/cli/config"
	activity "github.com/tapgrid/cli/internal/activity"
	device "github.com/tapgrid/cli/internal/device"
	grid "github.com/tapgrid/cli/internal/grid"
	logger "github.com/tapgrid/cli/internal/logger"
)

// Vision is the slice of the vision analyzer the agent needs
type Vision interface {
	Describe(ctx context.Context, imagePNG []byte, prompt string) (string, error)
}

// Action is one step decided by the action model
type Action struct {
	Kind       string `json:"action"` // tap, long_press, swipe, type, key, done
	Cell       int    `json:"cell,omitempty"`
	TargetCell int    `json:"target_cell,omitempty"` // swipe destination
	Text       string `json:"text,omitempty"`
	Key        string `json:"key,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Runner drives one instruction to completion
type Runner struct {
	cfg        *config.Config
	controller device.Controller
	renderer   *grid.Renderer
	vision     Vision
	validator  Vision          // nil disables post-action validation
	store      *activity.Store // nil disables activity logging
}

// NewRunner wires an agent runner from its collaborators
func NewRunner(cfg *config.Config, controller device.Controller, renderer *grid.Renderer, vision Vision, store *activity.Store) *Runner {
	return &Runner{
		cfg:        cfg,
		controller: controller,
		renderer:   renderer,
		vision:     vision,
		store:      store,
	}
}

// WithValidator enables a second model that checks each action's outcome
func (r *Runner) WithValidator(v Vision) *Runner {
	r.validator = v
	return r
}

const actionPromptTemplate = `You are controlling a touchscreen device to accomplish this task:
%s

Actions taken so far: %s

Decide the single next action. Reply with only a JSON object:
  {"action": "tap", "cell": <number>, "reason": "..."}
  {"action": "long_press", "cell": <number>, "reason": "..."}
  {"action": "swipe", "cell": <number>, "target_cell": <number>, "reason": "..."}
  {"action": "type", "text": "...", "reason": "..."}
  {"action": "key", "key": "home|back|enter|delete|recents", "reason": "..."}
  {"action": "done", "reason": "..."}
Use "done" when the task is complete or cannot proceed.`

// Run executes the instruction, taking at most MaxSteps actions
func (r *Runner) Run(ctx context.Context, instruction string) error {
	session, err := r.beginSession(ctx, instruction)
	if err != nil {
		return err
	}

	sessionID := uuid.NewString()
	if session != nil {
		sessionID = session.ID
	}
	ctx = logger.WithSession(ctx, sessionID, instruction)

	history := make([]string, 0, r.cfg.Agent.MaxSteps)
	status := "failed"
	defer func() { r.finishSession(ctx, session, status) }()

	for step := 1; step <= r.cfg.Agent.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		ctx := logger.WithStep(ctx, step)

		action, spec, shot, err := r.nextAction(ctx, instruction, history)
		if err != nil {
			return err
		}

		logger.L(ctx).Info("agent step",
			zap.String("action", action.Kind),
			zap.Int("cell", action.Cell),
			zap.String("reason", action.Reason))

		if action.Kind == "done" {
			status = "completed"
			r.recordStep(ctx, session, &activity.Step{Action: "done", Detail: action.Reason, Success: true})
			return nil
		}

		x, y, err := r.perform(ctx, action, spec)
		if err != nil {
			r.recordStep(ctx, session, &activity.Step{
				Action: action.Kind, Cell: action.Cell, Detail: err.Error(), Success: false,
			})
			return fmt.Errorf("step %d (%s): %w", step, action.Kind, err)
		}

		r.recordStep(ctx, session, &activity.Step{
			Action: action.Kind, Cell: action.Cell, X: x, Y: y,
			Detail: action.Reason, ScreenshotPath: shot, Success: true,
		})

		note := fmt.Sprintf("%s(cell=%d): %s", action.Kind, action.Cell, action.Reason)
		if verdict := r.validate(ctx, instruction, action); verdict != "" {
			note += " (validation: " + verdict + ")"
		}
		history = append(history, note)
	}

	return fmt.Errorf("gave up after %d steps without completing: %s", r.cfg.Agent.MaxSteps, instruction)
}

// nextAction captures and overlays the screen, then asks the action model
// what to do. An out-of-range cell answer triggers a single re-query
// before the error propagates.
func (r *Runner) nextAction(ctx context.Context, instruction string, history []string) (Action, grid.ScreenSpec, string, error) {
	img, err := r.controller.CaptureScreen(ctx)
	if err != nil {
		return Action{}, grid.ScreenSpec{}, "", fmt.Errorf("screen capture failed: %w", err)
	}

	bounds := img.Bounds()
	spec, err := r.cfg.Grid.ScreenSpec(bounds.Dx(), bounds.Dy())
	if err != nil {
		return Action{}, grid.ScreenSpec{}, "", err
	}

	overlaid, err := r.renderer.Render(img, spec)
	if err != nil {
		return Action{}, grid.ScreenSpec{}, "", err
	}

	overlayPNG, err := grid.EncodePNG(overlaid)
	if err != nil {
		return Action{}, grid.ScreenSpec{}, "", err
	}

	shotPath := r.saveScreenshot(overlayPNG)

	prompt := fmt.Sprintf(actionPromptTemplate, instruction, historySummary(history))

	for attempt := 0; ; attempt++ {
		answer, err := r.vision.Describe(ctx, overlayPNG, prompt)
		if err != nil {
			return Action{}, spec, shotPath, err
		}

		action, err := ParseAction(answer)
		if err != nil {
			return Action{}, spec, shotPath, err
		}

		if err := validateCells(action, spec); err != nil {
			var rangeErr *grid.CellOutOfRangeError
			if errors.As(err, &rangeErr) && attempt == 0 {
				logger.L(ctx).Warn("model chose an out-of-range cell, re-querying",
					zap.Int("cell", rangeErr.Cell),
					zap.Int("total_cells", rangeErr.TotalCells))
				prompt += fmt.Sprintf("\nYour previous answer used cell %d, which does not exist. "+
					"Valid cells are 1 to %d.", rangeErr.Cell, rangeErr.TotalCells)
				continue
			}
			return Action{}, spec, shotPath, err
		}

		return action, spec, shotPath, nil
	}
}

// validateCells checks every cell reference in the action against the
// partition without clamping
func validateCells(action Action, spec grid.ScreenSpec) error {
	switch action.Kind {
	case "tap", "long_press":
		_, err := spec.CellCenter(action.Cell)
		return err
	case "swipe":
		if _, err := spec.CellCenter(action.Cell); err != nil {
			return err
		}
		_, err := spec.CellCenter(action.TargetCell)
		return err
	}
	return nil
}

// perform executes the action against the device and returns the pixel
// coordinates involved, when any
func (r *Runner) perform(ctx context.Context, action Action, spec grid.ScreenSpec) (int, int, error) {
	switch action.Kind {
	case "tap":
		center, err := spec.CellCenter(action.Cell)
		if err != nil {
			return 0, 0, err
		}
		return center.X, center.Y, r.controller.Tap(ctx, center.X, center.Y)

	case "long_press":
		center, err := spec.CellCenter(action.Cell)
		if err != nil {
			return 0, 0, err
		}
		return center.X, center.Y, r.controller.LongPress(ctx, center.X, center.Y, time.Second)

	case "swipe":
		from, err := spec.CellCenter(action.Cell)
		if err != nil {
			return 0, 0, err
		}
		to, err := spec.CellCenter(action.TargetCell)
		if err != nil {
			return 0, 0, err
		}
		return from.X, from.Y, r.controller.Swipe(ctx, from.X, from.Y, to.X, to.Y, 300*time.Millisecond)

	case "type":
		return 0, 0, r.controller.TypeText(ctx, action.Text)

	case "key":
		key, err := device.ParseKey(action.Key)
		if err != nil {
			return 0, 0, err
		}
		return 0, 0, r.controller.PressKey(ctx, key)

	default:
		return 0, 0, fmt.Errorf("unknown action %q", action.Kind)
	}
}

// ParseAction extracts the JSON action object from a model answer, which
// may be wrapped in prose or a code fence
func ParseAction(answer string) (Action, error) {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end <= start {
		return Action{}, fmt.Errorf("no action object found in answer %q", strings.TrimSpace(answer))
	}

	var action Action
	if err := json.Unmarshal([]byte(answer[start:end+1]), &action); err != nil {
		return Action{}, fmt.Errorf("could not parse action from answer: %w", err)
	}
	if action.Kind == "" {
		return Action{}, fmt.Errorf("action object is missing the \"action\" field")
	}
	return action, nil
}

// validate asks the validation model whether the last action had the
// intended effect. The verdict only feeds the next prompt; it never
// fails the run.
func (r *Runner) validate(ctx context.Context, instruction string, action Action) string {
	if r.validator == nil {
		return ""
	}

	imagePNG, err := r.controller.CaptureScreenBytes(ctx)
	if err != nil {
		logger.Warn("validation capture failed", "error", err)
		return ""
	}

	prompt := fmt.Sprintf(
		"Task: %s\nThe action %q (%s) was just performed. "+
			"Does the screen show the expected result? Answer only yes or no.",
		instruction, action.Kind, action.Reason)

	answer, err := r.validator.Describe(ctx, imagePNG, prompt)
	if err != nil {
		logger.Warn("validation query failed", "error", err)
		return ""
	}

	verdict := strings.ToLower(strings.TrimSpace(answer))
	if strings.HasPrefix(verdict, "yes") {
		return "yes"
	}
	return "no"
}

func historySummary(history []string) string {
	if len(history) == 0 {
		return "none"
	}
	return strings.Join(history, "; ")
}

func (r *Runner) beginSession(ctx context.Context, instruction string) (*activity.Session, error) {
	if r.store == nil {
		return nil, nil
	}
	return r.store.BeginSession(ctx, instruction)
}

func (r *Runner) finishSession(ctx context.Context, session *activity.Session, status string) {
	if r.store == nil || session == nil {
		return
	}
	if err := r.store.FinishSession(ctx, session.ID, status); err != nil {
		logger.Warn("failed to finish activity session", "session", session.ID, "error", err)
	}
}

func (r *Runner) recordStep(ctx context.Context, session *activity.Session, step *activity.Step) {
	if r.store == nil || session == nil {
		return
	}
	step.SessionID = session.ID
	if err := r.store.AppendStep(ctx, step); err != nil {
		logger.Warn("failed to record activity step", "session", session.ID, "error", err)
	}
}

// saveScreenshot writes the overlay PNG into the configured screenshot
// directory; failures are logged and skipped, never fatal
func (r *Runner) saveScreenshot(data []byte) string {
	dir := r.cfg.Activity.ScreenshotDir
	if !r.cfg.Activity.Enabled || dir == "" {
		return ""
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Warn("failed to create screenshot directory", "dir", dir, "error", err)
		return ""
	}

	path := filepath.Join(dir, fmt.Sprintf("step_%d.png", time.Now().UnixNano()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		logger.Warn("failed to save screenshot", "path", path, "error", err)
		return ""
	}
	return path
}
