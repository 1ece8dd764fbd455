// Package vision sends grid-overlaid screenshots to a vision model and
// turns its answers back into grid cell numbers.
package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	sdk "github.com/inference-gateway/sdk"

	config "github.com/tapgrid/cli/config"
	grid "github.com/tapgrid/cli/internal/grid"
	logger "github.com/tapgrid/cli/internal/logger"
)

// Analyzer asks a vision model questions about screenshots. The grid
// numbering convention (1-based, row-major from the top-left) is part of
// every prompt so the model's cell answers line up with the geometry.
type Analyzer struct {
	client         sdk.Client
	provider       sdk.Provider
	model          string
	timeoutSeconds int
}

// New creates an analyzer from the vision gateway settings
func New(cfg config.VisionConfig) (*Analyzer, error) {
	provider, model, err := splitModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	baseURL := cfg.GatewayURL
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
	}

	client := sdk.NewClient(&sdk.ClientOptions{
		BaseURL: baseURL,
		APIKey:  cfg.APIKey,
	})

	return &Analyzer{
		client:         client,
		provider:       sdk.Provider(provider),
		model:          model,
		timeoutSeconds: cfg.TimeoutSeconds,
	}, nil
}

// splitModel parses a "provider/model" string
func splitModel(s string) (string, string, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model %q, expected 'provider/model'", s)
	}
	return parts[0], parts[1], nil
}

const numberingNote = "The screenshot has a numbered grid overlay. " +
	"Cells are numbered starting at 1 in the top-left corner, increasing " +
	"left to right, then top to bottom."

// Describe sends the PNG screenshot and prompt to the vision model and
// returns its textual answer
func (a *Analyzer) Describe(ctx context.Context, imagePNG []byte, prompt string) (string, error) {
	message, err := imageMessage(imagePNG, prompt)
	if err != nil {
		return "", err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(a.timeoutSeconds)*time.Second)
	defer cancel()

	start := time.Now()
	response, err := a.client.GenerateContent(timeoutCtx, a.provider, a.model, []sdk.Message{
		{Role: sdk.System, Content: sdk.NewMessageContent(numberingNote)},
		message,
	})
	if err != nil {
		return "", fmt.Errorf("vision request failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("vision model returned no choices")
	}

	content, err := response.Choices[0].Message.Content.AsMessageContent0()
	if err != nil {
		return "", fmt.Errorf("failed to extract vision response content: %w", err)
	}

	logger.Debug("vision response", "model", a.model, "duration", time.Since(start), "content", content)
	return content, nil
}

// LocateCell asks the model which grid cell contains the target UI
// element and validates the answer against the partition. A model answer
// outside [1, TotalCells] surfaces as a grid.CellOutOfRangeError so the
// orchestration layer can decide whether to re-query.
func (a *Analyzer) LocateCell(ctx context.Context, imagePNG []byte, part grid.Partition, target string) (int, error) {
	prompt := fmt.Sprintf(
		"Which grid cell number contains %s? The grid has %d cells (%d columns x %d rows). "+
			"Reply with only the cell number.",
		target, part.TotalCells, part.Columns, part.Rows)

	answer, err := a.Describe(ctx, imagePNG, prompt)
	if err != nil {
		return 0, err
	}

	cell, err := ExtractCellNumber(answer)
	if err != nil {
		return 0, err
	}
	if cell < 1 || cell > part.TotalCells {
		return 0, &grid.CellOutOfRangeError{Cell: cell, TotalCells: part.TotalCells}
	}
	return cell, nil
}

// imageMessage builds a user message carrying the prompt and the
// screenshot as a data URL content part
func imageMessage(imagePNG []byte, prompt string) (sdk.Message, error) {
	textPart, err := sdk.NewTextContentPart(prompt)
	if err != nil {
		return sdk.Message{}, fmt.Errorf("failed to create text content: %w", err)
	}

	dataURL := fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(imagePNG))
	imagePart, err := sdk.NewImageContentPart(dataURL, nil)
	if err != nil {
		return sdk.Message{}, fmt.Errorf("failed to create image content: %w", err)
	}

	return sdk.Message{
		Role:    sdk.User,
		Content: sdk.NewMessageContent([]sdk.ContentPart{textPart, imagePart}),
	}, nil
}

var cellNumberRe = regexp.MustCompile(`-?\d+`)

// ExtractCellNumber pulls the first integer out of a model answer, which
// tends to arrive wrapped in prose ("The element is in cell 42.")
func ExtractCellNumber(answer string) (int, error) {
	match := cellNumberRe.FindString(answer)
	if match == "" {
		return 0, fmt.Errorf("no cell number found in answer %q", strings.TrimSpace(answer))
	}

	cell, err := strconv.Atoi(match)
	if err != nil {
		return 0, fmt.Errorf("could not parse cell number from %q: %w", match, err)
	}
	return cell, nil
}
