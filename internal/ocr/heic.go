package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// convertHEICtoPNG converts a HEIC/HEIF photo into a PNG next to it using the chosen converter.
// converter: "heif-convert" | "magick" | "sips"
func convertHEICtoPNG(ctx context.Context, r Runner, logger *slog.Logger, converter, in string) (string, error) {
	out := filepath.Join(filepath.Dir(in), "page.png")

	switch converter {
	case "heif-convert":
		if _, errb, err := r.Run(ctx, "heif-convert", logger, in, out); err != nil {
			return "", fmt.Errorf("heif-convert failed: %w: %s", err, errb)
		}
	case "magick":
		if _, errb, err := r.Run(ctx, "magick", logger, in, out); err != nil {
			return "", fmt.Errorf("magick convert failed: %w: %s", err, errb)
		}
	case "sips":
		if _, errb, err := r.Run(ctx, "sips", logger, "-s", "format", "png", in, "--out", out); err != nil {
			return "", fmt.Errorf("sips convert failed: %w: %s", err, errb)
		}
	default:
		return "", fmt.Errorf("HEIC not supported: set ocr.Config.HeicConverter to one of: heif-convert | magick | sips")
	}

	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("HEIC conversion produced no output: %v", err)
	}
	return out, nil
}
