// Package ocr reads photographed shipping labels with Azure Computer Vision.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/99minutos/parcel-intake/internal/core/domain"
	"github.com/99minutos/parcel-intake/internal/core/ports"
)

const (
	// Computer Vision rejects images above 4200px on either side.
	maxSide     = 3200
	minSide     = 50
	jpegQuality = 90
)

// recognizer is the part of computervision.BaseClient used here.
type recognizer interface {
	RecognizePrintedTextInStream(ctx context.Context, detectOrientation bool, imageParameter io.ReadCloser, language computervision.OcrLanguages) (computervision.OcrResult, error)
}

// Config configures the Computer Vision client.
type Config struct {
	Endpoint string
	Key      string
	Language string
}

// LabelReader implements ports.LabelReader.
type LabelReader struct {
	client   recognizer
	language computervision.OcrLanguages
	log      zerolog.Logger
}

var _ ports.LabelReader = (*LabelReader)(nil)

func NewLabelReader(cfg Config, log zerolog.Logger) *LabelReader {
	client := computervision.New(cfg.Endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(cfg.Key)

	lang := computervision.OcrLanguages(cfg.Language)
	if lang == "" {
		lang = computervision.OcrLanguages(computervision.En)
	}
	return &LabelReader{client: client, language: lang, log: log}
}

// ReadLabel cleans up the photo and returns the recognised text, one label
// line per output line.
func (r *LabelReader) ReadLabel(ctx context.Context, img []byte) (string, error) {
	prepared, err := Preprocess(img)
	if err != nil {
		return "", err
	}

	result, err := r.client.RecognizePrintedTextInStream(ctx, true, io.NopCloser(bytes.NewReader(prepared)), r.language)
	if err != nil {
		return "", fmt.Errorf("recognize label text: %w", err)
	}

	text := resultText(result)
	r.log.Debug().Int("bytes_in", len(img)).Int("bytes_sent", len(prepared)).Int("lines", strings.Count(text, "\n")+1).Msg("label recognised")
	return text, nil
}

// Preprocess decodes an uploaded photo and returns a grayscale, contrast
// boosted, sharpened JPEG sized for the OCR service.
func Preprocess(raw []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreadableLabel, err)
	}
	b := src.Bounds()
	if b.Dx() < minSide || b.Dy() < minSide {
		return nil, fmt.Errorf("%w: %dx%d is too small", domain.ErrUnreadableLabel, b.Dx(), b.Dy())
	}

	var img image.Image = src
	if b.Dx() > maxSide || b.Dy() > maxSide {
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	}
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 30)
	gray = imaging.Sharpen(gray, 1.5)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, gray, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode label image: %w", err)
	}
	return buf.Bytes(), nil
}

func resultText(result computervision.OcrResult) string {
	if result.Regions == nil {
		return ""
	}
	var lines []string
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			words := make([]string, 0, len(*line.Words))
			for _, w := range *line.Words {
				if w.Text != nil {
					words = append(words, *w.Text)
				}
			}
			if len(words) > 0 {
				lines = append(lines, strings.Join(words, " "))
			}
		}
	}
	return strings.Join(lines, "\n")
}
