package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/parcel-intake/internal/core/domain"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreprocess_ProducesJPEG(t *testing.T) {
	out, err := Preprocess(pngBytes(t, 120, 80))
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Equal(t, 80, img.Bounds().Dy())
}

func TestPreprocess_ShrinksLargeImages(t *testing.T) {
	big := imaging.New(maxSide*2, 100, color.White)
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, big, imaging.PNG))

	out, err := Preprocess(buf.Bytes())
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, maxSide, img.Bounds().Dx())
}

func TestPreprocess_Rejects(t *testing.T) {
	_, err := Preprocess([]byte("definitely not an image"))
	assert.True(t, errors.Is(err, domain.ErrUnreadableLabel))

	_, err = Preprocess(pngBytes(t, 10, 10))
	assert.True(t, errors.Is(err, domain.ErrUnreadableLabel))
}

type fakeRecognizer struct {
	result computervision.OcrResult
	err    error
	got    []byte
}

func (f *fakeRecognizer) RecognizePrintedTextInStream(_ context.Context, _ bool, img io.ReadCloser, _ computervision.OcrLanguages) (computervision.OcrResult, error) {
	f.got, _ = io.ReadAll(img)
	return f.result, f.err
}

func str(s string) *string { return &s }

func words(ws ...string) *[]computervision.OcrWord {
	out := make([]computervision.OcrWord, len(ws))
	for i, w := range ws {
		out[i] = computervision.OcrWord{Text: str(w)}
	}
	return &out
}

func TestReadLabel_JoinsLines(t *testing.T) {
	fake := &fakeRecognizer{result: computervision.OcrResult{
		Regions: &[]computervision.OcrRegion{
			{Lines: &[]computervision.OcrLine{
				{Words: words("SHIP", "TO:", "JANE", "DOE")},
				{Words: words("TRACKING", "#:", "1Z", "999", "AA1", "01", "2345", "6784")},
			}},
			{Lines: &[]computervision.OcrLine{{Words: nil}}},
		},
	}}
	r := &LabelReader{client: fake, language: computervision.OcrLanguages(computervision.En), log: zerolog.Nop()}

	text, err := r.ReadLabel(context.Background(), pngBytes(t, 64, 64))
	require.NoError(t, err)
	assert.Equal(t, "SHIP TO: JANE DOE\nTRACKING #: 1Z 999 AA1 01 2345 6784", text)
	assert.NotEmpty(t, fake.got, "preprocessed image is sent")
}

func TestReadLabel_ServiceError(t *testing.T) {
	fake := &fakeRecognizer{err: errors.New("401 unauthorized")}
	r := &LabelReader{client: fake, language: computervision.OcrLanguages(computervision.En), log: zerolog.Nop()}

	_, err := r.ReadLabel(context.Background(), pngBytes(t, 64, 64))
	assert.Error(t, err)
}
