package inference

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
)

// jpegQuality is high enough that recompression artifacts do not change
// what a captioning model sees.
const jpegQuality = 95

// EncodeJPEG encodes an image as JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer

	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// EncodeImageBase64 encodes an image to base64 JPEG format.
func EncodeImageBase64(img image.Image) (string, error) {
	data, err := EncodeJPEG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// dataURL wraps base64 JPEG data for OpenAI-style image_url parts.
func dataURL(b64 string) string {
	return "data:image/jpeg;base64," + b64
}
