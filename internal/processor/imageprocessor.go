// imageprocessor.go - Page preparation before pages are sent to the model

package processor

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// PrepareOptions controls PreparePage
type PrepareOptions struct {
	// MaxDimension caps the longest side in pixels; 0 disables resizing.
	MaxDimension int
	// Enhance applies adaptive contrast and sharpening for faint scans.
	Enhance bool
}

// PreparePage resizes and optionally enhances one page image.
func PreparePage(img image.Image, opts PrepareOptions) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if opts.MaxDimension > 0 && (width > opts.MaxDimension || height > opts.MaxDimension) {
		if width > height {
			img = imaging.Resize(img, opts.MaxDimension, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, opts.MaxDimension, imaging.Lanczos)
		}
	}

	if !opts.Enhance {
		return img
	}

	qualityScore := analyzeImageQuality(img)
	if qualityScore < 50 {
		img = applyAggressiveEnhancement(img)
	} else if qualityScore < 75 {
		img = applyStandardEnhancement(img)
	} else {
		img = applyLightEnhancement(img)
	}

	// Final pass for small print such as guarantee numbers
	return imaging.Sharpen(img, 1.0)
}

// EncodePNG encodes a page for the model request.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode page: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePages prepares and PNG-encodes pages, preserving order.
func EncodePages(pages []PageImage, opts PrepareOptions) ([][]byte, error) {
	out := make([][]byte, 0, len(pages))
	for _, p := range pages {
		data, err := EncodePNG(PreparePage(p.Image, opts))
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", p.Index, err)
		}
		out = append(out, data)
	}
	return out, nil
}

// analyzeImageQuality returns a quality score (0-100) from sampled
// brightness and contrast.
func analyzeImageQuality(img image.Image) float64 {
	bounds := img.Bounds()

	var totalBrightness float64
	var minBrightness float64 = 255
	var maxBrightness float64 = 0
	pixelCount := 0

	// Sample every 10th pixel
	for y := bounds.Min.Y; y < bounds.Max.Y; y += 10 {
		for x := bounds.Min.X; x < bounds.Max.X; x += 10 {
			r, g, b, _ := img.At(x, y).RGBA()
			brightness := (float64(r>>8) + float64(g>>8) + float64(b>>8)) / 3.0

			totalBrightness += brightness
			if brightness < minBrightness {
				minBrightness = brightness
			}
			if brightness > maxBrightness {
				maxBrightness = brightness
			}
			pixelCount++
		}
	}
	if pixelCount == 0 {
		return 0
	}

	avgBrightness := totalBrightness / float64(pixelCount)
	contrast := maxBrightness - minBrightness

	// Ideal: avgBrightness = 128, contrast = 200+
	brightnessScore := 100.0 - math.Abs(avgBrightness-128.0)/1.28
	contrastScore := math.Min(contrast/2.0, 100.0)

	// Weight: 40% brightness, 60% contrast
	return (brightnessScore * 0.4) + (contrastScore * 0.6)
}

// applyLightEnhancement for good quality images
func applyLightEnhancement(img image.Image) image.Image {
	result := imaging.Sharpen(img, 2.0)
	result = imaging.AdjustContrast(result, 30)
	result = imaging.Grayscale(result)
	result = imaging.AdjustContrast(result, 20)
	return imaging.AdjustGamma(result, 1.05)
}

// applyStandardEnhancement for medium quality images
func applyStandardEnhancement(img image.Image) image.Image {
	result := imaging.Sharpen(img, 3.0)
	result = imaging.AdjustContrast(result, 45)
	result = imaging.AdjustBrightness(result, 15)
	result = imaging.Grayscale(result)
	result = imaging.AdjustContrast(result, 35)
	return imaging.AdjustGamma(result, 1.15)
}

// applyAggressiveEnhancement for poor quality images
func applyAggressiveEnhancement(img image.Image) image.Image {
	result := imaging.Sharpen(img, 4.0)
	result = imaging.AdjustContrast(result, 60)
	result = imaging.AdjustBrightness(result, 25)
	result = imaging.Grayscale(result)
	result = imaging.AdjustContrast(result, 55)
	result = imaging.AdjustGamma(result, 1.3)

	// Blur then re-sharpen to drop speckle noise from stamps
	result = imaging.Blur(result, 0.5)
	result = imaging.Sharpen(result, 2.5)

	return imaging.AdjustContrast(result, 20)
}
