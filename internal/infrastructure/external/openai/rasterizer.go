package openai

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
)

// maxPDFPages caps how many pages of a PDF receipt are sent for recognition
const maxPDFPages = 2

// PDFRasterizer renders PDF pages to JPEG images
type PDFRasterizer interface {
	Rasterize(content []byte) ([][]byte, error)
}

type fitzRasterizer struct {
	quality int
}

// NewPDFRasterizer creates a MuPDF backed rasterizer
func NewPDFRasterizer() PDFRasterizer {
	return &fitzRasterizer{quality: 85}
}

// Rasterize converts up to the first two pages of a PDF into JPEG bytes
func (r *fitzRasterizer) Rasterize(content []byte) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	if pages > maxPDFPages {
		pages = maxPDFPages
	}

	images := make([][]byte, 0, pages)
	for i := 0; i < pages; i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", i+1, err)
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", i+1, err)
		}
		images = append(images, buf.Bytes())
	}

	return images, nil
}
