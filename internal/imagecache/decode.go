package imagecache

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"articlewave/internal/models"
)

// Decoder превращает сырые байты в изображение.
type Decoder interface {
	Decode(key string, data []byte) (*models.Image, error)
}

// DecoderFunc адаптирует функцию к Decoder.
type DecoderFunc func(key string, data []byte) (*models.Image, error)

func (f DecoderFunc) Decode(key string, data []byte) (*models.Image, error) {
	return f(key, data)
}

// DefaultMaxPixels ограничивает площадь декодируемой миниатюры, если MaxPixels не задан.
const DefaultMaxPixels = 4096 * 4096

// StdDecoder декодирует PNG, JPEG и GIF. Размеры из заголовка проверяются до
// декодирования: картинка площадью больше MaxPixels отклоняется, не выделяя память под пиксели.
type StdDecoder struct {
	MaxPixels int
}

func (d StdDecoder) Decode(key string, data []byte) (*models.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}
	limit := d.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(limit) {
		return nil, fmt.Errorf("image dimensions %dx%d exceed limit of %d pixels", cfg.Width, cfg.Height, limit)
	}

	pixels, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bounds := pixels.Bounds()
	return &models.Image{
		Key:    key,
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Data:   data,
		Pixels: pixels,
	}, nil
}
