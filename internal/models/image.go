package models

import "image"

// Image: декодированная миниатюра вместе с исходными байтами.
type Image struct {
	Key    string
	Format string
	Width  int
	Height int
	Data   []byte
	Pixels image.Image
}

// ImageReady: уведомление о том, что миниатюра по ключу Key загружена и закеширована.
type ImageReady struct {
	Key   string
	Image *Image
}

// Size оценивает занимаемую память: исходные байты плюс декодированные пиксели по 4 байта.
func (img *Image) Size() int64 {
	if img == nil {
		return 0
	}
	size := int64(len(img.Data))
	if img.Pixels != nil {
		b := img.Pixels.Bounds()
		size += int64(b.Dx()) * int64(b.Dy()) * 4
	}
	return size
}
