package infrastructure

import "github.com/psms-tech/go-backend/pkg/e"

// GetExtensionFromMIME возвращает расширение файла по MIME-типу изображения.
// Поддерживает форматы, которые умеет декодировать конвейер признаков.
// Возвращает ошибку e.ErrUnsupportedMediaType для неподдерживаемых типов.
func GetExtensionFromMIME(mime string) (string, error) {
	switch mime {
	case "image/jpeg", "image/jpg":
		return "jpg", nil
	case "image/png":
		return "png", nil
	case "image/webp":
		return "webp", nil
	case "image/gif":
		return "gif", nil
	case "image/bmp", "image/x-ms-bmp":
		return "bmp", nil
	case "image/tiff":
		return "tiff", nil
	default:
		return "bin", e.ErrUnsupportedMediaType
	}
}
