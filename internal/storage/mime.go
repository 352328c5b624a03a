package storage

import (
	"path"
	"strings"
)

// Допустимые MIME-типы загружаемых файлов.
const (
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEXLS  = "application/vnd.ms-excel"
	MIMEPDF  = "application/pdf"
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEWEBP = "image/webp"
	MIMEGIF  = "image/gif"
)

// DefaultContentType — тип для неизвестных расширений.
const DefaultContentType = "application/octet-stream"

var allowedUploadTypes = map[string]bool{
	MIMEXLSX: true,
	MIMEXLS:  true,
	MIMEPDF:  true,
	MIMEJPEG: true,
	MIMEPNG:  true,
	MIMEWEBP: true,
	MIMEGIF:  true,
}

var typesByExt = map[string]string{
	"pdf":  MIMEPDF,
	"jpg":  MIMEJPEG,
	"jpeg": MIMEJPEG,
	"png":  MIMEPNG,
	"gif":  MIMEGIF,
	"webp": MIMEWEBP,
	"xlsx": MIMEXLSX,
	"xls":  MIMEXLS,
}

// AllowedUploadType проверяет заявленный MIME-тип по белому списку.
// Параметры типа (;charset=...) игнорируются.
func AllowedUploadType(contentType string) bool {
	mt, _, _ := strings.Cut(contentType, ";")
	return allowedUploadTypes[strings.ToLower(strings.TrimSpace(mt))]
}

// ContentTypeByName определяет тип отдаваемого файла по расширению.
func ContentTypeByName(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ct, ok := typesByExt[ext]; ok {
		return ct
	}
	return DefaultContentType
}
