package apigw

import (
	"mime"
	"path"
	"strings"
)

// DefaultContentType - тип ответа GetObject, если определить тип не удалось
const DefaultContentType = "image/jpeg"

// ContentTypes определяет Content-Type объектов по метаданным и расширению ключа
type ContentTypes struct {
	// Default - тип по умолчанию
	Default string `yaml:"default_content_type"`

	// Detect - определять тип по метаданным и расширению.
	// При false всегда используется Default.
	Detect bool `yaml:"detect_content_type"`
}

// DefaultContentTypes возвращает настройки по умолчанию
func DefaultContentTypes() ContentTypes {
	return ContentTypes{Default: DefaultContentType, Detect: true}
}

// isGeneric - тип, который S3 ставит, когда клиент ничего не указал
func isGeneric(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "", "application/octet-stream", "binary/octet-stream":
		return true
	}
	return false
}

// ForKey возвращает тип по расширению ключа или пустую строку
func (c ContentTypes) ForKey(key string) string {
	if !c.Detect {
		return ""
	}
	return mime.TypeByExtension(path.Ext(key))
}

// Resolve выбирает тип ответа: метаданные хранилища, затем расширение, затем Default
func (c ContentTypes) Resolve(key, stored string) string {
	def := c.Default
	if def == "" {
		def = DefaultContentType
	}
	if !c.Detect {
		return def
	}
	if !isGeneric(stored) {
		return stored
	}
	if byExt := c.ForKey(key); byExt != "" {
		return byExt
	}
	return def
}
