package apigw

import (
	"fmt"
	"strings"
)

// Separator разделяет сегменты пути и ключа.
const Separator = "/"

// ObjectKey возвращает ключ объекта: путь без ровно одного первого символа.
// Никакой другой нормализации не выполняется.
func ObjectKey(path string) string {
	if path == "" {
		return ""
	}
	return path[1:]
}

// IsListing сообщает, адресует ли путь "каталог".
func IsListing(path string) bool {
	return strings.HasSuffix(path, Separator)
}

// ValidateKey отклоняет ключи с сегментом ".." и с нулевым байтом.
// Вызывается парсером, только если включен reject_parent_segments.
func ValidateKey(key string) error {
	if strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: contains NUL byte", ErrInvalidKey)
	}
	for _, segment := range strings.Split(key, Separator) {
		if segment == ".." {
			return fmt.Errorf("%w: %q contains a parent directory segment", ErrInvalidKey, key)
		}
	}
	return nil
}
