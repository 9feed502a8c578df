package apigw

import (
	"errors"
	"testing"
)

func TestObjectKey(t *testing.T) {
	paths := []string{
		"/a",
		"/cats/img1.jpg",
		"/cats/",
		"//double",
		"/../escape",
		"/ünïcode/файл.png",
	}

	for _, p := range paths {
		key := ObjectKey(p)
		if key != p[1:] {
			t.Errorf("ObjectKey(%q) = %q, expected %q", p, key, p[1:])
		}
		if key == "" {
			t.Errorf("ObjectKey(%q) must not be empty", p)
		}
	}

	if ObjectKey("") != "" {
		t.Error("ObjectKey of empty path must be empty")
	}
	if ObjectKey("/") != "" {
		t.Error("ObjectKey of the bare separator is the empty prefix")
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"cats/img1.jpg", false},
		{"cats/", false},
		{"", false},
		{"a..b/c", false},
		{"..hidden", false},
		{"..", true},
		{"../etc/passwd", true},
		{"cats/../dogs", true},
		{"cats/..", true},
		{"nul\x00byte", true},
	}

	for _, tt := range tests {
		err := ValidateKey(tt.key)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ValidateKey(%q) should wrap ErrInvalidKey, got %v", tt.key, err)
		}
	}
}
