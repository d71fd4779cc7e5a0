package utils

import (
	"strings"
	"unsafe"
)

func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return *(*string)(unsafe.Pointer(&b))
}

// ExpandMediaURL turns a stored file name into a public URL. Absolute URLs and
// data URIs are returned untouched.
func ExpandMediaURL(baseURL, name, folder string) string {
	if name == "" {
		return ""
	}

	if strings.HasPrefix(name, "http") || strings.HasPrefix(name, "data:") || !strings.Contains(name, ".") {
		return name
	}

	base := strings.TrimRight(baseURL, "/")
	if folder != "" {
		return base + "/uploads/" + folder + "/" + name
	}
	return base + "/uploads/" + name
}
