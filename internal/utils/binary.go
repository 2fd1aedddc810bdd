// Package utils contains general helper functions used across the askrepo tool.
package utils

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// sniffLength defines the maximum number of bytes read when detecting binary content.
const sniffLength = 8000

// knownBinaryExtensions lists file extensions excluded outright from scans
// because their content cannot appear in a text export.
var knownBinaryExtensions = map[string]struct{}{
	".exe":   {},
	".dll":   {},
	".so":    {},
	".dylib": {},
	".a":     {},
	".o":     {},
	".obj":   {},
	".bin":   {},
	".wasm":  {},
	".pyc":   {},
	".pyo":   {},
	".class": {},
	".jar":   {},
	".war":   {},
}

// HasKnownBinaryExtension reports whether the file name carries an extension
// from the fixed known-binary set.
func HasKnownBinaryExtension(fileName string) bool {
	extension := strings.ToLower(filepath.Ext(fileName))
	_, isKnownBinary := knownBinaryExtensions[extension]
	return isKnownBinary
}

// IsBinary reports whether the provided byte slice appears to contain binary data.
func IsBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if !utf8.Valid(data) {
		return true
	}
	for _, byteValue := range data {
		if byteValue == 0 {
			return true
		}
	}
	return false
}

// IsFileBinary reads up to sniffLength bytes from the file at path and determines
// if the content appears to be binary.
func IsFileBinary(path string) bool {
	fileHandle, openError := os.Open(path)
	if openError != nil {
		return false
	}
	defer fileHandle.Close()

	buffer := make([]byte, sniffLength)
	bytesRead, readError := fileHandle.Read(buffer)
	if readError != nil && readError != io.EOF {
		return false
	}
	return IsBinary(buffer[:bytesRead])
}
