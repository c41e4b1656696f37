// Copyright 2026 The Chimney Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mimetype resolves a file extension to a media type using a
// small, stable built-in table rather than consulting the host OS's
// mime database, so that behavior does not vary across deployment
// environments.
package mimetype

import "strings"

const defaultType = "application/octet-stream"

var byExtension = map[string]string{
	"html": "text/html; charset=utf-8",
	"htm":  "text/html; charset=utf-8",
	"css":  "text/css; charset=utf-8",
	"js":   "text/javascript; charset=utf-8",
	"mjs":  "text/javascript; charset=utf-8",
	"json": "application/json",
	"xml":  "application/xml",
	"svg":  "image/svg+xml",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"avif": "image/avif",
	"ico":  "image/x-icon",
	"woff": "font/woff",
	"woff2": "font/woff2",
	"ttf":  "font/ttf",
	"otf":  "font/otf",
	"txt":  "text/plain; charset=utf-8",
	"md":   "text/markdown; charset=utf-8",
	"pdf":  "application/pdf",
	"wasm": "application/wasm",
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mp3":  "audio/mpeg",
	"ogg":  "audio/ogg",
	"wav":  "audio/wav",
}

// ForExtension returns the media type for ext (with or without a
// leading dot, case-insensitive). An unknown extension maps to
// application/octet-stream.
func ForExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if mt, ok := byExtension[ext]; ok {
		return mt
	}
	return defaultType
}

// ForPath returns the media type for a filesystem path based on its
// extension. isIndex should be true only when path was served because
// it is the site's default_index_file for a directory request; an
// extensionless file served as an index is treated as HTML, matching
// the common convention of extensionless index documents. Any other
// extensionless file falls back to the default octet-stream type.
func ForPath(path string, isIndex bool) string {
	ext := extensionOf(path)
	if ext == "" {
		if isIndex {
			return byExtension["html"]
		}
		return defaultType
	}
	return ForExtension(ext)
}

func extensionOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			return path[i+1:]
		case '/':
			return ""
		}
	}
	return ""
}
