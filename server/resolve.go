package server

import (
	"path"
	"strings"
)

// resolveModule maps a preview request path to an existing file under wd.
// Variants are probed in order: the path as given, then the path with each
// module extension appended, then `<path>/index` with each extension. The
// first existing regular file wins.
func resolveModule(wd, name string) (string, bool) {
	name = strings.Trim(name, "/")
	if name == "" {
		return "", false
	}

	// a cleaned rooted path can not climb out of wd
	filename := path.Join(wd, path.Clean("/"+name))
	if fileExists(filename) {
		return filename, true
	}
	for _, ext := range defaultModuleExts {
		if fileExists(filename + ext) {
			return filename + ext, true
		}
	}
	for _, ext := range defaultModuleExts {
		index := path.Join(filename, "index"+ext)
		if fileExists(index) {
			return index, true
		}
	}
	return "", false
}

// findTemplate walks from dir up to wd (inclusive) looking for a template
// file with the given name. Directories above wd are never consulted.
func findTemplate(wd, dir, name string) (string, bool) {
	wd = path.Clean(wd)
	dir = path.Clean(dir)
	if dir != wd && !strings.HasPrefix(dir, wd+"/") {
		return "", false
	}
	for {
		filename := path.Join(dir, name)
		if fileExists(filename) {
			return filename, true
		}
		if dir == wd {
			return "", false
		}
		dir = path.Dir(dir)
	}
}
