package sfs

import "strings"

// normalize strips leading '/' characters from path.
func normalize(path string) string {
	return strings.TrimLeft(path, "/")
}

// basename returns the final path component of a normalized name.
func basename(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// parent returns the parent path of a normalized name, or "" if name has
// no separator (its parent is the volume root).
func parent(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return ""
}

// isDirectChild reports whether child is an immediate child of dir: its
// name is dir + "/" + basename with no further separator, or (when dir is
// "", the volume root) a bare basename.
func isDirectChild(dir, name string) bool {
	var rest string
	if dir == "" {
		rest = name
	} else {
		prefix := dir + "/"
		if !strings.HasPrefix(name, prefix) {
			return false
		}
		rest = name[len(prefix):]
	}
	return rest != "" && !strings.Contains(rest, "/")
}

// hasPrefixPath reports whether name is prefix or lies under prefix as a
// path component (prefix itself, or prefix + "/" + anything).
func hasPrefixPath(name, prefix string) bool {
	if name == prefix {
		return true
	}
	return strings.HasPrefix(name, prefix+"/")
}
