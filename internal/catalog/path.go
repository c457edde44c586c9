package catalog

import "strings"

// PathSeparator joins ancestor ids into a category path. A path always
// starts with the separator and ends with the category's own id; the root
// parent path is the empty string.
const PathSeparator = "/"

// ChildPath computes the path of a category placed under the given parent
// path. An empty parent path places the category at the root.
func ChildPath(parentPath, id string) string {
	return parentPath + PathSeparator + id
}

// PathSegments splits a path into its ancestor-id chain, own id last. The
// empty path has no segments.
func PathSegments(path string) []string {
	trimmed := strings.Trim(path, PathSeparator)
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, PathSeparator)
}

// ParentPath drops the final segment. The parent of a root-level path is
// the empty string.
func ParentPath(path string) string {
	idx := strings.LastIndex(path, PathSeparator)
	if idx <= 0 {
		return ""
	}
	return path[:idx]
}

// IsDescendantPath reports whether path lies strictly below ancestorPath
func IsDescendantPath(path, ancestorPath string) bool {
	return strings.HasPrefix(path, ancestorPath+PathSeparator)
}

// RebasePath rewrites path's oldPrefix to newPrefix, keeping the trailing
// segments. The second return is false when path is not under oldPrefix.
func RebasePath(path, oldPrefix, newPrefix string) (string, bool) {
	if path == oldPrefix {
		return newPrefix, true
	}
	if !IsDescendantPath(path, oldPrefix) {
		return path, false
	}
	return newPrefix + path[len(oldPrefix):], true
}
