package hdf5

import (
	"fmt"
	"strings"
)

// ParseAttrPath splits "/group/object@attr" into object path and attribute
// name.
//
// Examples:
//   - "/@SCHEMA_VERSION" -> "/", "SCHEMA_VERSION"
//   - "/0@BUNIT" -> "/0", "BUNIT"
func ParseAttrPath(path string) (objectPath, attrName string, err error) {
	at := strings.LastIndex(path, "@")
	if at == -1 {
		return "", "", fmt.Errorf("%w: attribute path must contain '@': %q", ErrInvalidPath, path)
	}
	objectPath, attrName = CleanPath(path[:at]), path[at+1:]
	if attrName == "" {
		return "", "", fmt.Errorf("%w: empty attribute name in %q", ErrInvalidPath, path)
	}
	return objectPath, attrName, nil
}

// JoinAttrPath creates an attribute path from object path and attribute name.
func JoinAttrPath(objectPath, attrName string) string {
	if objectPath == "/" {
		return "/@" + attrName
	}
	return objectPath + "@" + attrName
}

// SplitPath splits a path into its non-empty components.
//
// Examples:
//   - "/" -> []string{}
//   - "/0/Statistics" -> []string{"0", "Statistics"}
func SplitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// CleanPath normalizes a path to start with "/" and have no trailing slash.
func CleanPath(path string) string {
	return "/" + strings.Join(SplitPath(path), "/")
}

// joinPath appends name to a group path.
func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/@") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return nil
}
