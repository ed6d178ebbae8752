package cache

import (
	"fmt"
	"strings"
)

// Partition kinds.
const (
	PartitionStatic  = "static"
	PartitionDynamic = "dynamic"
	PartitionAPI     = "api"
)

var partitionKinds = []string{PartitionStatic, PartitionDynamic, PartitionAPI}

// PartitionName builds "<app>-<kind>-v<version>".
func PartitionName(app, kind, version string) string {
	return fmt.Sprintf("%s-%s-v%s", app, kind, version)
}

// ParsePartitionName splits a name built by PartitionName for the same app.
func ParsePartitionName(app, name string) (kind, version string, ok bool) {
	rest, found := strings.CutPrefix(name, app+"-")
	if !found {
		return "", "", false
	}
	kind, version, found = strings.Cut(rest, "-v")
	if !found || kind == "" || version == "" {
		return "", "", false
	}
	return kind, version, true
}
