package main

import (
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
)

// set at build time with: go build -ldflags "-X main.version=v0.1.0"
var version = ""

type semver struct {
	Major, Minor, Patch int
}

func (v semver) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// parseVersion reads "v1.2.3", ignoring pre-release and build metadata
func parseVersion(ver string) (semver, error) {
	s := strings.TrimPrefix(strings.TrimSpace(ver), "v")
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return semver{}, fmt.Errorf("invalid version %q", ver)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return semver{}, fmt.Errorf("invalid version %q", ver)
		}
		nums[i] = n
	}
	return semver{nums[0], nums[1], nums[2]}, nil
}

// localVersion prefers the -ldflags version, then the module version
// recorded by `go install`. Source builds report "dev" plus the commit.
func localVersion() string {
	info, ok := debug.ReadBuildInfo()
	candidates := []string{version}
	if ok {
		candidates = append(candidates, info.Main.Version)
	}
	for _, v := range candidates {
		if sv, err := parseVersion(v); err == nil {
			return sv.String()
		}
	}
	if ok {
		return devVersion(info.Settings)
	}
	return "dev"
}

func devVersion(settings []debug.BuildSetting) string {
	var rev string
	var dirty bool
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return "dev"
	}
	rev = shortID(rev)
	if dirty {
		rev += "-dirty"
	}
	return "dev (" + rev + ")"
}
