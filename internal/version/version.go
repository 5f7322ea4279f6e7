// Package version provides application version and build info.
//
//nolint:revive
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version is the current version of the uploader.
	// It can be overridden by ldflags at build time.
	Version = "dev"
	// CommitHash is the git commit hash at build time.
	CommitHash = ""
	// BuildTime is the time when the binary was built.
	BuildTime = ""
)

// GetInfo returns the version followed by the short commit hash, when one is known.
// The hash falls back to the VCS revision stamped by the Go toolchain.
func GetInfo() string {
	commit := CommitHash
	if commit == "" {
		commit, _ = vcsInfo()
	}
	return format(Version, commit)
}

// BuiltAt returns the build time, from ldflags or the VCS commit time.
func BuiltAt() string {
	if BuildTime != "" {
		return BuildTime
	}
	_, t := vcsInfo()
	return t
}

func vcsInfo() (revision, buildTime string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.time":
			buildTime = setting.Value
		}
	}
	return revision, buildTime
}

func format(version, commit string) string {
	if commit == "" {
		return version
	}
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s (%s)", version, commit)
}
