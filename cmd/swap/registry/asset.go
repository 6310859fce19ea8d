package registry

import (
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

// Asset is one replacement audio file and the configuration source that
// declared it.
type Asset struct {
	RelativePath string
	OriginID     string
	OriginName   string
	BaseDir      string
}

// FullPath returns the on-disk location of the asset.
func (a Asset) FullPath() string {
	return filepath.Join(a.BaseDir, filepath.FromSlash(a.RelativePath))
}

// Same reports whether a and b point at the same file from the same origin.
func (a Asset) Same(b Asset) bool {
	return strings.EqualFold(a.RelativePath, b.RelativePath) &&
		strings.EqualFold(a.OriginID, b.OriginID) &&
		strings.EqualFold(a.BaseDir, b.BaseDir)
}

// Label returns "originID (originName)" for display.
func (a Asset) Label() string {
	name := a.OriginName
	if name == "" {
		name = a.OriginID
	}
	return a.OriginID + " (" + name + ")"
}

// ReplacementID identifies an asset under a matched key. It is the unit users
// enable or disable, and stays stable across reloads while key, origin and
// path are unchanged.
func ReplacementID(key string, a Asset) string {
	return strings.TrimSpace(key + "||" + a.OriginID + "||" + a.RelativePath)
}

// InstanceKey identifies a loaded playback handle.
func InstanceKey(key string, a Asset) string {
	return key + "||" + a.OriginID + "||" + a.RelativePath
}

// Enablement answers the user's enable/disable choices.
type Enablement interface {
	OriginEnabled(originID string) bool
	ReplacementEnabled(replacementID string) bool
}

// AllEnabled enables every origin and replacement.
type AllEnabled struct{}

func (AllEnabled) OriginEnabled(string) bool      { return true }
func (AllEnabled) ReplacementEnabled(string) bool { return true }

// IsEnabled reports whether asset a under key survives both the origin and
// the replacement filters.
func IsEnabled(key string, a Asset, en Enablement) bool {
	if en == nil {
		return true
	}
	if a.OriginID != "" && !en.OriginEnabled(a.OriginID) {
		return false
	}
	return en.ReplacementEnabled(ReplacementID(key, a))
}

// Enabled returns the assets under key that are not disabled.
func Enabled(key string, assets []Asset, en Enablement) []Asset {
	return lo.Filter(assets, func(a Asset, _ int) bool {
		return a.RelativePath != "" && IsEnabled(key, a, en)
	})
}
