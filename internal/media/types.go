package media

import (
	"errors"
	"os"
)

// StagedFile is an upload written to the staging area. It is owned by the
// request that created it until it is placed or removed.
type StagedFile struct {
	Path      string
	Filename  string
	Mime      string
	SizeBytes int64
}

// Remove deletes the staged file. A file that is already gone is not an error.
func (f StagedFile) Remove() error {
	if f.Path == "" {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Asset is a placed media file, addressed by (Kind, MenuItemID, Slot).
// A later placement for the same triple replaces it.
type Asset struct {
	Kind       Kind   `json:"kind"`
	MenuItemID string `json:"menuItemId"`
	Slot       string `json:"slot"`
	StorageKey string `json:"-"`
	Mime       string `json:"-"`
	SizeBytes  int64  `json:"-"`
	URL        string `json:"url"`
}

// PlaceInput carries a staged upload and the validated coordinates it should be placed at.
type PlaceInput struct {
	Staged     StagedFile
	Kind       Kind
	MenuItemID string
	Slot       string
}
