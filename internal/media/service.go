// Package media validates upload coordinates and places staged files into the public media tree.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/amodomio/media-uploader/internal/storage"
)

// Service places staged uploads through a storage provider.
type Service struct {
	provider storage.Provider
	logger   *slog.Logger
}

// NewService creates a media service with the given storage provider.
func NewService(log *slog.Logger, provider storage.Provider) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		provider: provider,
		logger:   log.With(slog.String("service", "media")),
	}
}

// StorageKey returns the slash-separated key of the asset at (kind, menuItemID, filename).
func StorageKey(kind Kind, menuItemID, filename string) string {
	return path.Join(kind.Dir(), "menu-items", menuItemID, filename)
}

// Place validates the staged file against kind and moves it to
// <images|videos>/menu-items/<menuItemID>/<slot>.<ext>, replacing any asset
// already there. The staged file is removed on every failure path.
func (s *Service) Place(ctx context.Context, in PlaceInput) (Asset, error) {
	asset, err := s.place(ctx, in)
	if err != nil {
		s.discard(in.Staged)
		return Asset{}, err
	}
	return asset, nil
}

func (s *Service) place(ctx context.Context, in PlaceInput) (Asset, error) {
	if s.provider == nil {
		return Asset{}, ErrProviderUnavailable
	}
	if in.Kind.Dir() == "" {
		return Asset{}, ErrInvalidKind
	}
	if _, err := ValidateSegment(in.MenuItemID); err != nil {
		return Asset{}, fmt.Errorf("menu item id: %w", err)
	}
	if _, err := ValidateSegment(in.Slot); err != nil {
		return Asset{}, fmt.Errorf("slot: %w", err)
	}

	ext, ok := ExtensionForMime(in.Staged.Mime)
	if !ok {
		return Asset{}, ErrUnsupportedMediaType
	}
	if !in.Kind.Accepts(in.Staged.Mime) {
		return Asset{}, ErrMediaTypeKindMismatch
	}

	key := StorageKey(in.Kind, in.MenuItemID, in.Slot+"."+ext)
	if err := s.provider.Promote(ctx, in.Staged.Path, key); err != nil {
		return Asset{}, fmt.Errorf("place %s: %w", key, err)
	}

	s.logger.Debug("asset placed",
		slog.String("key", key),
		slog.String("mime", in.Staged.Mime),
		slog.Int64("size_bytes", in.Staged.SizeBytes),
	)
	return Asset{
		Kind:       in.Kind,
		MenuItemID: in.MenuItemID,
		Slot:       in.Slot,
		StorageKey: key,
		Mime:       in.Staged.Mime,
		SizeBytes:  in.Staged.SizeBytes,
		URL:        s.provider.AccessPath(key),
	}, nil
}

func (s *Service) discard(staged StagedFile) {
	if err := staged.Remove(); err != nil {
		s.logger.Debug("staged file cleanup failed", slog.String("path", staged.Path), slog.Any("error", err))
	}
}
