// Package gallery manages department photo albums.
//
// Albums are local-only: every read and write goes to the local cache,
// and the gallery category is not part of the sync cycle. Remote
// mirroring is a possible future path but is not implemented. Image
// bytes, when provided, go to the blob store directly; the album only
// keeps the returned refs, in insertion order.
package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campusync/campusync/internal/blob"
	"github.com/campusync/campusync/internal/kv"
)

const schemaVersion = 1

// Image is one ordered entry in an album.
type Image struct {
	ID      string    `json:"id"`
	Ref     string    `json:"ref"`
	URL     string    `json:"url,omitempty"`
	Caption string    `json:"caption,omitempty"`
	AddedAt time.Time `json:"addedAt"`
}

// Album is a titled, ordered collection of image references.
type Album struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Images      []Image   `json:"images"`
}

type albumBlob struct {
	SchemaVersion int     `json:"schemaVersion"`
	Albums        []Album `json:"albums"`
}

// Service owns the album cache for each owner.
type Service struct {
	backend kv.Backend
	blobs   blob.Store
	logger  *log.Logger

	mu sync.Mutex
}

// New creates a gallery service. blobs may be nil when image upload is
// not configured; AddImage then requires a pre-existing ref.
func New(backend kv.Backend, blobs blob.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "[gallery] ", log.LstdFlags)
	}
	return &Service{backend: backend, blobs: blobs, logger: logger}
}

func albumsKey(owner string) string {
	return fmt.Sprintf("gallery_albums:%s", owner)
}

// CreateAlbum persists a new empty album and returns it. The write is
// synchronous; errors propagate so the UI can surface them.
func (s *Service) CreateAlbum(ctx context.Context, owner, title, description, createdBy string) (Album, error) {
	if title == "" {
		return Album{}, fmt.Errorf("album title is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	albums, err := s.load(ctx, owner)
	if err != nil {
		return Album{}, err
	}

	album := Album{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
		Images:      []Image{},
	}
	albums = append(albums, album)

	if err := s.save(ctx, owner, albums); err != nil {
		return Album{}, err
	}
	return album, nil
}

// Albums returns all albums for owner, oldest first. A missing blob is
// an empty list, not an error.
func (s *Service) Albums(ctx context.Context, owner string) ([]Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, owner)
}

// Album returns one album by id.
func (s *Service) Album(ctx context.Context, owner, albumID string) (Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	albums, err := s.load(ctx, owner)
	if err != nil {
		return Album{}, err
	}
	for _, a := range albums {
		if a.ID == albumID {
			return a, nil
		}
	}
	return Album{}, fmt.Errorf("album %s not found", albumID)
}

// AddImage appends an image to an album. When data is non-nil the
// bytes are uploaded to the blob store first and the returned ref is
// recorded; otherwise ref must already point at an uploaded blob.
// Insertion order is preserved.
func (s *Service) AddImage(ctx context.Context, owner, albumID, ref, caption string, data []byte) (Image, error) {
	if data != nil {
		if s.blobs == nil {
			return Image{}, fmt.Errorf("image upload is not configured")
		}
		path := fmt.Sprintf("gallery/%s/%s", albumID, uuid.New().String())
		uploaded, err := s.blobs.Upload(ctx, path, data)
		if err != nil {
			return Image{}, fmt.Errorf("image upload failed: %w", err)
		}
		ref = uploaded
	}
	if ref == "" {
		return Image{}, fmt.Errorf("image ref is required")
	}

	img := Image{
		ID:      uuid.New().String(),
		Ref:     ref,
		Caption: caption,
		AddedAt: time.Now().UTC(),
	}
	if s.blobs != nil {
		url, err := s.blobs.DownloadURL(ctx, ref)
		if err != nil {
			// The ref is still good; the URL can be resolved again later.
			s.logger.Printf("WARNING: failed to resolve download url for %s: %v", ref, err)
		} else {
			img.URL = url
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	albums, err := s.load(ctx, owner)
	if err != nil {
		return Image{}, err
	}

	found := false
	for i := range albums {
		if albums[i].ID == albumID {
			albums[i].Images = append(albums[i].Images, img)
			found = true
			break
		}
	}
	if !found {
		return Image{}, fmt.Errorf("album %s not found", albumID)
	}

	if err := s.save(ctx, owner, albums); err != nil {
		return Image{}, err
	}
	return img, nil
}

// DeleteAlbum removes an album. Deleting a missing album is an error
// so the UI can tell the user the album is already gone.
func (s *Service) DeleteAlbum(ctx context.Context, owner, albumID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	albums, err := s.load(ctx, owner)
	if err != nil {
		return err
	}

	kept := albums[:0]
	for _, a := range albums {
		if a.ID != albumID {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(albums) {
		return fmt.Errorf("album %s not found", albumID)
	}
	return s.save(ctx, owner, kept)
}

func (s *Service) load(ctx context.Context, owner string) ([]Album, error) {
	raw, err := s.backend.Get(ctx, albumsKey(owner))
	if errors.Is(err, kv.ErrNotFound) {
		return []Album{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load albums for %s: %w", owner, err)
	}

	var stored albumBlob
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("failed to decode albums for %s: %w", owner, err)
	}
	if stored.SchemaVersion != schemaVersion {
		return nil, fmt.Errorf("albums for %s have unsupported schema version %d", owner, stored.SchemaVersion)
	}
	return stored.Albums, nil
}

func (s *Service) save(ctx context.Context, owner string, albums []Album) error {
	raw, err := json.Marshal(albumBlob{SchemaVersion: schemaVersion, Albums: albums})
	if err != nil {
		return fmt.Errorf("failed to encode albums for %s: %w", owner, err)
	}
	if err := s.backend.Set(ctx, albumsKey(owner), string(raw)); err != nil {
		return fmt.Errorf("failed to persist albums for %s: %w", owner, err)
	}
	return nil
}
