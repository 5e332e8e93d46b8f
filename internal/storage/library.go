package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/himanishpuri/muzak/internal/fingerprint"
)

const (
	fingerprintFlushSize = 1000
	fingerprintBatchSize = 500
	// sqlite caps bound parameters per statement.
	hashQueryChunk = 900
)

type Song struct {
	ID         string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title      string `gorm:"uniqueIndex:idx_song_unique,priority:1" json:"title"`
	Artist     string `gorm:"uniqueIndex:idx_song_unique,priority:2" json:"artist"`
	YouTubeID  string `gorm:"index:idx_youtube_id" json:"youtube_id,omitempty"`
	DurationMs int    `json:"duration_ms"`
	CreatedAt  time.Time
}

type Fingerprint struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Hash         uint32 `gorm:"index:idx_hash"`
	SongID       string `gorm:"type:varchar(36);index:idx_song"`
	AnchorTimeMs uint32
}

// RegisterSong returns the ID of the song with this title and artist,
// creating it if needed. A missing YouTube ID on an existing song is filled in.
func (c *DBClient) RegisterSong(ctx context.Context, title, artist, youtubeID string, durationMs int) (string, error) {
	if err := c.ok(); err != nil {
		return "", err
	}
	db := c.DB.WithContext(ctx)

	var song Song
	err := db.Where("title = ? AND artist = ?", title, artist).First(&song).Error
	if err == nil {
		if song.YouTubeID == "" && youtubeID != "" {
			if err := db.Model(&song).Update("YouTubeID", youtubeID).Error; err != nil {
				return "", fmt.Errorf("updating youtube_id: %w", err)
			}
		}
		return song.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("querying existing song: %w", err)
	}

	song = Song{ID: uuid.NewString(), Title: title, Artist: artist, YouTubeID: youtubeID, DurationMs: durationMs}
	if err := db.Create(&song).Error; err != nil {
		if isConstraintErr(err) {
			if fetchErr := db.Where("title = ? AND artist = ?", title, artist).First(&song).Error; fetchErr != nil {
				return "", fmt.Errorf("fetching song after constraint violation: %w", fetchErr)
			}
			return song.ID, nil
		}
		return "", fmt.Errorf("creating song: %w", err)
	}
	return song.ID, nil
}

func isConstraintErr(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "constraint failed")
}

func (c *DBClient) GetSongByID(ctx context.Context, songID string) (*Song, error) {
	if err := c.ok(); err != nil {
		return nil, err
	}
	var song Song
	if err := c.DB.WithContext(ctx).Where("id = ?", songID).First(&song).Error; err != nil {
		return nil, fmt.Errorf("getting song %s: %w", songID, err)
	}
	return &song, nil
}

func (c *DBClient) ListSongs(ctx context.Context) ([]Song, error) {
	if err := c.ok(); err != nil {
		return nil, err
	}
	var songs []Song
	if err := c.DB.WithContext(ctx).Order("artist, title").Find(&songs).Error; err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}
	return songs, nil
}

// DeleteSongByID removes the song and its fingerprints in one transaction.
func (c *DBClient) DeleteSongByID(ctx context.Context, songID string) error {
	if err := c.ok(); err != nil {
		return err
	}
	return c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("song_id = ?", songID).Delete(&Fingerprint{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", songID).Delete(&Song{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// StoreFingerprints bulk-inserts a song's hash table.
func (c *DBClient) StoreFingerprints(ctx context.Context, fp map[fingerprint.Address][]fingerprint.Couple) error {
	if err := c.ok(); err != nil {
		return err
	}
	db := c.DB.WithContext(ctx)

	entries := make([]Fingerprint, 0, fingerprintFlushSize)
	flush := func() error {
		if len(entries) == 0 {
			return nil
		}
		if err := db.CreateInBatches(entries, fingerprintBatchSize).Error; err != nil {
			return fmt.Errorf("batch insert fingerprints: %w", err)
		}
		entries = entries[:0]
		return nil
	}

	for hash, couples := range fp {
		for _, cou := range couples {
			entries = append(entries, Fingerprint{Hash: uint32(hash), SongID: cou.SongID, AnchorTimeMs: cou.AnchorTimeMs})
			if len(entries) >= fingerprintFlushSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	return flush()
}

// GetCouplesByHashes fetches every stored occurrence of the given hashes.
func (c *DBClient) GetCouplesByHashes(ctx context.Context, hashes []fingerprint.Address) (map[fingerprint.Address][]fingerprint.Couple, error) {
	if err := c.ok(); err != nil {
		return nil, err
	}
	result := make(map[fingerprint.Address][]fingerprint.Couple)

	for start := 0; start < len(hashes); start += hashQueryChunk {
		chunk := hashes[start:min(start+hashQueryChunk, len(hashes))]
		keys := make([]uint32, len(chunk))
		for i, h := range chunk {
			keys[i] = uint32(h)
		}

		var rows []Fingerprint
		if err := c.DB.WithContext(ctx).Where("hash IN ?", keys).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("batch querying fingerprints: %w", err)
		}
		for _, r := range rows {
			addr := fingerprint.Address(r.Hash)
			result[addr] = append(result[addr], fingerprint.Couple{SongID: r.SongID, AnchorTimeMs: r.AnchorTimeMs})
		}
	}
	return result, nil
}

// GetFingerprintCount returns how many hashes are stored for a song.
func (c *DBClient) GetFingerprintCount(ctx context.Context, songID string) (int, error) {
	if err := c.ok(); err != nil {
		return 0, err
	}
	var n int64
	if err := c.DB.WithContext(ctx).Model(&Fingerprint{}).Where("song_id = ?", songID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting fingerprints: %w", err)
	}
	return int(n), nil
}
