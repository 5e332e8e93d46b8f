package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Detection is one accepted identification. Rows are never updated; the
// autoincrement ID is the insertion order.
type Detection struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	UUID       string    `gorm:"type:varchar(36);uniqueIndex" json:"id"`
	Timestamp  time.Time `gorm:"index:idx_detection_time" json:"timestamp"`
	Title      string    `gorm:"not null" json:"title"`
	Artist     string    `gorm:"not null" json:"artist"`
	Amplitude  float64   `json:"amplitude"`
	Source     string    `json:"source,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
}

// InsertDetection stores d, assigning its UUID and defaulting the timestamp
// to now in local time.
func (c *DBClient) InsertDetection(ctx context.Context, d *Detection) error {
	if err := c.ok(); err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("nil detection")
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("detection has empty title")
	}

	row := *d
	row.ID = 0
	if row.UUID == "" {
		row.UUID = uuid.NewString()
	}
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now()
	}

	if err := c.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("inserting detection: %w", err)
	}
	*d = row
	return nil
}

// CountDetections returns the number of stored detections.
func (c *DBClient) CountDetections(ctx context.Context) (int64, error) {
	if err := c.ok(); err != nil {
		return 0, err
	}
	var n int64
	if err := c.DB.WithContext(ctx).Model(&Detection{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting detections: %w", err)
	}
	return n, nil
}

// RecentDetections returns up to limit detections, newest first. A limit of
// zero or less returns all of them.
func (c *DBClient) RecentDetections(ctx context.Context, limit int) ([]Detection, error) {
	if err := c.ok(); err != nil {
		return nil, err
	}
	q := c.DB.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Detection
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing detections: %w", err)
	}
	return rows, nil
}
