package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kag-tools/matchreplay/internal/recording"
)

// ArchivedRecording is one row of the saved-recordings index. The sample
// history itself lives in the Store; the archive only carries metadata for
// browsing and the save points needed to start partial replays.
type ArchivedRecording struct {
	ID         uint   `gorm:"primarykey"`
	FileName   string `gorm:"index;not null"`
	FilePath   string
	MapName    string `gorm:"index"`
	InitT      uint32
	EndT       uint32
	Ticks      int
	Blobs      int
	SavePoints datatypes.JSON
	CreatedAt  time.Time
}

// ArchiveModels lists every model the archive schema migrates.
var ArchiveModels = []any{&ArchivedRecording{}}

// Archive indexes saved recordings in a database.
type Archive struct {
	db *gorm.DB
}

// NewArchive wraps an already-connected, already-migrated gorm DB.
func NewArchive(db *gorm.DB) *Archive {
	return &Archive{db: db}
}

// Index records one saved recording. The save points map is stored as JSON so
// both Postgres and SQLite take it unchanged.
func (a *Archive) Index(rec *recording.Recording, fileName, filePath string) (*ArchivedRecording, error) {
	points, err := json.Marshal(rec.SavePoints())
	if err != nil {
		return nil, fmt.Errorf("encode save points: %w", err)
	}
	row := &ArchivedRecording{
		FileName:   fileName,
		FilePath:   filePath,
		MapName:    rec.MapName(),
		InitT:      rec.InitT(),
		EndT:       rec.EndT(),
		Ticks:      rec.NumRecordedTicks(),
		Blobs:      len(rec.Metas()),
		SavePoints: datatypes.JSON(points),
	}
	if err := a.db.Create(row).Error; err != nil {
		return nil, fmt.Errorf("index recording: %w", err)
	}
	return row, nil
}

// Recent returns the latest n archived recordings, newest first.
func (a *Archive) Recent(n int) ([]ArchivedRecording, error) {
	var rows []ArchivedRecording
	err := a.db.Order("created_at desc").Limit(n).Find(&rows).Error
	return rows, err
}

// ByFileName resolves one archived recording.
func (a *Archive) ByFileName(name string) (*ArchivedRecording, error) {
	var row ArchivedRecording
	if err := a.db.Where("file_name = ?", name).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// SavePointMap decodes the row's save points.
func (r *ArchivedRecording) SavePointMap() (map[string]int, error) {
	points := make(map[string]int)
	if len(r.SavePoints) == 0 {
		return points, nil
	}
	if err := json.Unmarshal(r.SavePoints, &points); err != nil {
		return nil, fmt.Errorf("decode save points: %w", err)
	}
	return points, nil
}
