// Package wire implements the versioned tagged-block text format for saved
// match recordings. The block layout is order-significant and must round-trip
// byte-for-byte semantics: same tick count, same meta set, same sample values.
package wire

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FormatVersion is the current recording format version. Parse rejects
// documents written by a newer format instead of guessing at their layout.
const FormatVersion = 1

var (
	// ErrUnsupportedVersion is returned when a document declares a format
	// version newer than this build understands.
	ErrUnsupportedVersion = errors.New("unsupported recording format version")

	// ErrInvalidDocument is returned for structurally broken documents.
	ErrInvalidDocument = errors.New("invalid recording document")
)

// Vec2 is a 2D coordinate serialized as "X,Y" character data.
type Vec2 struct {
	X float64
	Y float64
}

func (v Vec2) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	s := strconv.FormatFloat(v.X, 'g', -1, 64) + "," + strconv.FormatFloat(v.Y, 'g', -1, 64)
	return e.EncodeElement(s, start)
}

func (v *Vec2) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return fmt.Errorf("%w: bad coordinate %q", ErrInvalidDocument, s)
	}
	x, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return fmt.Errorf("%w: bad coordinate %q", ErrInvalidDocument, s)
	}
	y, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return fmt.Errorf("%w: bad coordinate %q", ErrInvalidDocument, s)
	}
	v.X, v.Y = x, y
	return nil
}

// BlobMeta is the serialized identity block of one recorded blob. The player
// fields are omitted entirely for playerless blobs; their absence on parse is
// the signal that no player was attached.
type BlobMeta struct {
	NetID   uint16 `xml:"netid"`
	Name    string `xml:"name"`
	TeamNum int    `xml:"teamNum"`
	SexNum  int    `xml:"sexNum"`
	HeadNum int    `xml:"headNum"`

	PlayerID       uint16 `xml:"playerid,omitempty"`
	PlayerUsername string `xml:"playerusername,omitempty"`
	PlayerCharName string `xml:"playercharname,omitempty"`
}

// BlobData is one blob's state at one tick.
type BlobData struct {
	NetID    uint16  `xml:"netid"`
	Position Vec2    `xml:"position"`
	AimPos   Vec2    `xml:"aimpos"`
	Keys     uint16  `xml:"keys"`
	Health   float32 `xml:"health"`
}

// Tick holds every sample captured in one simulation step. An empty tick is
// written as an empty block so tick alignment survives the round trip.
type Tick struct {
	Blobs []BlobData `xml:"blobdata"`
}

// SavePoint names a tick index usable as a partial-replay start point.
type SavePoint struct {
	Name string `xml:"name"`
	Tick int    `xml:"tick"`
}

type metaList struct {
	Metas []BlobMeta `xml:"blobmeta"`
}

type tickList struct {
	Ticks []Tick `xml:"tick"`
}

type savePointList struct {
	Points []SavePoint `xml:"savepoint"`
}

// Document is the full serialized form of one recording.
type Document struct {
	XMLName xml.Name `xml:"matchrecording"`
	Version int      `xml:"version"`
	InitT   uint32   `xml:"initT"`
	EndT    uint32   `xml:"endT"`
	MapName string   `xml:"mapname"`
	Metas   metaList `xml:"allblobmeta"`
	Ticks   tickList `xml:"recording"`

	// SavePoints is optional and omitted when the recording has none, so a
	// version-1 document with no save points matches the original layout.
	SavePoints *savePointList `xml:"savepoints,omitempty"`
}

// NewDocument builds an empty current-version document.
func NewDocument() *Document {
	return &Document{Version: FormatVersion}
}

// SetMetas replaces the meta block. Callers must pass metas already sorted by
// netid; encoding preserves the given order.
func (doc *Document) SetMetas(metas []BlobMeta) {
	doc.Metas.Metas = metas
}

// AppendTick appends one tick block.
func (doc *Document) AppendTick(t Tick) {
	doc.Ticks.Ticks = append(doc.Ticks.Ticks, t)
}

// SetSavePoints replaces the save-point block; an empty slice removes it.
func (doc *Document) SetSavePoints(points []SavePoint) {
	if len(points) == 0 {
		doc.SavePoints = nil
		return
	}
	doc.SavePoints = &savePointList{Points: points}
}

// MetaBlocks returns the serialized metas in document order.
func (doc *Document) MetaBlocks() []BlobMeta {
	return doc.Metas.Metas
}

// TickBlocks returns the serialized ticks in document order.
func (doc *Document) TickBlocks() []Tick {
	return doc.Ticks.Ticks
}

// SavePointBlocks returns the save points, or nil when the block is absent.
func (doc *Document) SavePointBlocks() []SavePoint {
	if doc.SavePoints == nil {
		return nil
	}
	return doc.SavePoints.Points
}

// Encode writes the document as indented tagged blocks.
func Encode(w io.Writer, doc *Document) error {
	enc := xml.NewEncoder(w)
	enc.Indent("", "\t")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding recording: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding recording: %w", err)
	}
	// trailing newline, matching hand-written .cfg files
	_, err := io.WriteString(w, "\n")
	return err
}

// Decode parses a document and enforces the format-version gate.
func Decode(r io.Reader) (*Document, error) {
	doc := &Document{}
	if err := xml.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc.Version < 1 {
		return nil, fmt.Errorf("%w: missing or invalid version", ErrInvalidDocument)
	}
	if doc.Version > FormatVersion {
		return nil, fmt.Errorf("%w: got %d, this build reads up to %d",
			ErrUnsupportedVersion, doc.Version, FormatVersion)
	}
	return doc, nil
}
