// Package parser turns operator chat lines into dispatcher events. Admins
// drive the recorder from in-game chat ("!rec start-recording"), so the raw
// lines arrive quoted and escaped the way the server console emits them.
package parser

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kag-tools/matchreplay/internal/dispatcher"
	"github.com/kag-tools/matchreplay/internal/util"
)

// Prefix marks a chat line as a recorder command.
const Prefix = "!rec"

var (
	// ErrNotCommand is returned for chat lines without the command prefix.
	ErrNotCommand = errors.New("line is not a recorder command")
	// ErrEmptyCommand is returned when the prefix carries no command.
	ErrEmptyCommand = errors.New("no command after prefix")
)

// Parser converts raw chat lines into dispatcher events.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser with only a logger dependency.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseLine parses one chat line. The line must start with Prefix; everything
// after the command name becomes arguments, with double-quoted runs kept as
// single arguments so save point names may contain spaces.
func (p *Parser) ParseLine(line string) (dispatcher.Event, error) {
	line = util.FixEscapeQuotes(util.TrimQuotes(strings.TrimSpace(line)))

	fields := splitQuoted(line)
	if len(fields) == 0 || fields[0] != Prefix {
		return dispatcher.Event{}, ErrNotCommand
	}
	if len(fields) == 1 {
		return dispatcher.Event{}, ErrEmptyCommand
	}

	ev := dispatcher.Event{
		Command:   strings.ToLower(fields[1]),
		Args:      fields[2:],
		Timestamp: time.Now(),
	}
	p.logger.Debug("Parsed operator command", "command", ev.Command, "args", ev.Args)
	return ev, nil
}

// splitQuoted splits on whitespace, keeping double-quoted runs together.
// Quotes themselves are stripped from the resulting fields.
func splitQuoted(s string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	flushed := true

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			flushed = false
		case (r == ' ' || r == '\t') && !inQuotes:
			if !flushed || cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
				flushed = true
			}
		default:
			cur.WriteRune(r)
			flushed = false
		}
	}
	if !flushed || cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}
