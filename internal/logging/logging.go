package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// sessionStampLayout names log files by session start so concurrent servers
// on one machine never share a file.
const sessionStampLayout = "20060102_150405"

// LogFilePath builds the session log file path inside logsDir.
func LogFilePath(logsDir, extensionName string, sessionStart time.Time) string {
	name := fmt.Sprintf("%s.%s.log", extensionName, sessionStart.Format(sessionStampLayout))
	return filepath.Join(logsDir, name)
}
