// The matchreplay binary is the server-side companion of the recorder addon.
// It hosts the mode controller for a live session and doubles as tooling over
// saved recordings:
//
//	matchreplay serve [-map NAME] [-tickrate N]   drive a session from stdin commands
//	matchreplay inspect FILE                      print a recording summary
//	matchreplay export FILE [OUT]                 write the recording as gzipped JSON
//	matchreplay verify FILE                       run a headless replay pass
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kag-tools/matchreplay/internal/config"
	"github.com/kag-tools/matchreplay/internal/logging"
)

// Version can be overridden at build time via ldflags.
var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"
)

const extensionName = "matchreplay"

var (
	slogManager *logging.SlogManager
	logger      *slog.Logger

	logFile *os.File

	sessionStart = time.Now()
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return nil
	}

	if err := setup(); err != nil {
		return err
	}
	defer teardown()

	cmd, rest := strings.ToLower(args[0]), args[1:]
	switch cmd {
	case "serve":
		return runServe(rest)
	case "inspect":
		return runInspect(rest)
	case "export":
		return runExport(rest)
	case "verify":
		return runVerify(rest)
	case "version":
		fmt.Printf("%s %s (built %s)\n", extensionName, Version, BuildDate)
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: %s COMMAND [ARGS]

commands:
  serve [-map NAME] [-tickrate N]   run a headless session driven by stdin commands
  inspect FILE                      print a summary of a saved recording
  export FILE [OUT]                 convert a recording to gzipped JSON
  verify FILE                       replay a recording headless and report drift
  version                           print version information
`, extensionName)
}

// setup loads config from the working directory and routes logging to the
// session log file.
func setup() error {
	if err := config.Load("."); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}

	logPath := logging.LogFilePath(logsDir, extensionName, sessionStart)
	var err error
	logFile, err = os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	slogManager = logging.NewSlogManager()
	if err := slogManager.Setup(logFile, config.GetString("logLevel"), gelfAddr(), nil); err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	logger = slogManager.Logger()
	logger.Info("Starting up", "version", Version, "buildDate", BuildDate, "logFile", logPath)
	return nil
}

func gelfAddr() string {
	if config.GetBool("graylog.enabled") {
		return config.GetString("graylog.address")
	}
	return ""
}

func teardown() {
	if logFile != nil {
		logFile.Close()
	}
}
