package controller

import (
	"errors"

	"github.com/kag-tools/matchreplay/internal/dispatcher"
)

// Operator command strings as they arrive from the game server.
const (
	CmdStartAutorecord  = "start-autorecord"
	CmdStopAutorecord   = "stop-autorecord"
	CmdStartRecording   = "start-recording"
	CmdStopRecording    = "stop-recording"
	CmdStartReplay      = "start-replay"
	CmdStopReplay       = "stop-replay"
	CmdSaveRecording    = "save-current-recording"
	CmdForceAllSpectate = "force-all-to-spectate"
	CmdCreateSavePoint  = "create-save-point"
	CmdListRecordings   = "list-recordings"
	CmdLoadRecording    = "load-recording"
)

// RegisterHandlers wires every operator command into the dispatcher. Parsing
// the operator's chat line into command and args happens upstream; handlers
// only see dispatcher events.
func (c *Controller) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(CmdStartAutorecord, func(e dispatcher.Event) (any, error) {
		c.SetAutorecord(true)
		return "autorecord on", nil
	}, dispatcher.Logged())

	d.Register(CmdStopAutorecord, func(e dispatcher.Event) (any, error) {
		c.SetAutorecord(false)
		return "autorecord off", nil
	}, dispatcher.Logged())

	d.Register(CmdStartRecording, func(e dispatcher.Event) (any, error) {
		if err := c.StartRecording(); err != nil {
			return nil, err
		}
		return "recording", nil
	}, dispatcher.Logged())

	d.Register(CmdStopRecording, func(e dispatcher.Event) (any, error) {
		if err := c.StopRecording(); err != nil {
			return nil, err
		}
		return "stopped", nil
	}, dispatcher.Logged())

	d.Register(CmdStartReplay, func(e dispatcher.Event) (any, error) {
		// An optional argument names a save point to start from.
		var err error
		if len(e.Args) > 0 && e.Args[0] != "" {
			err = c.StartReplayAt(e.Args[0])
		} else {
			err = c.StartReplay()
		}
		if err != nil {
			return nil, err
		}
		return "replaying", nil
	}, dispatcher.Logged())

	d.Register(CmdStopReplay, func(e dispatcher.Event) (any, error) {
		if err := c.StopReplay(); err != nil {
			return nil, err
		}
		return "stopped", nil
	}, dispatcher.Logged())

	d.Register(CmdSaveRecording, func(e dispatcher.Event) (any, error) {
		if err := c.SaveRecording(); err != nil {
			return nil, err
		}
		return "saved", nil
	}, dispatcher.Logged())

	d.Register(CmdForceAllSpectate, func(e dispatcher.Event) (any, error) {
		c.ForceAllSpectate()
		return "spectating", nil
	}, dispatcher.Logged())

	d.Register(CmdCreateSavePoint, func(e dispatcher.Event) (any, error) {
		name := "savepoint"
		if len(e.Args) > 0 && e.Args[0] != "" {
			name = e.Args[0]
		}
		if err := c.CreateSavePoint(name); err != nil {
			return nil, err
		}
		return "marked", nil
	}, dispatcher.Logged())

	d.Register(CmdListRecordings, func(e dispatcher.Event) (any, error) {
		names, err := c.ListRecordings()
		if err != nil {
			return nil, err
		}
		return names, nil
	}, dispatcher.Logged())

	d.Register(CmdLoadRecording, func(e dispatcher.Event) (any, error) {
		if len(e.Args) == 0 || e.Args[0] == "" {
			return nil, errors.New("load-recording needs a file name")
		}
		if err := c.LoadRecordingNamed(e.Args[0]); err != nil {
			return nil, err
		}
		return "loaded", nil
	}, dispatcher.Logged())
}
