package main

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Console command kinds.
const (
	cmdToggle  = "toggle" // pause or resume
	cmdStop    = "stop"
	cmdPlay    = "play"
	cmdRestart = "restart" // play from the beginning
	cmdLoop    = "loop"
	cmdSeek    = "seek"
	cmdVolume  = "volume"
	cmdNext    = "next"
	cmdStatus  = "status"
	cmdQuit    = "quit"
)

type consoleCommand struct {
	kind   string
	offset time.Duration
	volume float32
}

// parseCommand parses one console line.
func parseCommand(line string) (consoleCommand, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return consoleCommand{}, errors.New("empty command")
	}

	switch fields[0] {
	case "p", "pause":
		return consoleCommand{kind: cmdToggle}, nil
	case "s", "stop":
		return consoleCommand{kind: cmdStop}, nil
	case "play":
		return consoleCommand{kind: cmdPlay}, nil
	case "r", "restart":
		return consoleCommand{kind: cmdRestart}, nil
	case "l", "loop":
		return consoleCommand{kind: cmdLoop}, nil
	case "n", "next":
		return consoleCommand{kind: cmdNext}, nil
	case "i", "status":
		return consoleCommand{kind: cmdStatus}, nil
	case "q", "quit":
		return consoleCommand{kind: cmdQuit}, nil
	case "seek":
		if len(fields) != 2 {
			return consoleCommand{}, errors.New("usage: seek <seconds>")
		}
		secs, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || secs < 0 {
			return consoleCommand{}, errors.Newf("invalid seek position %q", fields[1])
		}
		return consoleCommand{kind: cmdSeek, offset: time.Duration(secs * float64(time.Second))}, nil
	case "v", "vol", "volume":
		if len(fields) != 2 {
			return consoleCommand{}, errors.New("usage: vol <gain>")
		}
		gain, err := strconv.ParseFloat(fields[1], 32)
		if err != nil {
			return consoleCommand{}, errors.Newf("invalid volume %q", fields[1])
		}
		return consoleCommand{kind: cmdVolume, volume: float32(gain)}, nil
	default:
		return consoleCommand{}, errors.Newf("unknown command %q", fields[0])
	}
}

// readCommands parses lines from r until EOF and sends them on the returned
// channel. Unparseable lines are reported through onError.
func readCommands(r io.Reader, onError func(error)) <-chan consoleCommand {
	out := make(chan consoleCommand)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			cmd, err := parseCommand(line)
			if err != nil {
				onError(err)
				continue
			}
			out <- cmd
		}
	}()
	return out
}
