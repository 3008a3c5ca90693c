package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"janusbridge/service/janus"
)

type CommandKind string

const (
	CmdCreateRoom CommandKind = "createroom"
	CmdKick       CommandKind = "kick"
)

// Command is a chat line of the form "<kind>/<number>".
type Command struct {
	Kind CommandKind
	Arg  uint64
}

func (c Command) String() string { return string(c.Kind) + "/" + strconv.FormatUint(c.Arg, 10) }

// ParseCommand recognises createroom/<room> and kick/<participant>. ok is false for ordinary chat;
// err is set when the line names a command but its argument is not a positive integer.
func ParseCommand(text string) (cmd Command, ok bool, err error) {
	name, arg, found := strings.Cut(strings.TrimSpace(text), "/")
	if !found {
		return Command{}, false, nil
	}
	kind := CommandKind(strings.ToLower(name))
	if kind != CmdCreateRoom && kind != CmdKick {
		return Command{}, false, nil
	}
	n, perr := strconv.ParseUint(strings.TrimSpace(arg), 10, 64)
	if perr != nil || n == 0 {
		return Command{Kind: kind}, true, fmt.Errorf("%s needs a positive number, got %q", kind, arg)
	}
	return Command{Kind: kind, Arg: n}, true, nil
}

// body builds the videoroom request for cmd.
func (s *Server) body(cmd Command) any {
	switch cmd.Kind {
	case CmdCreateRoom:
		return janus.CreateRoomBody(cmd.Arg, s.cfg.AdminKey, "")
	case CmdKick:
		return janus.KickBody(s.cfg.Room, s.cfg.Secret, cmd.Arg)
	}
	return nil
}

// execute runs cmd against the gateway and renders the outcome line for the issuer.
func (s *Server) execute(ctx context.Context, cmd Command) string {
	res, err := s.gw.Request(ctx, s.body(cmd))
	if err != nil {
		return janusLine(fmt.Sprintf("%s failed: %s", cmd, describe(err)))
	}
	resp, err := janus.ParseRoomResponse(res)
	if err != nil {
		return janusLine(fmt.Sprintf("%s failed: %s", cmd, describe(err)))
	}
	switch cmd.Kind {
	case CmdCreateRoom:
		room := resp.Room
		if room == 0 {
			room = cmd.Arg
		}
		return janusLine(fmt.Sprintf("room %d created", room))
	case CmdKick:
		return janusLine(fmt.Sprintf("participant %d kicked from room %d", cmd.Arg, s.cfg.Room))
	}
	return janusLine(resp.Videoroom)
}

func describe(err error) string {
	var pe *janus.PluginError
	if errors.As(err, &pe) {
		return fmt.Sprintf("error %d: %s", pe.Code, pe.Reason)
	}
	if ge, ok := janus.AsGatewayError(err); ok {
		return fmt.Sprintf("gateway error %d: %s", ge.Code, ge.Reason)
	}
	switch {
	case errors.Is(err, janus.ErrNotConnected):
		return "gateway not connected"
	case errors.Is(err, janus.ErrTimeout):
		return "gateway did not answer in time"
	case errors.Is(err, janus.ErrConnectionLost):
		return "gateway connection lost"
	case errors.Is(err, janus.ErrShutdown):
		return "gateway shutting down"
	}
	return err.Error()
}

func userLine(id uint64, text string) string { return fmt.Sprintf("<User#%d>: %s", id, text) }

func janusLine(text string) string { return "<Janus>: " + text }
