package alliance

import (
	"strings"

	"github.com/talgya/allegiance/internal/faction"
)

// CommandPrefix marks a chat line as an alliance command.
const CommandPrefix = "/alliance"

const helpText = `Alliance commands:
  /alliance list          list the powers you can align with
  /alliance status        show your faction's current standing
  /alliance <TAG>         ally your faction with the power <TAG> (one time only)
  /alliance reset <TAG>   reset a faction's choice (admin)
  /alliance resetall      reset every faction's choice (admin)`

// IsCommand reports whether a chat line is addressed to the alliance
// command surface.
func IsCommand(line string) bool {
	fields := strings.Fields(line)
	return len(fields) > 0 && strings.EqualFold(fields[0], CommandPrefix)
}

// HandleCommand interprets one chat command line and returns the reply to
// show the issuing player. Subcommand names are case-insensitive; faction
// tags are case-sensitive. The admin flag comes from the transport layer,
// which owns authentication.
func (e *Engine) HandleCommand(actor faction.ActorID, line string, admin bool) string {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return helpText
	}

	switch strings.ToLower(fields[1]) {
	case "help":
		return helpText
	case "list":
		return e.List()
	case "status":
		reply, err := e.Status(actor)
		if err != nil {
			return err.Error()
		}
		return reply
	case "reset":
		if !admin {
			return "You are not allowed to do that."
		}
		if len(fields) < 3 {
			return "Usage: /alliance reset <TAG>"
		}
		reply, err := e.Reset(fields[2])
		if err != nil {
			return err.Error()
		}
		return reply
	case "resetall":
		if !admin {
			return "You are not allowed to do that."
		}
		return e.ResetAll()
	default:
		reply, err := e.Align(actor, fields[1])
		if err != nil {
			return err.Error()
		}
		return reply
	}
}
