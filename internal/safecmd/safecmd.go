// Package safecmd validates the constrained command set allowed on
// stopped instances. Only an allow-listed verb set is accepted, and both
// verb and arguments are parsed strictly: this is a security boundary, not
// a convenience check, since validated arguments are passed through with
// minimal interpretation.
package safecmd

import (
	"strings"

	"github.com/gpurig/rig/internal/models"
)

// Command is a validated constrained command.
type Command struct {
	Verb string
	Args []string
}

// Per-verb flag allow-lists. Everything else is rejected.
var allowedFlags = map[string]map[string]bool{
	"ls": {"-l": true, "-a": true, "-h": true, "-R": true, "-r": true, "-t": true, "-o": true},
	"rm": {"-r": true, "-f": true},
	"du": {"-h": true, "-s": true},
}

// Characters that would let an argument escape into the shell. Glob
// characters are included: expansion on the remote side is not a feature
// of this surface.
const metacharacters = ";&|<>`$(){}\\\"'\n\r*?[]~#!"

// Parse validates a raw constrained command. It returns a ValidationError
// before any remote dispatch when the verb is not allow-listed, a flag is
// not recognized for the verb, or any token carries shell metacharacters.
func Parse(raw string) (*Command, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, &models.ValidationError{Field: "command", Message: "command is required"}
	}

	verb := fields[0]
	flags, ok := allowedFlags[verb]
	if !ok {
		return nil, &models.ValidationError{
			Field:   "command",
			Message: "verb " + quoteToken(verb) + " is not allowed; only ls, rm, du",
		}
	}

	cmd := &Command{Verb: verb}
	for _, arg := range fields[1:] {
		if strings.ContainsAny(arg, metacharacters) {
			return nil, &models.ValidationError{
				Field:   "command",
				Message: "argument " + quoteToken(arg) + " contains forbidden characters",
			}
		}

		if strings.HasPrefix(arg, "-") {
			if !validFlag(verb, flags, arg) {
				return nil, &models.ValidationError{
					Field:   "command",
					Message: "flag " + quoteToken(arg) + " is not allowed for " + verb,
				}
			}
		}
		cmd.Args = append(cmd.Args, arg)
	}

	return cmd, nil
}

// validFlag checks a single flag token against the verb's allow-list.
// Combined short flags are accepted when every letter is individually
// allowed, and du additionally accepts -d<N> depth limits.
func validFlag(verb string, flags map[string]bool, arg string) bool {
	if flags[arg] {
		return true
	}
	if verb == "du" && strings.HasPrefix(arg, "-d") {
		depth := arg[2:]
		if depth == "" {
			return false
		}
		for _, r := range depth {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	}
	if strings.HasPrefix(arg, "--") || len(arg) < 3 {
		return false
	}
	for _, r := range arg[1:] {
		if !flags["-"+string(r)] {
			return false
		}
	}
	return true
}

// Render rebuilds the command string from the validated tokens. The raw
// input is never dispatched.
func (c *Command) Render() string {
	if len(c.Args) == 0 {
		return c.Verb
	}
	return c.Verb + " " + strings.Join(c.Args, " ")
}

// quoteToken quotes a token for an error message without %q noise.
func quoteToken(s string) string {
	if len(s) > 32 {
		s = s[:32] + "..."
	}
	return "'" + s + "'"
}
