package bot

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	COMMAND_VERIFY = iota
	COMMAND_MARKS  = iota
	COMMAND_SETUP  = iota
	COMMAND_HELP   = iota
)

const (
	PARSEID_OK                     = iota
	PARSEID_NO_BOT_PREFIX          = iota
	PARSEID_NO_COMMAND             = iota
	PARSEID_COMMAND_NOT_RECOGNISED = iota
	PARSEID_NO_INPUT               = iota
	PARSEID_TOO_MANY_ARGUMENTS     = iota
	PARSEID_NOT_A_MEMBER           = iota
)

var errorMessages map[int]string = map[int]string{
	PARSEID_NO_COMMAND:             "No command provided",
	PARSEID_COMMAND_NOT_RECOGNISED: "Command `%s` not recognised",
	PARSEID_NO_INPUT:               "Missing required arguments! Usage: `%s`",
	PARSEID_TOO_MANY_ARGUMENTS:     "Too many arguments! Usage: `%s`",
	PARSEID_NOT_A_MEMBER:           "`%s` is not a member mention",
}

type ParseResult struct {
	command      int
	parseid      int
	errorMessage string
	arguments    interface{}
}

// Arguments of the verify command. The member is only
// present when verifying someone else
type VerifyArguments struct {
	MemberId string
	Id       string
}

func Parse(prefix string, message string) ParseResult {

	usageError := func(parseid int, command int, usage string) ParseResult {
		return ParseResult{command: command, parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], prefix+usage)}
	}

	// The message has to start with the bot prefix
	if !strings.HasPrefix(message, prefix) {
		log.Debug().Msg("Reject message not intended for the bot")
		return ParseResult{parseid: PARSEID_NO_BOT_PREFIX}
	}

	// Get the command if valid
	words := strings.Fields(message[len(prefix):])
	if len(words) == 0 {
		parseid := PARSEID_NO_COMMAND
		return ParseResult{parseid: parseid, errorMessage: errorMessages[parseid]}
	}
	commandString := strings.ToLower(words[0])
	words = words[1:]

	// Match the command

	switch commandString {
	case "verify":
		// !verify <id>
		// !verify <@member> <id>
		command := COMMAND_VERIFY
		usage := "verify ID_NUMBER"
		switch len(words) {
		case 0:
			return usageError(PARSEID_NO_INPUT, command, usage)
		case 1:
			return ParseResult{command: command, parseid: PARSEID_OK, arguments: VerifyArguments{Id: words[0]}}
		case 2:
			memberId, ok := parseMention(words[0])
			if !ok {
				parseid := PARSEID_NOT_A_MEMBER
				return ParseResult{command: command, parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], words[0])}
			}
			return ParseResult{command: command, parseid: PARSEID_OK, arguments: VerifyArguments{MemberId: memberId, Id: words[1]}}
		default:
			return usageError(PARSEID_TOO_MANY_ARGUMENTS, command, usage)
		}
	case "marks":
		// !marks <id>
		command := COMMAND_MARKS
		usage := "marks ID_NUMBER"
		switch len(words) {
		case 0:
			return usageError(PARSEID_NO_INPUT, command, usage)
		case 1:
			return ParseResult{command: command, parseid: PARSEID_OK, arguments: words[0]}
		default:
			return usageError(PARSEID_TOO_MANY_ARGUMENTS, command, usage)
		}
	case "setup_verification":
		// !setup_verification
		return ParseResult{command: COMMAND_SETUP, parseid: PARSEID_OK}
	case "help":
		// !help
		return ParseResult{command: COMMAND_HELP, parseid: PARSEID_OK}
	default:
		parseid := PARSEID_COMMAND_NOT_RECOGNISED
		return ParseResult{parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], commandString)}
	}
}

// Extract the user id from a mention like <@123> or <@!123>
func parseMention(word string) (string, bool) {
	if !strings.HasPrefix(word, "<@") || !strings.HasSuffix(word, ">") {
		return "", false
	}
	id := strings.TrimPrefix(word[2:len(word)-1], "!")
	if id == "" {
		return "", false
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	return id, true
}
