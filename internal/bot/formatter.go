package bot

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"sectionbot/internal/marks"
	"sectionbot/internal/verify"
)

// Use "blue" color for the bot
const color int = 0x3498db

// Custom ids of the components the bot sends
const (
	verifyButtonId = "verify_button"
	marksButtonId  = "marks_button"
	verifyModalId  = "verify_modal"
	marksModalId   = "marks_modal"
	idInputId      = "id_number"
)

func InputNotValid(errorMessage string) Response {
	return ResponseString{fmt.Sprintf("Input not valid: \n> %s", errorMessage)}
}

func HelpMessage(prefix string) Response {

	embed := discordgo.MessageEmbed{Title: "Commands available", Color: color}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%sverify <id>`", prefix),
		Value:  "Verify yourself with your ID number and get your section role",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%sverify <@member> <id>`", prefix),
		Value:  "Verify another member (administrators only)",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%smarks <id>`", prefix),
		Value:  "Receive your quiz marks in a direct message",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%ssetup_verification`", prefix),
		Value:  "Post the verification panel in this channel (administrators only)",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%shelp`", prefix),
		Value:  "Print the usage of the different commands",
		Inline: false,
	})
	return ResponseEmbed{embed}
}

func VerificationPanel() Response {
	embed := discordgo.MessageEmbed{
		Title: "🎓 Student Verification",
		Description: "Welcome to the server! To get access to your section channels:\n\n" +
			"1. Click the 'Verify Me' button below\n" +
			"2. Enter your Student ID when prompted\n" +
			"3. You'll be automatically assigned to your section\n\n" +
			"**Note:** You can only be in one section at a time.",
		Color: color,
	}
	return ResponsePanel{
		MessageEmbed: embed,
		buttons: []discordgo.Button{
			{Label: "Verify Me", Style: discordgo.SuccessButton, CustomID: verifyButtonId},
			{Label: "Check Marks", Style: discordgo.PrimaryButton, CustomID: marksButtonId},
		},
	}
}

// The form asking for the id number
func IdModal(customId string, title string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customId,
			Title:    title,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    idInputId,
							Label:       "Enter your ID Number",
							Style:       discordgo.TextInputShort,
							Placeholder: "Enter your ID number here...",
							Required:    true,
							MinLength:   4,
							MaxLength:   10,
						},
					},
				},
			},
		},
	}
}

func VerificationSucceeded(assignment verify.Assignment) Response {
	content := fmt.Sprintf("Successfully verified! You have been assigned to %s", assignment.Role)
	if assignment.Channel != "" {
		content += fmt.Sprintf(" with access to #%s", assignment.Channel)
	}
	return ResponseString{content}
}

func MemberVerified(memberId string, assignment verify.Assignment) Response {
	content := fmt.Sprintf("<@%s> has been assigned to %s", memberId, assignment.Role)
	if assignment.Channel != "" {
		content += fmt.Sprintf(" with access to #%s", assignment.Channel)
	}
	return ResponseString{content}
}

func MarksMessage(record marks.Record) Response {
	embed := discordgo.MessageEmbed{Title: fmt.Sprintf("Marks for `%s`", record.Id), Color: color}
	fields := []struct{ name, value string }{
		{"ID", record.Id},
		{"Name", record.Name},
		{"G-Suite", record.GSuite},
		{"Section", record.Section},
		{"Marks", record.Marks},
	}
	for _, field := range fields {
		value := field.value
		if value == "" {
			value = "-"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: field.name, Value: value, Inline: true})
	}
	return ResponseEmbed{embed}
}

func MarksSentPrivately() Response {
	return ResponseString{"I have sent you your marks in a direct message"}
}

func CouldNotSendPrivately() Response {
	return ResponseString{"I could not send you a direct message. Use the 'Check Marks' button instead"}
}

func AdministratorsOnly(command string) Response {
	return ResponseString{fmt.Sprintf("Only administrators can use `%s`", command)}
}

func MemberNotFound(memberId string) Response {
	return ResponseString{fmt.Sprintf("Could not find member <@%s> in this server", memberId)}
}

func ServerOnly() Response {
	return ResponseString{"This only works inside a server"}
}

func GenericError() Response {
	return ResponseString{"An error occurred. Please try again or contact an administrator."}
}

// Turn the error of a workflow into the single message shown to the user
func Rejection(err error, id string) Response {

	var guardErr *verify.GuardError
	if errors.As(err, &guardErr) {
		switch guardErr.Reason {
		case verify.AlreadyAssigned:
			return ResponseString{fmt.Sprintf("You are already assigned to %s. You cannot be in multiple sections!", guardErr.Role)}
		case verify.IdAlreadyClaimed:
			return ResponseString{"This ID has already been claimed by another member. Please contact an administrator if this is a mistake."}
		case verify.UnknownId:
			return ResponseString{"Invalid ID number! Please try again with a valid ID."}
		case verify.NotVerified:
			return ResponseString{"You need to verify yourself before checking your marks."}
		case verify.IdMismatch:
			return ResponseString{"You can only check the marks of the ID you were verified with."}
		case verify.RecordNotFound:
			return ResponseString{fmt.Sprintf("No marks were found for ID `%s`.", id)}
		case verify.RateLimited:
			return ResponseString{"Too many attempts. Please wait a moment and try again."}
		}
	}

	var permErr *verify.PermissionError
	if errors.As(err, &permErr) {
		return ResponseString{fmt.Sprintf("I do not have permission to %s. Please contact an administrator.", permErr.Action)}
	}

	return GenericError()
}

// Same as Rejection, for an administrator verifying another member
func MemberRejection(err error, id string, memberId string) Response {
	var guardErr *verify.GuardError
	if errors.As(err, &guardErr) && guardErr.Reason == verify.AlreadyAssigned {
		return ResponseString{fmt.Sprintf("<@%s> is already assigned to %s. A member cannot be in multiple sections!", memberId, guardErr.Role)}
	}
	return Rejection(err, id)
}
