package bot

import (
	"github.com/bwmarrin/discordgo"
)

type ResponseString struct {
	string
}
type ResponseEmbed struct {
	discordgo.MessageEmbed
}

// An embed with buttons below it
type ResponsePanel struct {
	discordgo.MessageEmbed
	buttons []discordgo.Button
}

// A response can be sent to a channel, or used to answer an interaction
type Response interface {
	Send(channelid string, discord *discordgo.Session) (*discordgo.Message, error)
	Data() *discordgo.InteractionResponseData
}

func (response ResponseString) Send(channelid string, discord *discordgo.Session) (*discordgo.Message, error) {
	return discord.ChannelMessageSend(channelid, response.string)
}

func (response ResponseString) Data() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{Content: response.string}
}

func (response ResponseEmbed) Send(channelid string, discord *discordgo.Session) (*discordgo.Message, error) {
	return discord.ChannelMessageSendEmbed(channelid, &response.MessageEmbed)
}

func (response ResponseEmbed) Data() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{&response.MessageEmbed}}
}

func (response ResponsePanel) Send(channelid string, discord *discordgo.Session) (*discordgo.Message, error) {
	return discord.ChannelMessageSendComplex(channelid, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{&response.MessageEmbed},
		Components: response.components(),
	})
}

func (response ResponsePanel) Data() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		Embeds:     []*discordgo.MessageEmbed{&response.MessageEmbed},
		Components: response.components(),
	}
}

func (response ResponsePanel) components() []discordgo.MessageComponent {
	row := discordgo.ActionsRow{}
	for _, button := range response.buttons {
		row.Components = append(row.Components, button)
	}
	return []discordgo.MessageComponent{row}
}

// Answer an interaction with a message only the invoking user can see
func respondEphemeral(discord *discordgo.Session, interaction *discordgo.Interaction, response Response) error {
	data := response.Data()
	data.Flags = discordgo.MessageFlagsEphemeral
	return discord.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}
