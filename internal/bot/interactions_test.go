package bot

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestTextInputValue(t *testing.T) {
	tests := []struct {
		name       string
		components []discordgo.MessageComponent
		expected   string
	}{
		{
			name: "pointers",
			components: []discordgo.MessageComponent{
				&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: "other", Value: "nope"},
				}},
				&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: idInputId, Value: "21301429"},
				}},
			},
			expected: "21301429",
		},
		{
			name: "values",
			components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{CustomID: idInputId, Value: "12345"},
				}},
			},
			expected: "12345",
		},
		{
			name: "value row holding a pointer",
			components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: idInputId, Value: "67890"},
				}},
			},
			expected: "67890",
		},
		{
			name: "input outside of a row",
			components: []discordgo.MessageComponent{
				&discordgo.TextInput{CustomID: idInputId, Value: "2221021"},
			},
			expected: "2221021",
		},
		{
			name: "missing",
			components: []discordgo.MessageComponent{
				&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: "other", Value: "nope"},
					discordgo.Button{CustomID: idInputId},
				}},
			},
			expected: "",
		},
		{
			name:       "empty",
			components: nil,
			expected:   "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, textInputValue(test.components, idInputId))
		})
	}
}
