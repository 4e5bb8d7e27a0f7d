package bot

import (
	"strings"

	"github.com/darmiel/badgebot/internal/botframework"
)

const adaptiveCardVersion = "1.2"

// card is an adaptive card body element.
type card = map[string]any

func adaptiveCard(body ...card) *botframework.Attachment {
	return &botframework.Attachment{
		ContentType: botframework.ContentTypeAdaptiveCard,
		Content: card{
			"type":    "AdaptiveCard",
			"version": adaptiveCardVersion,
			"$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
			"body":    body,
		},
	}
}

func textBlock(text, size, weight string) card {
	c := card{
		"type": "TextBlock",
		"text": text,
		"wrap": true,
	}
	if size != "" {
		c["size"] = size
	}
	if weight != "" {
		c["weight"] = weight
	}
	return c
}

func column(width string, items ...card) card {
	return card{
		"type":                     "Column",
		"width":                    width,
		"verticalContentAlignment": "Center",
		"items":                    items,
	}
}

func columnSet(columns ...card) card {
	return card{
		"type":    "ColumnSet",
		"columns": columns,
	}
}

// WelcomeCard is posted once when the bot is added to a conversation.
func WelcomeCard(s *Strings, imageURL string) *botframework.Attachment {
	return adaptiveCard(
		columnSet(
			column("auto", card{
				"type": "Image",
				"url":  imageURL,
				"size": "Medium",
			}),
			column("stretch",
				textBlock(s.Get(KeyWelcomeCardTitle), "Large", "Bolder"),
				textBlock(s.Get(KeyWelcomeCardContent), "", ""),
			),
		),
	)
}

// TeamNotFoundCard is shown in the task module if it was opened outside of a team.
func TeamNotFoundCard(s *Strings) *botframework.Attachment {
	return adaptiveCard(textBlock(s.Get(KeyNoTeamFound), "", ""))
}

// AwardView is the display form of an award: names instead of emails.
type AwardView struct {
	BadgeName  string
	ImageURI   string
	Narrative  string
	AwardedBy  string
	Recipients []string
}

// AwardCard announces an awarded badge in the conversation.
func AwardCard(s *Strings, view AwardView) *botframework.Attachment {
	header := []card{
		column("auto", textBlock(view.BadgeName, "Large", "Bolder")),
	}
	if view.ImageURI != "" {
		header = append(header, column("stretch", card{
			"type":                "Image",
			"url":                 view.ImageURI,
			"size":                "Medium",
			"horizontalAlignment": "Right",
		}))
	}
	body := []card{
		columnSet(header...),
		columnSet(column("auto", textBlock(s.awardedTo(view.AwardedBy), "Small", "Default"))),
		columnSet(column("auto", textBlock(strings.Join(view.Recipients, ", "), "Small", "Bolder"))),
	}
	if view.Narrative != "" {
		body = append(body, columnSet(column("auto", textBlock(view.Narrative, "Small", "Default"))))
	}
	return adaptiveCard(body...)
}
