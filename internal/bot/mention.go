package bot

import (
	"bytes"
	"encoding/xml"
	"slices"
	"strings"

	"github.com/darmiel/badgebot/internal/botframework"
	"github.com/darmiel/badgebot/internal/core"
)

const entityMention = "mention"

// Mention is the text and entities of a message mentioning award recipients and the awarder.
type Mention struct {
	Text     string
	Entities []botframework.Entity
}

// BuildMention mentions every roster member whose email is in recipients, then the awarder.
// It reports false if the awarder is not a member of the roster.
func BuildMention(s *Strings, roster []core.RosterEntry, recipients []string, awardedBy string) (Mention, bool) {
	awarder, ok := core.FindByEmail(roster, awardedBy)
	if !ok {
		return Mention{}, false
	}

	var (
		text     strings.Builder
		entities []botframework.Entity
	)
	for _, member := range roster {
		if !slices.Contains(recipients, member.Email) {
			continue
		}
		entity := mentionEntity(member)
		entities = append(entities, entity)
		text.WriteString(entity.Text)
		text.WriteByte(',')
	}

	by := mentionEntity(awarder)
	entities = append(entities, by)
	return Mention{
		Text:     s.mentionText(text.String(), by.Text),
		Entities: entities,
	}, true
}

func mentionEntity(member core.RosterEntry) botframework.Entity {
	return botframework.Entity{
		Type: entityMention,
		Mentioned: &botframework.ChannelAccount{
			ID:   member.ID,
			Name: member.Name,
		},
		Text: "<at>" + escapeXML(member.Name) + "</at>",
	}
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// awardView resolves emails to display names. Unknown emails are shown as-is.
func awardView(roster []core.RosterEntry, data AwardData) AwardView {
	name := func(email string) string {
		if m, ok := core.FindByEmail(roster, email); ok && m.Name != "" {
			return m.Name
		}
		return email
	}
	recipients := make([]string, 0, len(data.AwardRecipients))
	for _, r := range data.AwardRecipients {
		recipients = append(recipients, name(r))
	}
	return AwardView{
		BadgeName:  data.BadgeName,
		ImageURI:   data.ImageURI,
		Narrative:  data.Narrative,
		AwardedBy:  name(data.AwardedBy),
		Recipients: recipients,
	}
}
