package bot

import (
	"maps"
	"strings"
)

// String keys used by the bot itself. The remaining keys are only consumed by the task module UI.
const (
	KeyInvalidTenant      = "invalidTenant"
	KeyExceptionResponse  = "exceptionResponse"
	KeySignInButtonText   = "signInButtonText"
	KeyInvalidAccountText = "invalidAccountText"
	KeyTaskModuleTitle    = "taskModuleTitle"
	KeyNoTeamFound        = "noTeamFound"
	KeyWelcomeCardTitle   = "welcomeCardTitle"
	KeyWelcomeCardContent = "welcomeCardContent"
	KeyAwardedTo          = "awardedTo"
	KeyMentionText        = "mentionText"
)

// Placeholders of templated strings.
const (
	placeholderRecipients = "{recipients}"
	placeholderAwarder    = "{awarder}"
)

var defaultStrings = map[string]string{
	KeyInvalidTenant:      "Sorry, this app can only be used within the organization it was installed for.",
	KeyExceptionResponse:  "Sorry, something went wrong. Please try again.",
	KeySignInButtonText:   "Sign in to Badgr",
	KeyInvalidAccountText: "Please sign in with the same account you use for Microsoft Teams.",
	KeyTaskModuleTitle:    "Badges",
	KeyNoTeamFound:        "Badges can only be awarded from within a team. Please add the app to a team and try again.",
	KeyWelcomeCardTitle:   "Welcome to Badges!",
	KeyWelcomeCardContent: "Recognize your colleagues by awarding them Open Badges right from the conversation.",
	KeyAwardedTo:          "{awarder} awarded this badge to",
	KeyMentionText:        "{recipients} got a badge from {awarder}",

	"selectBadge":                   "Select a badge",
	"createBadgeName":               "Create a badge",
	"createBadgeDescription":        "Create badges in the Badgr portal to award them here.",
	"emptyAllBadgesTitle":           "No badges yet",
	"emptyAllBadgesDescription":     "Your organization has not created any badges.",
	"sessionExpired":                "Your session has expired. Please close this window and try again.",
	"badge":                         "Badge",
	"badgeCriteria":                 "Criteria",
	"badgeDescription":              "Description",
	"badgeName":                     "Name",
	"awardedBy":                     "Awarded by",
	"onDate":                        "on",
	"emptyYourBadgesTitle":          "No badges earned yet",
	"emptyYourBadgesDescription":    "Badges you earn will show up here.",
	"allBadges":                     "All badges",
	"yourBadges":                    "Your badges",
	"selectAtleastOneMember":        "Select at least one member.",
	"badgeToAward":                  "Badge",
	"toBeAwardedTo":                 "To be awarded to",
	"searchTeamMembers":             "Search team members",
	"noMatchesFound":                "No matches found",
	"noteForRecipients":             "Note for recipients",
	"noteForReceipientsPlaceholder": "Why are they receiving this badge?",
	"preview":                       "Preview",
	"award":                         "Award",
	"noteCharacterLimitExceeded":    "The note cannot be longer than 500 characters.",
	"unauthorizedAccess":            "You are not allowed to award badges.",
	"previewBadgeTitle":             "Preview badge",
}

// Strings is the table of user facing texts.
type Strings struct {
	values map[string]string
}

// NewStrings returns the default table with overrides applied. Empty overrides are ignored.
func NewStrings(overrides map[string]string) *Strings {
	values := maps.Clone(defaultStrings)
	for k, v := range overrides {
		if v != "" {
			values[k] = v
		}
	}
	return &Strings{values: values}
}

// Get returns the text for key, or key itself if unknown.
func (s *Strings) Get(key string) string {
	if v, ok := s.values[key]; ok {
		return v
	}
	return key
}

// All returns a copy of the whole table.
func (s *Strings) All() map[string]string {
	return maps.Clone(s.values)
}

func (s *Strings) mentionText(recipients, awarder string) string {
	return strings.NewReplacer(
		placeholderRecipients, recipients,
		placeholderAwarder, awarder,
	).Replace(s.Get(KeyMentionText))
}

func (s *Strings) awardedTo(awarder string) string {
	return strings.ReplaceAll(s.Get(KeyAwardedTo), placeholderAwarder, awarder)
}
