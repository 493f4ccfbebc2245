package dialogue

import (
	"regexp"
	"strings"

	"github.com/voicebot-core/server/internal/agent/model"
)

var genderTag = regexp.MustCompile(`(?i)\[GENDER:\s*(male|female)\]`)

// ExtractGenderSignal removes the first [GENDER: male|female] tag from text.
// It returns the trimmed text, the signalled gender and whether a tag was found.
// Tags with any other value are left in place.
func ExtractGenderSignal(text string) (string, model.Gender, bool) {
	loc := genderTag.FindStringSubmatchIndex(text)
	if loc == nil {
		return strings.TrimSpace(text), model.GenderUnknown, false
	}
	g, ok := model.ParseGender(text[loc[2]:loc[3]])
	if !ok {
		return strings.TrimSpace(text), model.GenderUnknown, false
	}
	return strings.TrimSpace(text[:loc[0]] + text[loc[1]:]), g, true
}
