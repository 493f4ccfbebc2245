package telephony

import (
	"regexp"
	"strings"
	"unicode"
)

type Locale string

const (
	Hebrew  Locale = "he"
	Russian Locale = "ru"
	English Locale = "en"

	DefaultLocale = Hebrew
)

// Voice is the TTS voice and recognition language used for one locale.
type Voice struct {
	TTS         string
	Language    string
	STTLanguage string
}

var DefaultVoices = map[Locale]Voice{
	Hebrew:  {TTS: "Google.he-IL-Standard-A", Language: "he-IL", STTLanguage: "iw-IL"},
	Russian: {TTS: "Google.ru-RU-Standard-A", Language: "ru-RU", STTLanguage: "ru-RU"},
	English: {TTS: "Google.en-US-Standard-C", Language: "en-US", STTLanguage: "en-US"},
}

// DetectLocale picks the locale whose script dominates the letters of text.
// Ties go to Hebrew, then Russian. Text without letters gets DefaultLocale.
func DetectLocale(text string) Locale {
	var he, ru, en int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Hebrew, r):
			he++
		case unicode.Is(unicode.Cyrillic, r):
			ru++
		case unicode.Is(unicode.Latin, r):
			en++
		}
	}
	switch {
	case he == 0 && ru == 0 && en == 0:
		return DefaultLocale
	case he >= ru && he >= en:
		return Hebrew
	case ru >= en:
		return Russian
	default:
		return English
	}
}

var (
	mdLink     = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdBullet   = regexp.MustCompile(`(?m)^\s*(?:[-*+•]|\d+[.)])\s+`)
	mdHeading  = regexp.MustCompile(`(?m)^\s*#{1,6}\s*`)
	mdEmphasis = strings.NewReplacer("**", "", "__", "", "`", "", "*", "", "~~", "")
)

// CleanForSpeech strips markdown the model may emit and collapses whitespace
// so the text reads naturally through TTS.
func CleanForSpeech(text string) string {
	text = mdLink.ReplaceAllString(text, "$1")
	text = mdHeading.ReplaceAllString(text, "")
	text = mdBullet.ReplaceAllString(text, "")
	text = mdEmphasis.Replace(text)
	return strings.Join(strings.Fields(text), " ")
}
