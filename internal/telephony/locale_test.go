package telephony

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectLocale(t *testing.T) {
	cases := []struct {
		text string
		want Locale
	}{
		{"שלום, איך אפשר לעזור?", Hebrew},
		{"Здравствуйте, чем могу помочь?", Russian},
		{"Hello, how can I help?", English},
		{"יש לנו terminal חדש", Hebrew},
		{"Terminal Verifone стоит 100", English},
		{"12:30 - 14:00", DefaultLocale},
		{"", DefaultLocale},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectLocale(tc.text), tc.text)
	}
}

func TestCleanForSpeech(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"**Available** slots:\n- 10:00\n- 12:00", "Available slots: 10:00 12:00"},
		{"## Options\n1. Terminal\n2) Yacht", "Options Terminal Yacht"},
		{"See [our site](https://example.com) for `details`", "See our site for details"},
		{"  plain   text\n\n", "plain text"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CleanForSpeech(tc.in), tc.in)
	}
}
