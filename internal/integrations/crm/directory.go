package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/voicebot-core/server/internal/agent/model"
	logx "github.com/voicebot-core/server/pkg/logger"
)

// DefaultProfiles are the demo callers known without a profiles file.
var DefaultProfiles = map[string]model.CallerProfile{
	"449": {Name: "Daniel", Gender: model.GenderMale},
	"000": {Name: "Maria", Gender: model.GenderFemale},
}

// Directory resolves callers by the trailing digits of their phone number.
type Directory struct {
	bySuffix map[string]model.CallerProfile
}

func NewDirectory(profiles map[string]model.CallerProfile) *Directory {
	d := &Directory{bySuffix: make(map[string]model.CallerProfile, len(profiles))}
	for suffix, p := range profiles {
		if s := digits(suffix); s != "" {
			d.bySuffix[s] = p
		}
	}
	return d
}

// LoadDirectory reads a JSON object of suffix -> profile. An empty path yields DefaultProfiles.
func LoadDirectory(path string) (*Directory, error) {
	if path == "" {
		return NewDirectory(DefaultProfiles), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	var profiles map[string]model.CallerProfile
	if err := json.Unmarshal(raw, &profiles); err != nil {
		return nil, fmt.Errorf("decode profiles %s: %w", path, err)
	}
	return NewDirectory(profiles), nil
}

// Lookup returns the profile whose suffix is the longest match for phone.
func (d *Directory) Lookup(_ context.Context, phone string) (model.CallerProfile, bool, error) {
	num := digits(phone)
	if num == "" {
		return model.CallerProfile{}, false, nil
	}
	best := ""
	for suffix := range d.bySuffix {
		if len(suffix) > len(best) && strings.HasSuffix(num, suffix) {
			best = suffix
		}
	}
	if best == "" {
		return model.CallerProfile{}, false, nil
	}
	p := d.bySuffix[best]
	logx.Debug().Str("suffix", best).Str("name", p.Name).Msg("caller profile matched")
	return p, true, nil
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
