package upload

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const (
	DefaultLanguage = "te"
	DefaultModel    = "large-v3"
	DefaultBeamSize = 20

	MinBeamSize = 1
	MaxBeamSize = 20
)

// Models accepted by the backend, best quality first.
var Models = []string{"large-v3", "large", "medium", "small", "base"}

var supportedLanguages = []language.Tag{language.Telugu, language.Hindi}

// Params are the job parameters sent with an upload.
type Params struct {
	Language       string
	Model          string
	BeamSize       int
	ReturnSegments bool
}

func DefaultParams() Params {
	return Params{
		Language:       DefaultLanguage,
		Model:          DefaultModel,
		BeamSize:       DefaultBeamSize,
		ReturnSegments: true,
	}
}

// Normalize fills defaults and rewrites the language to its ISO 639-1 code.
func (p Params) Normalize() (Params, error) {
	if strings.TrimSpace(p.Language) == "" {
		p.Language = DefaultLanguage
	}
	if strings.TrimSpace(p.Model) == "" {
		p.Model = DefaultModel
	}
	if p.BeamSize == 0 {
		p.BeamSize = DefaultBeamSize
	}

	code, err := NormalizeLanguage(p.Language)
	if err != nil {
		return p, err
	}
	p.Language = code
	p.Model = strings.ToLower(strings.TrimSpace(p.Model))

	return p, p.Validate()
}

// Validate applies the same limits the backend enforces.
func (p Params) Validate() error {
	if _, err := NormalizeLanguage(p.Language); err != nil {
		return err
	}
	if !validModel(p.Model) {
		return fmt.Errorf("model must be one of: %s", strings.Join(Models, ", "))
	}
	if p.BeamSize < MinBeamSize || p.BeamSize > MaxBeamSize {
		return fmt.Errorf("beam size must be between %d and %d", MinBeamSize, MaxBeamSize)
	}
	return nil
}

// NormalizeLanguage accepts an ISO code ("te"), a BCP 47 tag ("te-IN"), an
// English name ("Telugu") or the native name and returns the ISO code.
func NormalizeLanguage(s string) (string, error) {
	s = strings.TrimSpace(s)
	if tag, err := language.Parse(s); err == nil {
		base, _ := tag.Base()
		for _, supported := range supportedLanguages {
			sb, _ := supported.Base()
			if base == sb {
				return sb.String(), nil
			}
		}
	}
	for _, supported := range supportedLanguages {
		if strings.EqualFold(s, display.English.Tags().Name(supported)) ||
			s == display.Self.Name(supported) {
			b, _ := supported.Base()
			return b.String(), nil
		}
	}
	return "", fmt.Errorf("language must be one of: %s", supportedNames())
}

// LanguageName returns the English name for an ISO code, or the code itself.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

func supportedNames() string {
	names := make([]string, 0, len(supportedLanguages))
	for _, t := range supportedLanguages {
		b, _ := t.Base()
		names = append(names, fmt.Sprintf("%s (%s)", b.String(), display.English.Tags().Name(t)))
	}
	return strings.Join(names, ", ")
}

func validModel(m string) bool {
	for _, known := range Models {
		if m == known {
			return true
		}
	}
	return false
}
