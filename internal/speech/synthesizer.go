package speech

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"horse.fit/parrot/internal/language"
)

// ErrUnsupportedLanguage reports a synthesis request for a language outside
// the speech allow-list.
var ErrUnsupportedLanguage = errors.New("language is not supported for speech")

// Synthesizer renders text to a stored audio asset and returns its file name.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) (string, error)
}

// Languages with acceptable synthesis quality. A subset of the translation
// languages; requests outside this set fail with ErrUnsupportedLanguage
// without affecting the translation itself.
var speechLanguages = map[string]struct{}{
	"de": {},
	"en": {},
	"es": {},
	"fr": {},
	"it": {},
	"ja": {},
	"ko": {},
	"pl": {},
	"pt": {},
	"ru": {},
	"tr": {},
	"zh": {},
}

func SupportedSpeechLanguageCodes() []string {
	codes := make([]string, 0, len(speechLanguages))
	for code := range speechLanguages {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func IsSupportedSpeechLanguage(code string) bool {
	_, ok := speechLanguages[language.NormalizeCode(code)]
	return ok
}

// newAudioAssetName returns a collision-free audio file name. Names are
// random at creation time; no directory scan is involved.
func newAudioAssetName() string {
	return fmt.Sprintf("audio_%s.mp3", uuid.NewString())
}
