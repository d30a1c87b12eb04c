package scanner

import (
	"path/filepath"
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/Lacarte/video-player/internal/course"
)

type language struct {
	tag   string
	label string
}

var languages = map[string]language{
	"en": {"en", "English"}, "eng": {"en", "English"}, "english": {"en", "English"},
	"es": {"es", "Spanish"}, "spa": {"es", "Spanish"}, "spanish": {"es", "Spanish"},
	"fr": {"fr", "French"}, "fra": {"fr", "French"}, "french": {"fr", "French"},
	"de": {"de", "German"}, "deu": {"de", "German"}, "german": {"de", "German"},
	"it": {"it", "Italian"}, "ita": {"it", "Italian"}, "italian": {"it", "Italian"},
	"pt": {"pt", "Portuguese"}, "por": {"pt", "Portuguese"}, "portuguese": {"pt", "Portuguese"},
	"ru": {"ru", "Russian"}, "rus": {"ru", "Russian"}, "russian": {"ru", "Russian"},
	"zh": {"zh", "Chinese"}, "chi": {"zh", "Chinese"}, "chinese": {"zh", "Chinese"},
	"ja": {"ja", "Japanese"}, "jpn": {"ja", "Japanese"}, "japanese": {"ja", "Japanese"},
	"ko": {"ko", "Korean"}, "kor": {"ko", "Korean"}, "korean": {"ko", "Korean"},
}

const suffixSeparators = "._- "

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// suffixAfter returns the part of subStem following videoStem, and whether
// the subtitle belongs to the video at all. A match needs the stems to be
// equal or the video stem followed by a separator, case-insensitively.
func suffixAfter(subStem, videoStem string) (string, bool) {
	s, v := strings.ToLower(subStem), strings.ToLower(videoStem)
	if !strings.HasPrefix(s, v) {
		return "", false
	}
	rest := s[len(v):]
	if rest == "" {
		return "", true
	}
	if !strings.ContainsRune(suffixSeparators, rune(rest[0])) {
		return "", false
	}
	return strings.Trim(rest, suffixSeparators), true
}

// subtitleFlags are suffix words that describe the track rather than its
// language, as in "lesson.es.forced.srt".
var subtitleFlags = map[string]bool{
	"forced": true, "sdh": true, "cc": true, "default": true,
}

var englishNames = display.English.Tags()

// detectLanguage maps a subtitle suffix such as "en", "eng", "es.forced",
// "Portuguese" or "pt-BR" to a tag and label. It reports false when the
// suffix is not a language, e.g. "notes" or "part 2"; such a file is not a
// subtitle of that video. A suffix made only of flags is the default
// language.
func detectLanguage(suffix string) (language, bool) {
	var tokens []string
	for _, tok := range strings.FieldsFunc(strings.ToLower(suffix), func(r rune) bool {
		return strings.ContainsRune(suffixSeparators, r)
	}) {
		if !subtitleFlags[tok] {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return language{"en", "English"}, true
	}
	if len(tokens) == 1 {
		if lang, ok := languages[tokens[0]]; ok {
			return lang, true
		}
	}

	tag, err := xlanguage.Parse(strings.Join(tokens, "-"))
	if err != nil || tag == xlanguage.Und {
		return language{}, false
	}
	if _, conf := tag.Base(); conf == xlanguage.No {
		return language{}, false
	}
	label := englishNames.Name(tag)
	if label == "" {
		label = tag.String()
	}
	return language{tag: tag.String(), label: label}, true
}

type subtitleFile struct {
	name    string
	path    string
	size    int64
	modTime int64
}

// attachSubtitles links every subtitle to the same-folder video with the
// longest stem it extends by nothing or a language suffix, so
// "intro.en.srt" goes to "intro.mp4" and "intro.part2.srt" to
// "intro.part2.mp4", while "intro_notes.srt" stays an orphan. Videos must
// already be sorted; on equal stems the first one wins. Orphans are
// dropped.
func attachSubtitles(videos []*course.Video, subs []subtitleFile) {
	for _, sub := range subs {
		subStem := stem(sub.name)
		var (
			best    *course.Video
			lang    language
			bestLen = -1
		)
		for _, v := range videos {
			vs := stem(v.File)
			if len(vs) <= bestLen {
				continue
			}
			suffix, ok := suffixAfter(subStem, vs)
			if !ok {
				continue
			}
			if l, ok := detectLanguage(suffix); ok {
				best, lang, bestLen = v, l, len(vs)
			}
		}
		if best == nil {
			continue
		}
		best.Subtitles = append(best.Subtitles, course.Subtitle{
			Label:     lang.label,
			Lang:      lang.tag,
			File:      sub.name,
			Path:      sub.path,
			SizeBytes: sub.size,
			ModTime:   sub.modTime,
		})
	}
}
