package podcast

import (
	"regexp"
	"strings"
)

// Scripts must be pure spoken text: TTS reads every character aloud, so
// markers, URLs and "see the link" phrasing all have to go.
var (
	boldMarkerRe   = regexp.MustCompile(`\*\*\[[^\]]*\]\*\*`)
	markdownLinkRe = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)
	bracketRe      = regexp.MustCompile(`\[[^\]]*\]`)
	bareURLRe      = regexp.MustCompile(`https?://\S+`)
	boldRe         = regexp.MustCompile(`\*\*([^*]*)\*\*`)
	spaceRunRe     = regexp.MustCompile(`[ \t]{2,}`)
	blankRunRe     = regexp.MustCompile(`\n{3,}`)
	danglingRe     = regexp.MustCompile(`[ \t]+([.,!?;:])`)
)

// linkPhrases mark sentences that point the listener at a link. The whole
// sentence is dropped because it makes no sense once the URL is gone.
var linkPhrases = []string{
	"you can check",
	"check it out",
	"check out the link",
	"it's worth a peek",
	"link in the description",
	"click the link",
	"follow the link",
	"read more at",
	"full article at",
}

// CleanScript reduces raw LLM output to speakable text: stage markers and
// brackets removed, markdown links reduced to their text, URLs stripped,
// link-pointing sentences dropped, whitespace normalized to at most one
// blank line between paragraphs.
func CleanScript(raw string) string {
	text := boldMarkerRe.ReplaceAllString(raw, "")
	text = markdownLinkRe.ReplaceAllString(text, "$1")
	text = bracketRe.ReplaceAllString(text, "")
	text = bareURLRe.ReplaceAllString(text, "")
	text = boldRe.ReplaceAllString(text, "$1")
	text = dropLinkSentences(text)
	text = danglingRe.ReplaceAllString(text, "$1")
	text = spaceRunRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// dropLinkSentences removes every sentence containing a link-pointing phrase.
// Sentences end at '.', '!' or '?'; a trailing fragment without terminal
// punctuation counts as a sentence.
func dropLinkSentences(text string) string {
	var out strings.Builder
	var sentence strings.Builder

	flush := func() {
		s := sentence.String()
		sentence.Reset()
		lower := strings.ToLower(s)
		for _, phrase := range linkPhrases {
			if strings.Contains(lower, phrase) {
				return
			}
		}
		out.WriteString(s)
	}

	for _, r := range text {
		sentence.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			flush()
		}
	}
	flush()
	return out.String()
}
