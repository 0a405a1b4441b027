package translate

import (
	"fmt"
	"strings"

	"glossa/internal/language"
)

// systemPrompt captures the instructions sent with every chat-based
// translation batch. Keep updates centralized here so it is easy to tweak
// without hunting through call sites.
const systemPrompt = `You are a professional subtitle translator. Translate subtitles from %s to %s.
Maintain the original meaning and timing constraints.
Keep translations concise and natural for subtitle display.
Respond ONLY with a JSON array of strings, one translated string per input line, in the same order.`

func buildSystemPrompt(sourceLang, targetLang string) string {
	return fmt.Sprintf(systemPrompt, language.DisplayName(sourceLang), language.DisplayName(targetLang))
}

// buildUserPrompt numbers every line so the model keeps order and count even
// when neighboring cues read like one sentence.
func buildUserPrompt(texts []string) string {
	var b strings.Builder
	b.WriteString("Translate the following subtitle lines.\n\n")
	for i, text := range texts {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, text)
	}
	fmt.Fprintf(&b, "\nReturn exactly %d translations as a JSON array of strings.", len(texts))
	return b.String()
}
