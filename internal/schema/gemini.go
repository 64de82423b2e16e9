package schema

// GeminiAPIFormat distinguishes the native Gemini wire schema from the
// OpenAI-compatible chat/completions schema the same upstream also serves,
// for routing decisions.
type GeminiAPIFormat int

const (
	GeminiFormatNative GeminiAPIFormat = iota
	GeminiFormatOpenAI
)

func (f GeminiAPIFormat) String() string {
	if f == GeminiFormatOpenAI {
		return "openai"
	}
	return "gemini"
}
