package claudeweb

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/Laisky/llm-gateway/internal/gatewayconfig"
	"github.com/Laisky/llm-gateway/internal/gwerror"
	"github.com/Laisky/llm-gateway/internal/schema"
)

// webRequestBody is the upstream Claude Web completion payload.
type webRequestBody struct {
	MaxTokensToSample int          `json:"max_tokens_to_sample"`
	Attachments       []attachment `json:"attachments"`
	Files             []string     `json:"files"`
	Model             *string      `json:"model"`
	RenderingMode     string       `json:"rendering_mode"`
	Prompt            string       `json:"prompt"`
	Timezone          string       `json:"timezone"`
}

type attachment struct {
	ExtractedContent string `json:"extracted_content"`
	FileName         string `json:"file_name"`
	FileType         string `json:"file_type"`
	FileSize         int    `json:"file_size"`
}

func newAttachment(paste string) attachment {
	return attachment{
		ExtractedContent: paste,
		FileName:         "paste.txt",
		FileType:         "text/plain",
		FileSize:         len(paste),
	}
}

// merged holds the outcome of merging client messages into one upstream
// prompt, plus any extracted inline images.
type merged struct {
	paste  string
	prompt string
	images []schema.ImageSource
}

// transformRequest assembles the upstream webRequestBody from a canonical
// CreateMessageParams, along with any inline images
// extracted from the message content that still need uploading.
func (s *session) transformRequest(p *schema.CreateMessageParams) (*webRequestBody, []schema.ImageSource, error) {
	system := mergeSystem(p.System)
	m, err := mergeMessages(p.Messages, system)
	if err != nil {
		return nil, nil, err
	}

	var model *string
	if s.isPro() {
		mdl := p.Model
		model = &mdl
	}

	renderingMode := "raw"
	if p.Stream {
		renderingMode = "messages"
	}

	return &webRequestBody{
		MaxTokensToSample: p.MaxTokens,
		Attachments:       []attachment{newAttachment(m.paste)},
		Model:             model,
		RenderingMode:     renderingMode,
		Prompt:            m.prompt,
		Timezone:          "UTC",
	}, m.images, nil
}

func mergeSystem(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var blocks []schema.ContentBlock
	if json.Unmarshal(raw, &blocks) == nil {
		var parts []string
		for _, b := range blocks {
			if b.Type == "text" {
				parts = append(parts, strings.TrimSpace(b.Text))
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

// mergeMessages folds the message list into a single Human:/Assistant:
// prefixed prompt, extracting inline base64 images.
func mergeMessages(msgs []schema.Message, system string) (*merged, error) {
	if len(msgs) == 0 {
		return nil, gwerror.NewBadRequest("messages array cannot be empty")
	}

	cfg := gatewayconfig.Current()
	h := cfg.CustomH
	if h == "" {
		h = "Human"
	}
	a := cfg.CustomA
	if a == "" {
		a = "Assistant"
	}
	lineBreak := "\n\n"
	if cfg.UseRealRoles {
		lineBreak = "\n\n\x08"
	}

	var images []schema.ImageSource
	type chunk struct {
		role schema.Role
		text string
	}
	var chunks []chunk
	for _, msg := range msgs {
		text, imgs := extractTextAndImages(msg.Content)
		images = append(images, imgs...)
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if len(chunks) > 0 && chunks[len(chunks)-1].role == msg.Role {
			chunks[len(chunks)-1].text += "\n" + text
			continue
		}
		chunks = append(chunks, chunk{role: msg.Role, text: text})
	}

	var w strings.Builder
	system = strings.TrimSpace(system)
	start := 0
	if system != "" {
		w.WriteString(system)
	} else if len(chunks) > 0 {
		w.WriteString(chunks[0].text)
		start = 1
	}

	for i := start; i < len(chunks); i++ {
		c := chunks[i]
		var prefix string
		switch c.role {
		case schema.RoleUser:
			prefix = h + ": "
		case schema.RoleAssistant:
			prefix = a + ": "
		default:
			continue
		}
		w.WriteString(lineBreak)
		w.WriteString(prefix)
		w.WriteString(c.text)
	}

	paste := w.String()
	paste, err := applyPadding(paste)
	if err != nil {
		return nil, err
	}

	return &merged{paste: paste, prompt: cfg.CustomPrompt, images: images}, nil
}

func extractTextAndImages(raw json.RawMessage) (string, []schema.ImageSource) {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s, nil
	}
	var blocks []schema.ContentBlock
	if json.Unmarshal(raw, &blocks) != nil {
		return "", nil
	}
	var texts []string
	var images []schema.ImageSource
	for _, b := range blocks {
		switch b.Type {
		case "text":
			texts = append(texts, strings.TrimSpace(b.Text))
		case "image":
			if b.Source != nil && b.Source.Type == "base64" {
				images = append(images, *b.Source)
			}
		}
	}
	return strings.Join(texts, "\n"), images
}

// applyPadding prepends randomized filler sampled from the configured
// padtxt corpus until the paste reaches padtxt_len characters, so very
// short raw prompts don't trip upstream heuristics. Padding is off unless
// both padtxt_len and a corpus are configured; a corpus smaller than the
// shortfall is a configuration error surfaced as ErrPadtxtTooShort.
func applyPadding(paste string) (string, error) {
	cfg := gatewayconfig.Current()
	if cfg.PadTxtLen <= 0 || len(paste) >= cfg.PadTxtLen {
		return paste, nil
	}

	shortfall := cfg.PadTxtLen - len(paste)
	corpus := cfg.PadTxt
	if len(corpus) < shortfall {
		return "", gwerror.ErrPadtxtTooShort
	}

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	start := r.Intn(len(corpus) - shortfall + 1)
	return corpus[start:start+shortfall] + paste, nil
}

func conversationName() string {
	return fmt.Sprintf("llm-gateway-%s", time.Now().UTC().Format("2006-01-02 15:04:05"))
}
