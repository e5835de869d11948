package caption

import (
	"strings"
	"unicode/utf8"
)

// specialTokens are tokenizer control markers that can leak into decoded
// text (BERT-style plus BLIP's [DEC]/[ENC], sentencepiece and GPT-style for LLaVA variants).
var specialTokens = []string{
	"[CLS]", "[SEP]", "[PAD]", "[UNK]", "[MASK]", "[DEC]", "[ENC]",
	"<s>", "</s>", "<pad>", "<unk>", "<mask>",
	"<|endoftext|>", "<|im_start|>", "<|im_end|>", "<|eot_id|>",
	"<image>",
}

var specialTokenStripper = func() *strings.Replacer {
	pairs := make([]string, 0, len(specialTokens)*2)
	for _, tok := range specialTokens {
		pairs = append(pairs, tok, "")
	}
	return strings.NewReplacer(pairs...)
}()

// Clean removes special tokens from raw decoded text and trims surrounding
// whitespace.
func Clean(raw string) string {
	return strings.TrimSpace(specialTokenStripper.Replace(raw))
}

// ApplyFallback returns FallbackCaption when text has fewer than
// MinCaptionLength characters, and text unchanged otherwise. The boolean
// reports whether the fallback was used.
func ApplyFallback(text string) (string, bool) {
	if utf8.RuneCountInString(text) < MinCaptionLength {
		return FallbackCaption, true
	}
	return text, false
}
