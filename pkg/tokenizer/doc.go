// Package tokenizer implements the byte-level BPE tokenizers used by the
// GPT-2 and GPT-NeoX model families, loaded from a HuggingFace
// tokenizer.json file.
//
// Encoding never adds BOS or EOS markers: the output matches what a hosted
// completions API expects for a raw prompt. Special tokens of the form
// <|name|> that appear in the input text are mapped to their ids.
package tokenizer
