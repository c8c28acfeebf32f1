package lm

// window is one scoring window of a rolling log-likelihood: the context the
// model conditions on and the tokens whose log-probabilities are summed.
type window struct {
	context      []int
	continuation []int
}

// rollingWindows splits tokens into windows of at most maxSeqLen predicted
// tokens. Every token is predicted exactly once. The first window is
// conditioned on the prefix token; each later window is conditioned on up to
// maxSeqLen preceding tokens minus contextLen-1.
func rollingWindows(tokens []int, prefix, maxSeqLen, contextLen int) []window {
	if len(tokens) == 0 {
		return nil
	}

	predLen := maxSeqLen - contextLen + 1
	firstLen := min(maxSeqLen, len(tokens))

	first := window{
		context:      append([]int{prefix}, tokens[:firstLen-1]...),
		continuation: tokens[:firstLen],
	}
	windows := []window{first}

	for predicted := firstLen; predicted < len(tokens); {
		n := min(len(tokens)-predicted, predLen)
		end := predicted + n
		windows = append(windows, window{
			context:      tokens[end-maxSeqLen-1 : end-1],
			continuation: tokens[end-n : end],
		})
		predicted += n
	}
	return windows
}

// disjoint trims the context so that context and continuation do not
// overlap: the concatenation is exactly the tokens the model sees.
func (w window) disjoint() window {
	return window{
		context:      w.context[:len(w.context)-(len(w.continuation)-1)],
		continuation: w.continuation,
	}
}
