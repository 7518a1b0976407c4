package sanitizer

// Strategy is a single normalization step.
type Strategy func(string) string

// Pipeline applies strategies in order. Order matters: trimming before
// case folding is not the same as the reverse.
type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}
