package runtime

import "github.com/ranganaths/swarmctl/errors"

// Model is the closed set of external CLI models a sub-agent may run under.
type Model string

const (
	ModelOpus   Model = "opus"
	ModelSonnet Model = "sonnet"
	ModelHaiku  Model = "haiku"
)

// BinaryResolver maps a Model to the CLI binary name configured to serve it.
// All three models typically resolve to the same underlying binary
// (invoked with a different --model flag), but the mapping is kept
// per-model so a deployment can point each tier at a distinct binary.
type BinaryResolver struct {
	binaries map[Model]string
}

// NewBinaryResolver builds a BinaryResolver from the three configured
// binary names. An empty string falls back to "claude".
func NewBinaryResolver(opus, sonnet, haiku string) *BinaryResolver {
	def := func(s string) string {
		if s == "" {
			return "claude"
		}
		return s
	}
	return &BinaryResolver{binaries: map[Model]string{
		ModelOpus:   def(opus),
		ModelSonnet: def(sonnet),
		ModelHaiku:  def(haiku),
	}}
}

// Resolve returns the binary name for model, or an error wrapping
// errors.ErrInvalidInput if model is outside the closed set.
func (b *BinaryResolver) Resolve(model Model) (string, error) {
	binary, ok := b.binaries[model]
	if !ok {
		return "", errors.Wrapf(errors.ErrInvalidInput, "unknown model %q", model)
	}
	return binary, nil
}
