package llm

import "ragqa/internal/domain"

// Factory builds a generator for a request credential. An empty key means
// "use the configured default".
type Factory interface {
	New(apiKey string) (domain.Generator, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(apiKey string) (domain.Generator, error)

func (f FactoryFunc) New(apiKey string) (domain.Generator, error) { return f(apiKey) }

// Static always returns the same generator, ignoring the credential.
func Static(g domain.Generator) Factory {
	return FactoryFunc(func(string) (domain.Generator, error) { return g, nil })
}
