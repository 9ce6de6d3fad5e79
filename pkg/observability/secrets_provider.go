package observability

import (
	"slices"

	"github.com/sasha-s/go-deadlock"
)

type SecretsProvider interface {
	SecretWords() []string
}

// SecretsStaticProvider holds the secret values loaded from the settings
// and the command line.
type SecretsStaticProvider struct {
	locker deadlock.RWMutex
	words  []string
}

var _ SecretsProvider = (*SecretsStaticProvider)(nil)

func NewStaticSecretsProvider(words ...string) *SecretsStaticProvider {
	sp := &SecretsStaticProvider{}
	sp.AddSecretWords(words...)
	return sp
}

// AddSecretWords registers more values; empty ones are ignored.
func (sp *SecretsStaticProvider) AddSecretWords(words ...string) {
	sp.locker.Lock()
	defer sp.locker.Unlock()
	for _, word := range words {
		if word == "" || slices.Contains(sp.words, word) {
			continue
		}
		sp.words = append(sp.words, word)
	}
	// longer words first, so a secret containing another one is hidden whole
	slices.SortStableFunc(sp.words, func(a, b string) int {
		return len(b) - len(a)
	})
}

func (sp *SecretsStaticProvider) SecretWords() []string {
	sp.locker.RLock()
	defer sp.locker.RUnlock()
	return sp.words
}
