package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ParamGetter is the parameter-store surface consumed by ParamKeySource.
// *paramstore.Client satisfies it.
type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// tokenPayload is the expected JSON shape stored for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

// ParamKeySource resolves the API key from a parameter store on first use
// and caches the result for the lifetime of the process.
type ParamKeySource struct {
	getter ParamGetter
	prefix string

	once sync.Once
	key  string
	err  error
}

func NewParamKeySource(getter ParamGetter, prefix string) (*ParamKeySource, error) {
	if getter == nil {
		return nil, errors.New("llm: param getter must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return nil, errors.New("llm: parameter prefix must not be empty")
	}
	return &ParamKeySource{getter: getter, prefix: prefix}, nil
}

func (s *ParamKeySource) APIKey(ctx context.Context) (string, error) {
	s.once.Do(func() {
		s.key, s.err = s.fetch(ctx)
	})
	return s.key, s.err
}

func (s *ParamKeySource) fetch(ctx context.Context) (string, error) {
	raw, err := s.getter.GetParameter(ctx, s.prefix+"/llm-api-key")
	if err != nil {
		return "", fmt.Errorf("llm: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("llm: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", errors.New("llm: API token is empty")
	}
	return tp.Token, nil
}
