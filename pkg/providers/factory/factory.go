// Package factory is the single place that knows how to turn a loaded
// Config into a concrete providers.LLMClient. Swapping the underlying SDK
// means touching this function and the adapter package it delegates to,
// nothing else in the tree.
package factory

import (
	"fmt"

	"github.com/coldforge/shrimp/pkg/config"
	"github.com/coldforge/shrimp/pkg/providers"
	anthropicprovider "github.com/coldforge/shrimp/pkg/providers/anthropic"
)

func CreateProvider(cfg *config.Config) (providers.LLMClient, error) {
	cfg.RLock()
	defer cfg.RUnlock()

	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("llm api key is not configured")
	}
	if cfg.LLM.BaseURL != "" {
		return anthropicprovider.NewProviderWithBaseURL(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL), nil
	}
	return anthropicprovider.NewProvider(cfg.LLM.APIKey, cfg.LLM.Model), nil
}
