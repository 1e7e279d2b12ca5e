package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

// NetSuiteConfig holds the signed-request credentials for the external
// enterprise system. The base URL is derived from the account id unless
// overridden (tests point it at a local server).
type NetSuiteConfig struct {
	AccountId      string
	ConsumerKey    string
	ConsumerSecret string
	TokenId        string
	TokenSecret    string
	BaseURL        string
	Timeout        time.Duration
}

func GetNetSuiteConfig() (NetSuiteConfig, error) {
	cfg := NetSuiteConfig{
		AccountId:      strings.TrimSpace(os.Getenv("NS_ACCOUNT_ID")),
		ConsumerKey:    strings.TrimSpace(os.Getenv("NS_CONSUMER_KEY")),
		ConsumerSecret: strings.TrimSpace(os.Getenv("NS_CONSUMER_SECRET")),
		TokenId:        strings.TrimSpace(os.Getenv("NS_TOKEN_ID")),
		TokenSecret:    strings.TrimSpace(os.Getenv("NS_TOKEN_SECRET")),
		BaseURL:        strings.TrimRight(strings.TrimSpace(os.Getenv("NS_API_BASE_URL")), "/"),
		Timeout:        time.Duration(intFromEnv("NS_TIMEOUT_SECONDS", 30)) * time.Second,
	}
	if cfg.BaseURL == "" {
		if cfg.AccountId == "" {
			return cfg, errors.New("NS_ACCOUNT_ID is required when NS_API_BASE_URL is not set")
		}
		cfg.BaseURL = "https://" + cfg.AccountId + ".restlets.api.netsuite.com"
	}
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" || cfg.TokenId == "" || cfg.TokenSecret == "" {
		return cfg, errors.New("netsuite credentials are incomplete")
	}
	return cfg, nil
}
