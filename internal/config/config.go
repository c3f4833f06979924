// Package config loads the commentable settings from command line flags,
// COMMENTABLE_* environment variables and .env files.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nisimpson/commentable"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. COMMENTABLE_TABLE.
const EnvPrefix = "commentable"

// Keys shared by flags, environment variables and viper lookups.
const (
	KeyTable          = "table"
	KeyRegion         = "region"
	KeyEndpoint       = "endpoint"
	KeyRepliesIndex   = "replies-index"
	KeyReactionsIndex = "reactions-index"
	KeyCallTimeout    = "call-timeout"
	KeyAddr           = "addr"
	KeyLogLevel       = "log-level"
	KeyEnvironment    = "environment"
	KeyTokenInfoURL   = "tokeninfo-url"
	KeyOrphanPolicy   = "orphan-policy"
	KeyCORSOrigins    = "cors-origins"
)

// DefaultTokenInfoURL validates Google id tokens.
const DefaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// Config holds the resolved settings.
type Config struct {
	Table          string
	Region         string
	Endpoint       string // optional DynamoDB endpoint override, e.g. DynamoDB Local
	RepliesIndex   string
	ReactionsIndex string
	CallTimeout    time.Duration
	Addr           string
	LogLevel       string
	Environment    string
	TokenInfoURL   string
	OrphanPolicy   commentable.OrphanPolicy
	CORSOrigins    []string
}

// LoadEnvFiles loads .env and .env.local from the working directory when
// present. Variables already set in the environment win.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// InitViper makes v read COMMENTABLE_* environment variables, with dashes in
// keys mapped to underscores.
func InitViper(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// RegisterFlags adds the persistent flags every command understands.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String(KeyTable, "commentable-rs", "DynamoDB table name")
	flags.String(KeyRegion, "us-east-1", "AWS region")
	flags.String(KeyEndpoint, "", "DynamoDB endpoint override (e.g. http://localhost:8000)")
	flags.String(KeyRepliesIndex, "replies_index", "Name of the replies secondary index")
	flags.String(KeyReactionsIndex, "reactions_index", "Name of the reactions secondary index")
	flags.Duration(KeyCallTimeout, 5*time.Second, "Deadline applied to each store call")
	flags.String(KeyAddr, ":8080", "HTTP listen address")
	flags.String(KeyLogLevel, "info", "Log level (debug, info, warn, error)")
	flags.String(KeyEnvironment, "development", "Deployment environment (development, production)")
	flags.String(KeyTokenInfoURL, DefaultTokenInfoURL, "Identity token verification endpoint")
	flags.String(KeyOrphanPolicy, "reject", "How listings treat replies to missing comments (reject, drop)")
	flags.StringSlice(KeyCORSOrigins, []string{"*"}, "Allowed CORS origins")
}

// Load binds the flags of cmd to v and resolves the configuration.
func Load(v *viper.Viper, cmd *cobra.Command) (*Config, error) {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	policy, err := commentable.ParseOrphanPolicy(v.GetString(KeyOrphanPolicy))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Table:          v.GetString(KeyTable),
		Region:         v.GetString(KeyRegion),
		Endpoint:       v.GetString(KeyEndpoint),
		RepliesIndex:   v.GetString(KeyRepliesIndex),
		ReactionsIndex: v.GetString(KeyReactionsIndex),
		CallTimeout:    v.GetDuration(KeyCallTimeout),
		Addr:           v.GetString(KeyAddr),
		LogLevel:       v.GetString(KeyLogLevel),
		Environment:    v.GetString(KeyEnvironment),
		TokenInfoURL:   v.GetString(KeyTokenInfoURL),
		OrphanPolicy:   policy,
		CORSOrigins:    splitList(v.GetStringSlice(KeyCORSOrigins)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first missing or out of range setting.
func (c *Config) Validate() error {
	switch {
	case c.Table == "":
		return fmt.Errorf("%s is required", KeyTable)
	case c.Region == "":
		return fmt.Errorf("%s is required", KeyRegion)
	case c.RepliesIndex == "" || c.ReactionsIndex == "":
		return fmt.Errorf("index names are required")
	case c.CallTimeout < 0:
		return fmt.Errorf("%s must not be negative", KeyCallTimeout)
	}
	return nil
}

// splitList flattens comma separated entries, which viper leaves unsplit when
// the value comes from the environment.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
