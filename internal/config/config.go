package config

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// RunMode selects which of the mutually exclusive passes the process runs.
type RunMode int

const (
	ModeInteractions RunMode = iota
	ModeFollow
	ModePrune
	ModeWeights
	ModeExport
)

// AppConfig carries everything parsed from flags, environment and the
// optional YAML file.
type AppConfig struct {
	Mode RunMode

	// Platform credentials.
	BearerToken string
	APIBaseURL  string

	// Graph store.
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// Quality filters and limits.
	MinFollowers int
	MinPosts     int
	MaxDepth     int
	MaxAccounts  int

	// Edge kinds to ingest.
	TrackAmplified bool
	TrackCited     bool
	TrackMentions  bool
	TrackHashtags  bool

	// Pruning minimum inbound-link counts.
	MinAccountLinks int
	MinWebsiteLinks int
	MinHashtagLinks int

	SeedFile   string
	ClassLabel string
	ExportFile string
	LogMode    string

	Denylist *Denylist
}

// fileConfig is the YAML shape of --config.
type fileConfig struct {
	Platform struct {
		BearerToken string `yaml:"bearer_token"`
		BaseURL     string `yaml:"base_url"`
	} `yaml:"platform"`
	Neo4j struct {
		URI      string `yaml:"uri"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
	} `yaml:"neo4j"`
	Denylist []string `yaml:"denylist"`
}

// Parse builds the AppConfig from the CLI context, layering in the YAML
// file when one is given. Flags win over the file.
func Parse(c *cli.Context) (*AppConfig, error) {
	cfg := &AppConfig{
		Mode:            ModeInteractions,
		BearerToken:     c.String("token"),
		APIBaseURL:      c.String("api-url"),
		Neo4jURI:        c.String("neo4j-uri"),
		Neo4jUser:       c.String("neo4j-user"),
		Neo4jPassword:   c.String("neo4j-password"),
		Neo4jDatabase:   c.String("neo4j-database"),
		MinFollowers:    c.Int("min-followers"),
		MinPosts:        c.Int("min-posts"),
		MaxDepth:        c.Int("depth"),
		MaxAccounts:     c.Int("max-accounts"),
		TrackAmplified:  c.Bool("amplified"),
		TrackCited:      c.Bool("cited"),
		TrackMentions:   c.Bool("mentions"),
		TrackHashtags:   c.Bool("hashtags"),
		MinAccountLinks: c.Int("min-account-links"),
		MinWebsiteLinks: c.Int("min-website-links"),
		MinHashtagLinks: c.Int("min-hashtag-links"),
		SeedFile:        c.String("seeds"),
		ClassLabel:      c.String("class"),
		ExportFile:      c.String("export"),
		LogMode:         c.String("log-mode"),
		Denylist:        DefaultDenylist(),
	}

	modes := 0
	if c.Bool("follow") {
		cfg.Mode = ModeFollow
		modes++
	}
	if c.Bool("prune") {
		cfg.Mode = ModePrune
		modes++
	}
	if c.Bool("weights") {
		cfg.Mode = ModeWeights
		modes++
	}
	if cfg.ExportFile != "" {
		cfg.Mode = ModeExport
		modes++
	}
	if modes > 1 {
		return nil, fmt.Errorf("--follow, --prune, --weights and --export are mutually exclusive")
	}

	if path := c.String("config"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (cfg *AppConfig) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.BearerToken == "" {
		cfg.BearerToken = fc.Platform.BearerToken
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = fc.Platform.BaseURL
	}
	if cfg.Neo4jURI == "" {
		cfg.Neo4jURI = fc.Neo4j.URI
	}
	if cfg.Neo4jUser == "" {
		cfg.Neo4jUser = fc.Neo4j.User
	}
	if cfg.Neo4jPassword == "" {
		cfg.Neo4jPassword = fc.Neo4j.Password
	}
	if cfg.Neo4jDatabase == "" {
		cfg.Neo4jDatabase = fc.Neo4j.Database
	}
	cfg.Denylist.Add(fc.Denylist...)

	return nil
}
