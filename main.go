package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/nschaetti/tanaturf/internal/config"
	"github.com/nschaetti/tanaturf/internal/crawl"
	"github.com/nschaetti/tanaturf/internal/graph"
	"github.com/nschaetti/tanaturf/internal/logger"
	"github.com/nschaetti/tanaturf/internal/twitter"
)

const helpTemplate = `{{.Name}} - {{.Usage}}

Usage: {{.HelpName}} [options]

Options:
   {{range .VisibleFlags}}{{.}}
   {{end}}`

var version = "dev"

func runApp(c *cli.Context) error {
	cfg, err := config.Parse(c)
	if err != nil {
		return err
	}

	logg, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logg.Sync()

	ctx := context.Background()

	store, err := openStore(ctx, cfg, logg)
	if err != nil {
		return err
	}
	if closer, ok := store.(interface{ Close(context.Context) error }); ok {
		defer closer.Close(ctx)
	}

	switch cfg.Mode {
	case config.ModeFollow:
		err = runFollow(ctx, cfg, store, logg)
	case config.ModePrune:
		err = runPrune(ctx, cfg, store, logg)
	case config.ModeWeights:
		err = runWeights(ctx, store, logg)
	case config.ModeExport:
		err = runExport(ctx, cfg, store)
	default:
		err = runInteractions(ctx, cfg, store, logg)
	}
	if err != nil {
		return err
	}

	return printSummary(ctx, store)
}

func openStore(ctx context.Context, cfg *config.AppConfig, logg *logger.Logger) (graph.Store, error) {
	if cfg.Neo4jURI != "" {
		store, err := graph.NewNeo4jStore(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase, cfg.Denylist, logg)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	color.Yellow("⚠️  no --neo4j-uri given, using an in-memory store (nothing is persisted)")
	return graph.NewMemoryStore(cfg.Denylist, logg), nil
}

func buildPlatform(cfg *config.AppConfig, logg *logger.Logger) (crawl.Platform, error) {
	token := twitter.ResolveToken(cfg.BearerToken)
	if token == "" {
		return nil, fmt.Errorf("no API token: pass --token, set TANATURF_TOKEN or add it to the config file")
	}
	return crawl.NewPlatform(twitter.NewClient(token, cfg.APIBaseURL, logg)), nil
}

func seedPopulation(ctx context.Context, cfg *config.AppConfig, platform crawl.Platform, store graph.Store, logg *logger.Logger) error {
	if cfg.SeedFile != "" {
		handles, err := config.ReadSeedFile(cfg.SeedFile)
		if err != nil {
			return err
		}
		added, err := crawl.SeedAccounts(ctx, platform, store, handles, cfg.ClassLabel, logg)
		if err != nil {
			return err
		}
		color.Green("✓ seeded %d new accounts from %s", added, cfg.SeedFile)
	}

	count, err := store.AccountCount(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("the graph has no accounts: pass --seeds to bootstrap the population")
	}
	return nil
}

func crawlBar(total int, what string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(what),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func runInteractions(ctx context.Context, cfg *config.AppConfig, store graph.Store, logg *logger.Logger) error {
	platform, err := buildPlatform(cfg, logg)
	if err != nil {
		return err
	}
	if err := seedPopulation(ctx, cfg, platform, store, logg); err != nil {
		return err
	}

	filters := crawl.Filters{
		MinFollowers: cfg.MinFollowers,
		MinPosts:     cfg.MinPosts,
		MaxAccounts:  cfg.MaxAccounts,
	}
	opts := crawl.InteractionOptions{
		Amplified: cfg.TrackAmplified,
		Cited:     cfg.TrackCited,
		Mentions:  cfg.TrackMentions,
		Hashtags:  cfg.TrackHashtags,
		MaxPages:  cfg.MaxDepth,
	}

	count, err := store.AccountCount(ctx)
	if err != nil {
		return err
	}
	color.Blue("\nCrawling timelines of %d accounts", count)

	bar := crawlBar(count, "timelines")
	ingester := crawl.NewInteractionIngester(platform, store, filters, opts, logg)
	ingester.Progress = func(handle string) {
		bar.Describe("on " + handle)
		_ = bar.Add(1)
	}

	stats, err := ingester.Run(ctx)
	_ = bar.Finish()
	if err != nil {
		return err
	}

	color.Green("✓ crawled %d accounts (%d posts, %d failed)", stats.Accounts, stats.Posts, stats.Failed)
	return nil
}

func runFollow(ctx context.Context, cfg *config.AppConfig, store graph.Store, logg *logger.Logger) error {
	platform, err := buildPlatform(cfg, logg)
	if err != nil {
		return err
	}
	if err := seedPopulation(ctx, cfg, platform, store, logg); err != nil {
		return err
	}

	filters := crawl.Filters{
		MinFollowers: cfg.MinFollowers,
		MinPosts:     cfg.MinPosts,
		MaxAccounts:  cfg.MaxAccounts,
	}

	count, err := store.AccountCount(ctx)
	if err != nil {
		return err
	}
	color.Blue("\nCrawling followers of %d accounts", count)

	bar := crawlBar(count, "followers")
	ingester := crawl.NewFollowIngester(platform, store, filters, logg)
	ingester.Progress = func(handle string) {
		bar.Describe("on " + handle)
		_ = bar.Add(1)
	}

	stats, err := ingester.Run(ctx)
	_ = bar.Finish()
	if err != nil {
		return err
	}

	color.Green("✓ crawled %d accounts (%d follow edges, %d failed)", stats.Accounts, stats.Edges, stats.Failed)
	return nil
}

func runPrune(ctx context.Context, cfg *config.AppConfig, store graph.Store, logg *logger.Logger) error {
	engine := graph.NewPruningEngine(store, logg)
	result, err := engine.Run(ctx, graph.PruneThresholds{
		MinAccountLinks: cfg.MinAccountLinks,
		MinWebsiteLinks: cfg.MinWebsiteLinks,
		MinHashtagLinks: cfg.MinHashtagLinks,
	})
	if err != nil {
		return err
	}
	color.Green("✓ pruned %d accounts, %d websites, %d hashtags", result.Accounts, result.Websites, result.Hashtags)
	return nil
}

func runWeights(ctx context.Context, store graph.Store, logg *logger.Logger) error {
	if err := graph.NewWeightEngine(store, logg).Run(ctx); err != nil {
		return err
	}
	color.Green("✓ recomputed edge weights")
	return nil
}

func runExport(ctx context.Context, cfg *config.AppConfig, store graph.Store) error {
	f, err := os.Create(cfg.ExportFile)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	if err := graph.WriteGEXF(ctx, f, store); err != nil {
		return err
	}
	color.Green("✓ wrote %s", cfg.ExportFile)
	return nil
}

func printSummary(ctx context.Context, store graph.Store) error {
	accounts, err := store.AccountCount(ctx)
	if err != nil {
		return err
	}
	websites, err := store.AllWebsites(ctx)
	if err != nil {
		return err
	}
	hashtags, err := store.AllHashtags(ctx)
	if err != nil {
		return err
	}
	color.HiCyan("\nGraph now holds %d accounts, %d websites, %d hashtags", accounts, len(websites), len(hashtags))
	return nil
}

func main() {
	cli.AppHelpTemplate = helpTemplate
	log.SetFlags(0)

	app := &cli.App{
		Name:    "tanaturf",
		Usage:   "maps who amplifies, cites, mentions and follows whom into a weighted graph",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "token",
				Aliases: []string{"t"},
				Usage:   "platform API bearer token",
				EnvVars: []string{"TANATURF_TOKEN"},
			},
			&cli.StringFlag{
				Name:  "api-url",
				Usage: "override the platform API base URL",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file with credentials and denylist entries",
			},
			&cli.StringFlag{
				Name:    "neo4j-uri",
				Usage:   "Neo4j bolt URI (omit to run against an in-memory store)",
				EnvVars: []string{"NEO4J_URI"},
			},
			&cli.StringFlag{
				Name:    "neo4j-user",
				Value:   "neo4j",
				Usage:   "Neo4j user",
				EnvVars: []string{"NEO4J_USER"},
			},
			&cli.StringFlag{
				Name:    "neo4j-password",
				Usage:   "Neo4j password",
				EnvVars: []string{"NEO4J_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "neo4j-database",
				Usage:   "Neo4j database name (empty for the default)",
				EnvVars: []string{"NEO4J_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "seeds",
				Aliases: []string{"s"},
				Usage:   "file with one account handle per line to bootstrap the graph",
			},
			&cli.StringFlag{
				Name:  "class",
				Usage: "class label stamped on seeded accounts",
			},
			&cli.IntFlag{
				Name:  "min-followers",
				Value: 100,
				Usage: "minimum follower count for discovered accounts",
			},
			&cli.IntFlag{
				Name:  "min-posts",
				Value: 1000,
				Usage: "minimum post count for discovered accounts",
			},
			&cli.IntFlag{
				Name:    "depth",
				Aliases: []string{"d"},
				Value:   1,
				Usage:   "timeline pages to read per account",
			},
			&cli.IntFlag{
				Name:  "max-accounts",
				Value: 10000,
				Usage: "hard cap on the account population (0 for unlimited)",
			},
			&cli.BoolFlag{
				Name:  "amplified",
				Value: true,
				Usage: "record repost edges",
			},
			&cli.BoolFlag{
				Name:  "cited",
				Value: true,
				Usage: "record link-to-website edges",
			},
			&cli.BoolFlag{
				Name:  "mentions",
				Value: true,
				Usage: "record mention edges",
			},
			&cli.BoolFlag{
				Name:  "hashtags",
				Value: true,
				Usage: "record hashtag and co-occurrence edges",
			},
			&cli.BoolFlag{
				Name:  "follow",
				Usage: "crawl follower lists instead of timelines",
			},
			&cli.BoolFlag{
				Name:  "prune",
				Usage: "delete weakly connected leaf nodes and exit",
			},
			&cli.BoolFlag{
				Name:  "weights",
				Usage: "recompute edge weights and exit",
			},
			&cli.IntFlag{
				Name:  "min-account-links",
				Value: 2,
				Usage: "pruning: minimum inbound links for an account leaf",
			},
			&cli.IntFlag{
				Name:  "min-website-links",
				Value: 2,
				Usage: "pruning: minimum inbound links for a website leaf",
			},
			&cli.IntFlag{
				Name:  "min-hashtag-links",
				Value: 2,
				Usage: "pruning: minimum inbound links for a hashtag leaf",
			},
			&cli.StringFlag{
				Name:  "export",
				Usage: "write the graph as GEXF to this file and exit",
			},
			&cli.StringFlag{
				Name:  "log-mode",
				Value: "dev",
				Usage: "logger mode: dev or prod",
			},
		},
		Action: runApp,
		Authors: []*cli.Author{
			{Name: "nschaetti"},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
