package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/everstacklabs/modelmigrate/internal/cache"
	"github.com/everstacklabs/modelmigrate/internal/catalog"
	"github.com/everstacklabs/modelmigrate/internal/config"
	"github.com/everstacklabs/modelmigrate/internal/copier"
	"github.com/everstacklabs/modelmigrate/internal/docintel"
	"github.com/everstacklabs/modelmigrate/internal/httpclient"
	"github.com/everstacklabs/modelmigrate/internal/report"
	"github.com/everstacklabs/modelmigrate/internal/vault"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "modelmigrate",
		Short: "Copy custom Document Intelligence models between resources",
		Long:  "Lists custom document models on configured resources and copies a selected subset from the source resource into one or more targets.",
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	rootCmd.AddCommand(
		modelsCmd(),
		checkCmd(),
		copyCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired clients every command needs.
type app struct {
	cfg     *config.Config
	http    *httpclient.Client
	secrets *vault.Client
	fetcher *catalog.Fetcher
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	setupLogging(cfg.LogLevel)

	opts := []httpclient.Option{httpclient.WithRateLimit(10)}
	if cfg.NoCache {
		opts = append(opts, httpclient.WithNoCache())
	} else {
		ttl, err := time.ParseDuration(cfg.CacheTTL)
		if err != nil {
			ttl = 10 * time.Minute
		}
		fc, err := cache.New(cfg.CacheDir, ttl)
		if err != nil {
			slog.Warn("failed to create cache, continuing without", "error", err)
		} else {
			opts = append(opts, httpclient.WithCache(fc))
		}
	}
	hc := httpclient.New(opts...)

	secrets, err := vault.New(cfg.Azure, hc)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		http:    hc,
		secrets: secrets,
		fetcher: &catalog.Fetcher{
			Secrets: secrets,
			NewAdmin: func(endpoint, key string) catalog.Lister {
				return docintel.New(endpoint, key, hc)
			},
		},
	}, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func modelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List custom models on a resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			name, _ := cmd.Flags().GetString("resource")
			synced, _ := cmd.Flags().GetBool("synced")

			resource := a.cfg.Source
			if name != "source" {
				resource, err = a.cfg.Target(name)
				if err != nil {
					return err
				}
			}

			cat, err := a.fetcher.Fetch(cmd.Context(), resource)
			if err != nil {
				return err
			}

			if synced && name == "source" {
				targetCats := make(map[string]*catalog.Catalog)
				for _, t := range a.cfg.Targets {
					tc, err := a.fetcher.Fetch(cmd.Context(), t)
					if err != nil {
						slog.Warn("skipping sync annotation for target", "target", t.Name, "error", err)
						continue
					}
					targetCats[t.Name] = tc
				}
				cat.MarkSynced(targetCats)
			}

			for _, m := range cat.Models {
				created := "unknown"
				if !m.CreatedAt.IsZero() {
					created = m.CreatedAt.Format("2006-01-02 15:04")
				}
				fmt.Printf("%-40s %-17s %-12s %s\n", m.ID, created, m.APIVersion, strings.Join(m.SyncedTo, ","))
			}

			fmt.Printf("\nTotal: %d models (quota %d/%d)\n", len(cat.Models), cat.Count, cat.Limit)
			return nil
		},
	}

	cmd.Flags().String("resource", "source", "Resource to list: source or a target name")
	cmd.Flags().Bool("synced", false, "Annotate source models with targets that already hold them")

	return cmd
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe connectivity and quota for every configured resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			resources := append([]config.Resource{a.cfg.Source}, a.cfg.Targets...)
			failed := 0
			for _, r := range resources {
				if err := r.Validate(); err != nil {
					fmt.Printf("FAIL %-20s %v\n", r.Name, err)
					failed++
					continue
				}
				key, err := a.secrets.GetSecret(cmd.Context(), r.VaultURL, r.SecretName)
				if err != nil {
					fmt.Printf("FAIL %-20s %v\n", r.Name, err)
					failed++
					continue
				}
				details, err := docintel.New(r.Endpoint, key, a.http).ResourceDetails(cmd.Context())
				if err != nil {
					fmt.Printf("FAIL %-20s %v\n", r.Name, err)
					failed++
					continue
				}
				fmt.Printf("ok   %-20s custom models %d/%d\n", r.Name, details.Count, details.Limit)
			}

			if failed > 0 {
				os.Exit(1)
			}
			return nil
		},
	}
}

func copyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy selected models from the source to the selected targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			modelIDs, _ := cmd.Flags().GetStringSlice("models")
			all, _ := cmd.Flags().GetBool("all")
			suffix, _ := cmd.Flags().GetString("suffix")
			targetNames, _ := cmd.Flags().GetStringSlice("targets")
			skipSynced, _ := cmd.Flags().GetBool("skip-synced")

			if !all && len(modelIDs) == 0 {
				return fmt.Errorf("nothing selected: pass --models or --all")
			}

			targets := a.cfg.Targets
			if len(targetNames) > 0 {
				targets = nil
				for _, name := range targetNames {
					t, err := a.cfg.Target(name)
					if err != nil {
						return err
					}
					targets = append(targets, t)
				}
			}
			if len(targets) == 0 {
				return fmt.Errorf("no targets configured")
			}

			srcCat, err := a.fetcher.Fetch(cmd.Context(), a.cfg.Source)
			if err != nil {
				return err
			}

			if skipSynced {
				targetCats := make(map[string]*catalog.Catalog)
				for _, t := range targets {
					tc, err := a.fetcher.Fetch(cmd.Context(), t)
					if err != nil {
						slog.Warn("cannot check synced state, assuming not synced", "target", t.Name, "error", err)
						continue
					}
					targetCats[t.Name] = tc
				}
				srcCat.MarkSynced(targetCats)
			}

			var models []catalog.Model
			if all {
				models = srcCat.Models
			} else {
				for _, id := range modelIDs {
					m, ok := srcCat.Model(id)
					if !ok {
						return fmt.Errorf("model %s not found on source", id)
					}
					models = append(models, m)
				}
			}

			if skipSynced {
				models = dropFullySynced(models, targets)
			}
			if len(models) == 0 {
				fmt.Println("Nothing to copy.")
				return nil
			}

			interval, err := time.ParseDuration(a.cfg.PollInterval)
			if err != nil {
				return fmt.Errorf("invalid poll_interval: %w", err)
			}

			orch := &copier.Orchestrator{
				Secrets: a.secrets,
				NewAdmin: func(endpoint, key string) copier.AdminAPI {
					return docintel.New(endpoint, key, a.http)
				},
				Poller: &copier.Poller{
					Interval:    interval,
					MaxAttempts: a.cfg.PollMaxAttempts,
				},
			}

			started := time.Now()
			out, err := orch.Run(cmd.Context(), copier.Selection{
				Models:  models,
				Suffix:  suffix,
				Targets: targets,
			}, a.cfg.Source)
			if err != nil {
				return err
			}

			rep := report.FromOutcome(out, started, time.Now())
			fmt.Println(report.Render(rep))

			path, err := report.Write(a.cfg.ReportDir, rep)
			if err != nil {
				slog.Error("failed to write report artifact", "error", err)
			} else {
				slog.Info("report written", "path", path)
			}

			// Cached target listings are stale for any target that
			// received a model.
			for _, t := range targets {
				for _, rt := range rep.Targets {
					if rt.Name == t.Name && len(rt.Successes) > 0 {
						a.http.Invalidate(docintel.ListingURL(t.Endpoint))
					}
				}
			}

			if rep.Failed > 0 {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringSlice("models", nil, "Model ids to copy")
	cmd.Flags().Bool("all", false, "Copy every custom model on the source")
	cmd.Flags().String("suffix", "-copy", `Suffix appended to destination model ids (use "" to keep ids unchanged)`)
	cmd.Flags().StringSlice("targets", nil, "Target names to copy into (default: all configured)")
	cmd.Flags().Bool("skip-synced", false, "Skip models that already exist on every selected target")

	return cmd
}

// dropFullySynced removes models already present on every selected
// target. Models synced to only some targets still run; the service
// rejects the duplicate pairings and the report records them.
func dropFullySynced(models []catalog.Model, targets []config.Resource) []catalog.Model {
	var kept []catalog.Model
	for _, m := range models {
		synced := make(map[string]bool, len(m.SyncedTo))
		for _, name := range m.SyncedTo {
			synced[name] = true
		}
		everywhere := true
		for _, t := range targets {
			if !synced[t.Name] {
				everywhere = false
				break
			}
		}
		if everywhere {
			slog.Info("skipping model already on every selected target", "model", m.ID)
			continue
		}
		kept = append(kept, m)
	}
	return kept
}
