package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"modelscout/internal/artifacts"
	"modelscout/internal/awssign"
	"modelscout/internal/config"
	"modelscout/internal/db"
	"modelscout/internal/domain"
	"modelscout/internal/engine"
	"modelscout/internal/inventory"
	"modelscout/internal/migrate"
	"modelscout/internal/repo"
	"modelscout/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "scout",
	Short: "ModelScout CLI",
	Long: `ModelScout maps what foundation models exist, what your account can
actually invoke, and what to run to close the gap.

- Catalog: every model the platform documents, parsed from the docs page
  with a built-in static fallback, so the list is never empty.
- Availability: the live union of model and profile identifiers across
  your configured regions.
- Access: per-model entitlement, resolved from the account when possible
  and from gated-family heuristics otherwise.
- Commands: ready-to-run access requests for whatever is gapped, batched
  per provider.
- Runs: every discovery is recorded in the .modelscout workspace diary,
  view with 'scout log tail'.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("MODELSCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("region", "", "region (overrides config default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("region", rootCmd.PersistentFlags().Lookup("region"))
}

func registerCommands() {
	rootCmd.AddCommand(discoverCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(accessCmd())
	rootCmd.AddCommand(commandsCmd())
	rootCmd.AddCommand(artifactsCmd())
	rootCmd.AddCommand(cacheCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
}

func filterFlags(cmd *cobra.Command, f *inventory.Filters) {
	cmd.Flags().StringVar(&f.Provider, "by-provider", "", "filter by provider name")
	cmd.Flags().StringVar(&f.OutputModality, "by-output-modality", "", "filter by output modality")
	cmd.Flags().StringVar(&f.InferenceType, "by-inference-type", "", "filter by inference type")
	cmd.Flags().StringVar(&f.CustomizationType, "by-customization-type", "", "filter by customization type")
}

func discoverCmd() *cobra.Command {
	var f inventory.Filters
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run the full discovery pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				result := e.Discover(ctx, engine.DiscoverOptions{
					Region:  viper.GetString("region"),
					Filters: f,
				})
				if viper.GetBool("json") {
					return printJSON(result)
				}
				fmt.Printf("catalog: %d models   available: %d identifiers\n\n",
					len(result.Catalog), len(result.AvailableIDs))
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Provider", "Access", "Can Request", "Gated"})
				gated := map[string]bool{}
				for _, d := range result.Catalog {
					gated[d.ID] = d.RequiresApproval
				}
				for _, s := range result.AccessStatuses {
					tw.AppendRow(table.Row{s.ID, providerOf(result.Catalog, s.ID), s.State, s.CanRequest, gated[s.ID]})
				}
				tw.Render()
				if len(result.RequestCommands) > 0 {
					fmt.Println("\nTo request access:")
					for _, g := range result.RequestCommands {
						fmt.Printf("  %s\n", g.Command)
					}
				}
				return nil
			})
		},
	}
	filterFlags(cmd, &f)
	return cmd
}

func providerOf(catalog []domain.ResourceDescriptor, id string) string {
	for _, d := range catalog {
		if d.ID == id {
			return d.ProviderName
		}
	}
	return ""
}

func modelsCmd() *cobra.Command {
	models := &cobra.Command{Use: "models", Short: "Model catalog and live availability"}
	models.AddCommand(modelsListCmd())
	models.AddCommand(modelsAvailableCmd())
	return models
}

func modelsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Acquire and print the model catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				models, source := e.Models(ctx)
				if viper.GetBool("json") {
					return printJSON(map[string]any{"source": source, "models": models})
				}
				fmt.Printf("source: %s\n\n", source)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Provider", "Streaming", "Gated", "Released"})
				for _, m := range models {
					tw.AppendRow(table.Row{m.ID, m.ProviderName, m.SupportsStreaming, m.RequiresApproval, m.ReleaseDate})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func modelsAvailableCmd() *cobra.Command {
	var f inventory.Filters
	cmd := &cobra.Command{
		Use:   "available",
		Short: "Union of live identifiers across configured regions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ids := e.Available(ctx, f)
				if viper.GetBool("json") {
					return printJSON(ids)
				}
				for _, id := range ids {
					fmt.Println(id)
				}
				return nil
			})
		},
	}
	filterFlags(cmd, &f)
	return cmd
}

func accessCmd() *cobra.Command {
	var idsFlag string
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Entitlement status per catalog identifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var ids []string
				for _, id := range strings.Split(idsFlag, ",") {
					if id = strings.TrimSpace(id); id != "" {
						ids = append(ids, id)
					}
				}
				statuses := e.ResolveAccess(ctx, viper.GetString("region"), ids)
				if viper.GetBool("json") {
					return printJSON(statuses)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Access", "State", "Can Request"})
				for _, s := range statuses {
					tw.AppendRow(table.Row{s.ID, s.HasAccess, s.State, s.CanRequest})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&idsFlag, "ids", "", "comma-separated identifiers (default: whole catalog)")
	return cmd
}

func commandsCmd() *cobra.Command {
	var justification string
	cmd := &cobra.Command{
		Use:   "commands",
		Short: "Synthesize access-request commands for gapped models",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				groups := e.Commands(ctx, viper.GetString("region"), justification)
				if viper.GetBool("json") {
					return printJSON(groups)
				}
				if len(groups) == 0 {
					fmt.Println("nothing to request")
					return nil
				}
				for _, g := range groups {
					fmt.Printf("# %s (%d model(s))\n%s\n\n", g.Provider, len(g.ModelIDs), g.Command)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&justification, "justification", "", "justification text for the request")
	return cmd
}

func artifactsCmd() *cobra.Command {
	art := &cobra.Command{Use: "artifacts", Short: "Generate request scripts and checklists"}
	art.AddCommand(artifactsGenerateCmd())
	return art
}

func artifactsGenerateCmd() *cobra.Command {
	var outDir, justification string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write access-request scripts for the current gaps",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				region := viper.GetString("region")
				if region == "" && e.Config != nil {
					region = e.Config.Discovery.DefaultRegion
				}
				groups := e.Commands(ctx, region, justification)
				files := artifacts.Generate(groups, artifacts.Options{Region: region, Justification: justification})
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return err
				}
				for _, a := range files {
					mode := os.FileMode(0o644)
					if strings.HasSuffix(a.Name, ".sh") {
						mode = 0o755
					}
					if err := os.WriteFile(filepath.Join(outDir, a.Name), []byte(a.Content), mode); err != nil {
						return err
					}
					fmt.Println("wrote", filepath.Join(outDir, a.Name))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outDir, "out", ".", "output directory")
	cmd.Flags().StringVar(&justification, "justification", "", "justification text for the request")
	return cmd
}

func cacheCmd() *cobra.Command {
	cache := &cobra.Command{Use: "cache", Short: "Catalog snapshot cache"}
	cache.AddCommand(cacheShowCmd())
	cache.AddCommand(cacheClearCmd())
	return cache
}

func cacheShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the newest cached catalog snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				snap, err := repo.CatalogCache{DB: r.DB}.Latest(ctx)
				if errors.Is(err, repo.ErrNotFound) {
					fmt.Println("cache is empty")
					return nil
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(snap)
				}
				fmt.Printf("fetched: %s  source: %s  models: %d\n",
					snap.FetchedAt.Format(time.RFC3339), snap.Source, len(snap.Descriptors))
				return nil
			})
		},
	}
	return cmd
}

func cacheClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop all cached catalog snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := (repo.CatalogCache{DB: r.DB}).Invalidate(ctx); err != nil {
					return err
				}
				fmt.Println("cache cleared")
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{
		Use:   "log",
		Short: "Run diary",
		Long:  "The diary of everything that happened: runs, fallbacks, and per-region failures.",
	}
	lg.AddCommand(logTailCmd())
	lg.AddCommand(logRunsCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var runID string
	var limit int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Newest diary entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				evts, err := r.ListEvents(ctx, runID, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "Run", "Entity", "Payload"})
				for _, e := range evts {
					tw.AppendRow(table.Row{e.TS, e.Type, e.RunID, e.EntityID, e.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "filter by run id")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries")
	return cmd
}

func logRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Recorded discovery runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				runs, err := r.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(runs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Region", "Started", "Source", "Available", "Catalog", "Gaps"})
				for _, run := range runs {
					tw.AppendRow(table.Row{run.ID, run.Region, run.StartedAt, run.CatalogSource, run.AvailableCount, run.CatalogCount, run.GapCount})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs")
	return cmd
}

func keysCmd() *cobra.Command {
	keys := &cobra.Command{Use: "keys", Short: "API keys for the HTTP server"}
	keys.AddCommand(keysCreateCmd())
	keys.AddCommand(keysListCmd())
	keys.AddCommand(keysDeleteCmd())
	return keys
}

func keysCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (prints the secret once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				secret := uuid.NewString()
				key := domain.APIKey{
					ID:      uuid.NewString(),
					Name:    name,
					KeyHash: repo.HashAPIKey(secret),
				}
				if err := r.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				fmt.Printf("id: %s\nkey: %s\n", key.ID, secret)
				fmt.Println("store the key now; only its hash is kept")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func keysListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func keysDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.DeleteAPIKey(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var noAuth bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				authCfg := server.AuthConfig{
					JWTSecret: os.Getenv("MODELSCOUT_JWT_SECRET"),
					Disabled:  noAuth,
				}
				if !noAuth && authCfg.JWTSecret == "" {
					return fmt.Errorf("MODELSCOUT_JWT_SECRET is required for bearer auth (or pass --no-auth)")
				}
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(sctx)
				}()
				fmt.Printf("Serving ModelScout API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "disable authentication (local use only)")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default modelscout.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate modelscout.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println("configuration is valid")
			return nil
		},
	}
	return cmd
}

func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if viper.GetBool("json") {
		logger.SetFormatter(log.JSONFormatter)
	}
	return logger
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(workspace)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	logger := newLogger()
	var factory awssign.Factory
	creds, err := awssign.DefaultCredentials(ctx)
	if err != nil {
		logger.Warn("no credentials resolved; live queries will fall back", "err", err)
	} else {
		factory = awssign.NewFactory(creds, "bedrock", nil)
	}
	e := engine.New(conn, cfg, factory, logger)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(workspace)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
