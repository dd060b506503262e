package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"shiksharaha/internal/app"
	"shiksharaha/internal/assistant"
	"shiksharaha/internal/catalog"
	"shiksharaha/internal/config"
	"shiksharaha/internal/db"
	"shiksharaha/internal/server"
	"shiksharaha/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "sr",
	Short: "Shiksha Raha CLI",
	Long: `Shiksha Raha guides NGO staff through the Logical Framework Approach
for designing education programs: seven steps from problem definition to
monitoring indicators, with progress tracking, badges and AI-assisted reports.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
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
	viper.SetEnvPrefix("SHIKSHARAHA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(stepCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(badgeCmd())
	rootCmd.AddCommand(memberCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage programs"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectDeleteCmd())
	prj.AddCommand(projectCompleteCmd())
	prj.AddCommand(projectOpenCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List programs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s *store.Store) error {
				items, err := s.ListProjects(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := newTable("ID", "NAME", "STATUS", "STEP", "PROGRESS")
				for _, p := range items {
					t.AppendRow(table.Row{p.ID, p.Name, p.Status, p.CurrentStep, fmt.Sprintf("%d%%", p.Progress)})
				}
				fmt.Println(t.Render())
				return nil
			})
		},
	}
}

func projectCreateCmd() *cobra.Command {
	var name, desc, templateID string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a program",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withStore(cmd.Context(), func(ctx context.Context, s *store.Store) error {
				if templateID != "" && desc == "" {
					if tpl, ok := catalog.TemplateByID(templateID); ok {
						desc = tpl.Description
					}
				}
				p, err := s.CreateProject(ctx, name, desc, templateID)
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "program name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&templateID, "template", "", "template id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s *store.Store) error {
				p, err := s.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
}

func projectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s *store.Store) error {
				return s.DeleteProject(ctx, args[0])
			})
		},
	}
}

func projectCompleteCmd() *cobra.Command {
	var step int
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a workflow step completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s *store.Store) error {
				p, err := s.UpdateProgress(ctx, args[0], step)
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	cmd.Flags().IntVar(&step, "step", 1, "step number (1-7)")
	return cmd
}

func projectOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <id>",
		Short: "Set the currently open program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s *store.Store) error {
				return s.SetCurrentProject(ctx, args[0])
			})
		},
	}
}

func stepCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "step", Short: "Workflow steps"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the seven LFA steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := catalog.Steps()
			if viper.GetBool("json") {
				return printJSON(steps)
			}
			t := newTable("#", "KEY", "NAME", "DESCRIPTION")
			for _, s := range steps {
				t.AppendRow(table.Row{int(s.ID), s.Key, s.Name, s.Description})
			}
			fmt.Println(t.Render())
			return nil
		},
	})
	return cmd
}

func templateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "template", Short: "Program templates"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			items := catalog.Templates()
			if viper.GetBool("json") {
				return printJSON(items)
			}
			t := newTable("ID", "NAME", "CATEGORY", "POPULARITY")
			for _, tpl := range items {
				t.AppendRow(table.Row{tpl.ID, tpl.Name, tpl.Category, tpl.Popularity})
			}
			fmt.Println(t.Render())
			return nil
		},
	})
	return cmd
}

func badgeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "badge", Short: "Badges"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List badges with earned state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s *store.Store) error {
				badges, err := s.Badges(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(badges)
				}
				t := newTable("ID", "NAME", "EARNED", "WHEN")
				for _, b := range badges {
					earned := ""
					if b.Earned {
						earned = "yes"
					}
					t.AppendRow(table.Row{b.ID, b.Name, earned, b.EarnedAt})
				}
				fmt.Println(t.Render())
				return nil
			})
		},
	})
	return cmd
}

func memberCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "member", Short: "Organization members"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s *store.Store) error {
				items, err := s.ListMembers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := newTable("EMAIL", "ROLE", "STATUS", "INVITED")
				for _, m := range items {
					t.AppendRow(table.Row{m.Email, m.Role, m.Status, m.InvitedAt})
				}
				fmt.Println(t.Render())
				return nil
			})
		},
	})
	invite := &cobra.Command{
		Use:   "invite <email>",
		Short: "Invite a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, _ := cmd.Flags().GetString("role")
			return withStore(cmd.Context(), func(ctx context.Context, s *store.Store) error {
				m, err := s.InviteMember(ctx, args[0], role)
				if err != nil {
					return err
				}
				return printJSON(m)
			})
		},
	}
	invite.Flags().String("role", "", "member role")
	cmd.AddCommand(invite)
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Event log"}
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("n")
			evtType, _ := cmd.Flags().GetString("type")
			entityKind, _ := cmd.Flags().GetString("entity-kind")
			entityID, _ := cmd.Flags().GetString("entity-id")
			return withStore(cmd.Context(), func(ctx context.Context, s *store.Store) error {
				events, err := s.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSON(events)
			})
		},
	}
	tail.Flags().Int("n", 20, "number of events")
	tail.Flags().String("type", "", "event type filter")
	tail.Flags().String("entity-kind", "", "entity kind")
	tail.Flags().String("entity-id", "", "entity id")
	cmd.AddCommand(tail)
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "App config"}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	})
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if basePath != "" {
				cfg.Server.BasePath = basePath
			}
			log, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer log.Sync()

			conn, s, err := app.Open(workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := app.SeedCommunity(cmd.Context(), s); err != nil {
				return err
			}

			var completer assistant.Completer
			if key := cfg.APIKey(); key != "" {
				completer, err = assistant.NewGenAIClient(cmd.Context(), key, cfg.AI.Model)
				if err != nil {
					return err
				}
			} else {
				log.Warn("no AI API key configured; assistant endpoints will return errors",
					zap.String("env", cfg.AI.APIKeyEnv))
				completer = unavailableCompleter{}
			}
			svc := assistant.NewService(completer, log)

			handler, err := server.New(server.Config{
				Store:     s,
				Assistant: svc,
				BasePath:  cfg.Server.BasePath,
				Auth:      server.AuthConfig{JWTSecret: cfg.Auth.JWTSecret},
				Logger:    log,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			log.Info("serving Shiksha Raha API",
				zap.String("addr", cfg.Server.Addr),
				zap.String("base_path", cfg.Server.BasePath))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

type unavailableCompleter struct{}

func (unavailableCompleter) Complete(ctx context.Context, system string, messages []assistant.Message) (string, error) {
	return "", errors.New("assistant not configured: set the AI API key")
}

// --- helpers ---

func withStore(ctx context.Context, fn func(context.Context, *store.Store) error) error {
	conn, s, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, s)
}

func newTable(headers ...any) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row(headers))
	return t
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
