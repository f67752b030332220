// Command kbctl manages cattle-expert knowledge bases: validation, schema
// migrations, importing into a database and offline diagnosis.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cattle-expert/internal/bootstrap"
	"cattle-expert/internal/config"
	"cattle-expert/internal/diagnosis"
	"cattle-expert/internal/inference"
	"cattle-expert/internal/knowledge"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type cli struct {
	configPath string
	cfg        *config.Config
	logger     *logrus.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "kbctl",
		Short:         "Manage the cattle disease knowledge base",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = config.NewLogger(cfg.Logging)
			c.logger.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("CATTLE_EXPERT_CONFIG"), "path to config file")

	root.AddCommand(
		c.validateCmd(),
		c.migrateCmd(),
		c.importCmd(),
		c.diagnoseCmd(),
	)
	return root
}

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a JSON or YAML knowledge base file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := knowledge.FileSource{Path: args[0]}.Load(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d symptoms, %d diseases)\n",
				args[0], len(kb.Symptoms), len(kb.Diseases))
			return nil
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the knowledge base schema",
	}
	run := func(up bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			runner, err := bootstrap.NewMigrationRunner(c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer runner.Close()
			if up {
				return runner.Up()
			}
			return runner.Down()
		}
	}
	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply pending migrations", Args: cobra.NoArgs, RunE: run(true)},
		&cobra.Command{Use: "down", Short: "Roll back the last migration", Args: cobra.NoArgs, RunE: run(false)},
	)
	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the database knowledge base with the contents of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kb, err := knowledge.FileSource{Path: args[0]}.Load(ctx)
			if err != nil {
				return err
			}

			repo, db, err := bootstrap.OpenRepository(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repo.Save(ctx, kb); err != nil {
				return err
			}
			c.logger.WithFields(logrus.Fields{
				"symptoms": len(kb.Symptoms),
				"diseases": len(kb.Diseases),
			}).Info("Knowledge base imported")
			return nil
		},
	}
}

func (c *cli) diagnoseCmd() *cobra.Command {
	var (
		strict bool
		ranked bool
		kbPath string
	)
	cmd := &cobra.Command{
		Use:   "diagnose CODE...",
		Short: "Evaluate symptom codes against the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kb, err := c.loadKnowledge(ctx, kbPath)
			if err != nil {
				return err
			}

			svc, err := diagnosis.NewService(kb, 0, c.logger)
			if err != nil {
				return err
			}
			resp, err := svc.Diagnose(ctx, args, strict)
			if err != nil {
				return err
			}
			if ranked {
				resp.Diagnoses = inference.Rank(resp.Diagnoses)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "only report fully satisfied rules")
	cmd.Flags().BoolVar(&ranked, "ranked", false, "order results by match ratio")
	cmd.Flags().StringVar(&kbPath, "kb", "", "knowledge base file (defaults to the configured source)")
	return cmd
}

func (c *cli) loadKnowledge(ctx context.Context, path string) (*knowledge.KnowledgeBase, error) {
	if path != "" {
		return knowledge.FileSource{Path: path}.Load(ctx)
	}
	source, closer, err := bootstrap.KnowledgeSource(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return source.Load(ctx)
}
