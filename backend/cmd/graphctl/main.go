// Command graphctl administers course graphs directly against the configured storage backends.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"course-graph/backend/internal/bootstrap"
	"course-graph/backend/internal/course"
	"course-graph/backend/pkg/config"
	"course-graph/backend/pkg/logger"
)

var rootFlags struct {
	actor string
}

var rootCmd = &cobra.Command{
	Use:           "graphctl",
	Short:         "Administer versioned course graphs",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var initCmd = &cobra.Command{
	Use:   "init <courseId> [outline.yaml]",
	Short: "Create a course graph and its concept graph, optionally seeded from a YAML outline",
	Long: `Create the course graph at version 1 together with an empty concept graph.

When an outline file is given, its modules and topics form the initial skeleton and every topic
that carries subtopics is then installed through generation, so it reaches GENERATED with an
audit record.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runInit,
}

var getCmd = &cobra.Command{
	Use:   "get <courseId>",
	Short: "Print the current course graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(svc *bootstrap.Services) error {
			g, err := svc.Courses.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(g)
		})
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <courseId>",
	Short: "Print the quality report for a course",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(svc *bootstrap.Services) error {
			report, err := svc.Courses.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := printJSON(report); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("%d error(s) found", len(report.Errors))
			}
			return nil
		})
	},
}

var readinessFlags struct {
	topicID string
}

var readinessCmd = &cobra.Command{
	Use:   "readiness <courseId>",
	Short: "Report whether a course or topic may be exported",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(svc *bootstrap.Services) error {
			r, err := svc.Courses.ExportReadiness(cmd.Context(), args[0], readinessFlags.topicID)
			if err != nil {
				return err
			}
			return printJSON(r)
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the storage schema of the configured backends",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Opening a backend migrates it: gorm AutoMigrate for SQL, constraints for Neo4j
		return withServices(cmd.Context(), func(*bootstrap.Services) error {
			logger.Get().Info("Schema up to date")
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.actor, "actor", "graphctl", "actor id recorded for generation transitions")
	readinessCmd.Flags().StringVar(&readinessFlags.topicID, "topic", "", "limit the check to one topic")

	rootCmd.AddCommand(initCmd, getCmd, validateCmd, readinessCmd, migrateCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	courseID := args[0]

	plan := &seedPlan{Skeleton: course.New(courseID), Content: map[string][]course.Subtopic{}}
	if len(args) == 2 {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read outline: %w", err)
		}
		if plan, err = parseOutline(courseID, data); err != nil {
			return err
		}
	}

	return withServices(ctx, func(svc *bootstrap.Services) error {
		return seed(ctx, svc, courseID, plan, rootFlags.actor)
	})
}

func seed(ctx context.Context, svc *bootstrap.Services, courseID string, plan *seedPlan, actor string) error {
	log := logger.Get()
	res, err := svc.Courses.Init(ctx, courseID, plan.Skeleton)
	if err != nil {
		return err
	}
	if _, err := svc.Concepts.Init(ctx, courseID); err != nil {
		return err
	}

	version := res.Version
	for _, topicID := range plan.Order {
		res, err = svc.Courses.InstallTopicContent(ctx, courseID, topicID, plan.Content[topicID], version, actor, false)
		if err != nil {
			return fmt.Errorf("topic %s: %w", topicID, err)
		}
		version = res.Version
	}
	log.Info("Course initialized",
		zap.String("course_id", courseID),
		zap.Int("seeded_topics", len(plan.Order)),
		zap.Int64("version", version),
	)
	return nil
}

func withServices(ctx context.Context, fn func(*bootstrap.Services) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		return err
	}
	defer logger.Sync()

	svc, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(svc)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
