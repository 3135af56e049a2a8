package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Bames007/sauni/bootstrap"
	"github.com/Bames007/sauni/common/auth"
	"github.com/Bames007/sauni/common/logger"
	"github.com/Bames007/sauni/config"
	"github.com/Bames007/sauni/database"
	"github.com/Bames007/sauni/docstore"
	"github.com/Bames007/sauni/models"
	awspkg "github.com/Bames007/sauni/pkg/aws"
	"github.com/Bames007/sauni/repository"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "admissionsctl",
		Short:         "Operator tool for the SAU admissions payment service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(createPendingCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(dispatchCmd())
	rootCmd.AddCommand(copyCmd())
	rootCmd.AddCommand(tokenCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every command starts from.
type env struct {
	cfg *config.Config
	aws sdkaws.Config
	log *zap.Logger
}

func loadEnv(ctx context.Context) (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.AppEnv, nil)
	if err != nil {
		return nil, err
	}
	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		log.Warn("AWS config load failed (non-fatal)", zap.Error(err))
	} else if err := cfg.ApplySecrets(ctx, awspkg.NewSecretsClient(awsCfg)); err != nil {
		return nil, err
	}
	return &env{cfg: cfg, aws: awsCfg, log: log}, nil
}

func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *bootstrap.App) error) error {
	ctx := cmd.Context()
	e, err := loadEnv(ctx)
	if err != nil {
		return err
	}
	defer e.log.Sync()

	app, err := bootstrap.Build(ctx, e.cfg, e.aws, e.log)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())
	return fn(ctx, app)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func verifyCmd() *cobra.Command {
	var req models.VerifyRequest
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Re-run reconciliation for one payment reference",
		Long: `Calls Paystack for the reference and applies the same state changes as
POST /verify-payment. When --amount is omitted the stored expected amount is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				req.Source = "cli"
				if req.Amount == 0 || req.ProspectiveID == "" {
					rec, svcErr := app.Payments.GetPayment(ctx, req.Reference)
					if svcErr != nil {
						return fmt.Errorf("load %s: %s", req.Reference, svcErr.Message)
					}
					if req.Amount == 0 {
						req.Amount = rec.Amount
					}
					if req.ProspectiveID == "" {
						req.ProspectiveID = rec.ProspectiveID
					}
					if req.Email == "" {
						req.Email = rec.Email
					}
				}

				result, svcErr := app.Payments.Verify(ctx, &req)
				if svcErr != nil {
					_ = printJSON(cmd, map[string]any{"success": false, "message": svcErr.Message})
					return fmt.Errorf("verification failed with status %d", svcErr.StatusCode)
				}
				return printJSON(cmd, result)
			})
		},
	}

	cmd.Flags().StringVarP(&req.Reference, "reference", "r", "", "Paystack reference (required)")
	cmd.Flags().StringVarP(&req.ProspectiveID, "prospective-id", "p", "", "Applicant prospective ID")
	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "Recipient for the confirmation email")
	cmd.Flags().Int64VarP(&req.Amount, "amount", "a", 0, "Expected amount in kobo")
	_ = cmd.MarkFlagRequired("reference")
	return cmd
}

func createPendingCmd() *cobra.Command {
	var req models.CreatePendingRequest
	var paymentType string
	cmd := &cobra.Command{
		Use:   "create-pending",
		Short: "Seed a pending payment record",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.PaymentType = models.PaymentType(paymentType)
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				ref, svcErr := app.Payments.CreatePending(ctx, &req)
				if svcErr != nil {
					return fmt.Errorf("create pending: %s", svcErr.Message)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created pending payment %s\n", ref)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&req.Reference, "reference", "r", "", "Paystack reference (required)")
	cmd.Flags().StringVarP(&req.ProspectiveID, "prospective-id", "p", "", "Applicant prospective ID (required)")
	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "Applicant email")
	cmd.Flags().Int64VarP(&req.Amount, "amount", "a", 0, "Expected amount in kobo")
	cmd.Flags().StringVarP(&paymentType, "type", "t", string(models.PaymentTypeApplicationFee),
		"Payment type (application_fee, tuition_deposit, full_tuition, other)")
	_ = cmd.MarkFlagRequired("reference")
	_ = cmd.MarkFlagRequired("prospective-id")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the outbox and webhook log tables, and the document table or indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx)
			if err != nil {
				return err
			}
			defer e.log.Sync()

			if e.cfg.PostgresConfigured() {
				db, err := database.ConnectPostgres(e.cfg, e.log, database.Models()...)
				if err != nil {
					return err
				}
				defer database.ClosePostgres(db)
				e.log.Info("Postgres tables migrated")
			} else {
				e.log.Info("Postgres not configured; skipping table migration")
			}

			switch e.cfg.DocstoreDriver {
			case config.DocstoreDynamo:
				client := dynamodb.NewFromConfig(e.aws)
				store := docstore.NewDynamoStore(client, e.cfg.DynamoTable, e.cfg.DynamoPoll)
				if err := database.EnsureDynamoTable(ctx, client, store, e.cfg.DynamoTable); err != nil {
					return err
				}
				e.log.Info("DynamoDB table ready", zap.String("table", e.cfg.DynamoTable))
			case config.DocstoreMongo:
				backend, err := database.OpenDocstore(ctx, e.cfg, e.aws, e.log)
				if err != nil {
					return err
				}
				defer backend.Close(context.Background())
				e.log.Info("MongoDB indexes ready", zap.String("collection", e.cfg.MongoCollection))
			}
			return nil
		},
	}
}

func dispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Drain due notifications from the outbox once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				d := app.Dispatcher()
				if d == nil {
					return fmt.Errorf("dispatch needs NOTIFY_MODE=outbox")
				}
				sent, failed, err := d.DrainOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sent=%d failed=%d\n", sent, failed)
				return nil
			})
		},
	}
}

func copyCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy payment and application documents into the configured docstore",
		Example: `  # move from Mongo to DynamoDB
  DOCSTORE_DRIVER=dynamodb admissionsctl copy --from mongo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx)
			if err != nil {
				return err
			}
			defer e.log.Sync()
			if from == e.cfg.DocstoreDriver {
				return fmt.Errorf("source and destination are both %s", from)
			}

			srcCfg := *e.cfg
			srcCfg.DocstoreDriver = from
			if err := srcCfg.Validate(); err != nil {
				return err
			}
			src, err := database.OpenDocstore(ctx, &srcCfg, e.aws, e.log)
			if err != nil {
				return err
			}
			defer src.Close(context.Background())
			dst, err := database.OpenDocstore(ctx, e.cfg, e.aws, e.log)
			if err != nil {
				return err
			}
			defer dst.Close(context.Background())

			start := time.Now()
			n, err := repository.CopyAll(ctx, src.Store, dst.Store, func(p string) {
				e.log.Debug("copied", zap.String("path", p))
			})
			if err != nil {
				return fmt.Errorf("copy stopped after %d documents: %w", n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Copy complete. documents=%d took=%s\n", n, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Source driver (redis, mongo, dynamodb)")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context())
			if err != nil {
				return err
			}
			tok, err := auth.NewTokenManager(e.cfg.JWTSecret).Issue(subject, auth.RoleAdmin, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Administrator identity (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
