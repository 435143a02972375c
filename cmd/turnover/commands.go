package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"turnover/internal/api"
	"turnover/internal/domain"
	"turnover/internal/models"

	"github.com/spf13/cobra"
)

func syncCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation cycle over every configured account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			batch, err := a.sync.SyncAll(ctx)
			if batch != nil {
				printSyncResults(batch)
			}
			// недоставленные уведомления останутся в outbox до запуска serve
			a.outbox.Drain(ctx)
			if errors.Is(err, domain.ErrPartialFailure) && batch != nil {
				return fmt.Errorf("%d account(s) failed", len(batch.Failed()))
			}
			return err
		},
	}
}

func printSyncResults(batch *models.SyncBatchResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tSTATUS\tLISTINGS\tRESERVATIONS\tSKIPPED\tTASKS\tERROR")
	for _, r := range batch.Results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.AccountID, r.Status, r.ListingsCount, r.ReservationsCount, r.SkippedCount, r.TasksCreated, r.Error)
	}
	_ = w.Flush()
}

func exportCmd(configPath *string) *cobra.Command {
	var from, to, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the XLSX task report for a period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := time.Parse("2006-01-02", from)
			if err != nil {
				return fmt.Errorf("bad --from: %w", err)
			}
			end, err := time.Parse("2006-01-02", to)
			if err != nil {
				return fmt.Errorf("bad --to: %w", err)
			}
			end = end.AddDate(0, 0, 1).Add(-time.Second)

			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if out == "" {
				path, err := a.reports.SaveFile(ctx, start, end)
				if err != nil {
					return err
				}
				fmt.Println(path)
				return nil
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := a.reports.Write(ctx, f, start, end); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}

	today := time.Now().UTC().Format("2006-01-02")
	cmd.Flags().StringVar(&from, "from", today, "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", today, "last day, YYYY-MM-DD")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: exports directory)")
	return cmd
}

func backupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write one database backup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			path, err := a.backup.PerformBackup(cmd.Context())
			if err != nil {
				return err
			}
			a.backup.CleanupOldBackups()
			fmt.Println(path)
			return nil
		},
	}
}

func workerCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage cleaners",
	}

	var w models.Worker
	var chatID int64
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a cleaner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if w.Name == "" {
				return errors.New("--name is required")
			}
			if chatID != 0 {
				w.TelegramChatID = &chatID
			}
			return withApp(cmd.Context(), *configPath, func(a *app) error {
				if err := a.db.CreateWorker(cmd.Context(), &w); err != nil {
					return err
				}
				fmt.Printf("worker %d created\n", w.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&w.Name, "name", "", "full name")
	add.Flags().StringVar(&w.Phone, "phone", "", "phone number")
	add.Flags().StringVar(&w.Email, "email", "", "email")
	add.Flags().StringVar(&w.Language, "language", "en", "notification language")
	add.Flags().Int64Var(&chatID, "telegram-chat-id", 0, "Telegram chat for notifications")

	setStatus := func(use, short, status string) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("bad worker id %q", args[0])
				}
				return withApp(cmd.Context(), *configPath, func(a *app) error {
					return a.db.SetWorkerStatus(cmd.Context(), id, status)
				})
			},
		}
	}

	cmd.AddCommand(
		add,
		setStatus("deactivate", "Stop assigning tasks to a cleaner", models.WorkerInactive),
		setStatus("activate", "Make a cleaner assignable again", models.WorkerActive),
	)
	return cmd
}

func tokenCmd(configPath *string) *cobra.Command {
	var actor models.Actor
	var userType string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			actor.Type = models.ActorType(userType)
			if actor.Type != models.ActorAdmin && actor.Type != models.ActorWorker {
				return errors.New("--type must be admin or worker")
			}
			if actor.ID <= 0 {
				return errors.New("--id is required")
			}
			return withApp(cmd.Context(), *configPath, func(a *app) error {
				if actor.Type == models.ActorWorker {
					if _, err := a.db.GetWorker(cmd.Context(), actor.ID); err != nil {
						return err
					}
				}
				tok, err := api.NewIdentity(a.cfg.API.Auth).Issue(actor, ttl)
				if err != nil {
					return err
				}
				fmt.Println(tok)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userType, "type", string(models.ActorAdmin), "admin or worker")
	cmd.Flags().Int64Var(&actor.ID, "id", 0, "user id (worker id for workers)")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime, 0 for none")
	return cmd
}

func withApp(ctx context.Context, configPath string, fn func(a *app) error) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
