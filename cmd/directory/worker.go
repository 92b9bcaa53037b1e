package main

import (
	"os"
	"os/signal"
	"syscall"

	awsclient "business-directory/internal/common/aws"
	"business-directory/internal/common/camunda"
	"business-directory/internal/common/config"
	notify "business-directory/internal/workers/leads/notify-business-lead"

	"github.com/spf13/cobra"
)

var leadWorkerCmd = &cobra.Command{
	Use:   "lead-worker",
	Short: "Run the Zeebe worker that notifies businesses of new leads",
	RunE:  runLeadWorker,
}

func runLeadWorker(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a := newApp(cfg)
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.openZeebe(); err != nil {
		return err
	}
	if err := a.openStore(ctx); err != nil {
		return err
	}

	aws := cfg.Integrations.AWS
	var (
		mailer notify.EmailSender
		texter notify.SMSSender
	)
	if aws.SES.Enabled {
		m, err := awsclient.NewMailer(ctx, aws.Region, aws.SES.FromEmail)
		if err != nil {
			return err
		}
		mailer = m
	}
	if aws.SNS.Enabled {
		t, err := awsclient.NewTexter(ctx, aws.Region, aws.SNS.DefaultSMSSenderID)
		if err != nil {
			return err
		}
		texter = t
	}

	if !config.IsWorkerEnabled(cfg, notify.TaskType) {
		a.logger.Warn("worker disabled by configuration", map[string]interface{}{"taskType": notify.TaskType})
		return nil
	}
	wc := config.GetWorkerConfig(cfg, notify.TaskType)

	handler := notify.NewHandler(notify.LoadConfig(cfg), mailer, texter, a.store, a.logger)
	w := camunda.StartWorker(a.zeebe.GetClient(), notify.TaskType, wc.MaxJobsActive, handler, a.logger)

	<-ctx.Done()
	w.Stop(ctx)
	return nil
}
