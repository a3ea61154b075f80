package mail

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/taskmesh/task-delivery-service/config"
)

var Module = fx.Module("mail",
	fx.Provide(
		// The mailer is nil when SMTP is not configured; the email task
		// handler reports the gap per task instead of failing startup.
		func(cfg *config.Config, logger *slog.Logger) (Mailer, error) {
			if !cfg.SMTP.Configured() {
				logger.Warn("smtp not configured, email tasks will fail")
				return nil, nil
			}
			return NewSMTPMailer(cfg.SMTP)
		},
	),
)
