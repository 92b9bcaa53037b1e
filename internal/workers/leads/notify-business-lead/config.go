package notifybusinesslead

import (
	"time"

	"business-directory/internal/common/config"
)

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	Timeout      time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	timeout := config.GetDuration(config.GetWorkerConfig(cfg, TaskType).Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Config{
		EmailEnabled: cfg.Integrations.AWS.SES.Enabled,
		SMSEnabled:   cfg.Integrations.AWS.SNS.Enabled,
		Timeout:      timeout,
	}
}
