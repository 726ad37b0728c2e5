package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/ajaxzhan/fileserver/pkg/api"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if !filepath.IsAbs(cfg.Storage.DataDir) {
		return fmt.Errorf("storage.data_dir: must be an absolute path, got %q", cfg.Storage.DataDir)
	}
	// File contents travel base64-encoded inside a JSON envelope.
	if limit := api.MaxTransferFor(cfg.Server.MaxMessageSize); cfg.Storage.MaxTransferSize > limit {
		return fmt.Errorf("storage.max_transfer_size (%d) exceeds %d, the largest file server.max_message_size (%d) can carry",
			cfg.Storage.MaxTransferSize, limit, cfg.Server.MaxMessageSize)
	}
	if cfg.Server.RateLimit.RequestsPerSecond > 0 && cfg.Server.RateLimit.Burst == 0 {
		return errors.New("server.rate_limit: burst must be positive when a rate is set")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
