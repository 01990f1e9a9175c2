package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/dittoiso/pkg/storage/iso"
	"golang.org/x/crypto/bcrypt"
)

var validate = newValidator()

// newValidator reports fields by their configuration keys and knows the
// naming convention values.
func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("convention", func(fl validator.FieldLevel) bool {
		_, err := iso.ParseConvention(fl.Field().String())
		return err == nil
	})

	return v
}

// Validate checks struct tags, then the rules tags cannot express.
//
// Log level case is normalized by ApplyDefaults; both cases validate.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	seen := make(map[iso.Convention]bool, len(cfg.Image.Naming.Prefer))
	for i, name := range cfg.Image.Naming.Prefer {
		c, _ := iso.ParseConvention(name)
		if seen[c] {
			return fmt.Errorf("image.naming.prefer[%d]: duplicate convention %q", i, name)
		}
		seen[c] = true
	}

	ftpCfg := cfg.Adapters.FTP
	if !ftpCfg.Enabled {
		return errors.New("adapters: at least one adapter must be enabled")
	}

	if ftpCfg.PassivePortStart > ftpCfg.PassivePortEnd {
		return fmt.Errorf("adapters.ftp: passive_port_start (%d) is greater than passive_port_end (%d)",
			ftpCfg.PassivePortStart, ftpCfg.PassivePortEnd)
	}

	if (ftpCfg.TLS.CertFile == "") != (ftpCfg.TLS.KeyFile == "") {
		return errors.New("adapters.ftp.tls: cert_file and key_file must be set together")
	}

	if !ftpCfg.Auth.Anonymous && len(ftpCfg.Auth.Users) == 0 {
		return errors.New("adapters.ftp.auth: anonymous access is disabled and no users are configured")
	}

	users := make(map[string]bool, len(ftpCfg.Auth.Users))
	for i, u := range ftpCfg.Auth.Users {
		if users[u.Username] {
			return fmt.Errorf("adapters.ftp.auth.users[%d]: duplicate username %q", i, u.Username)
		}
		users[u.Username] = true

		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return fmt.Errorf("adapters.ftp.auth.users[%d]: password_hash is not a bcrypt hash: %w", i, err)
		}
	}

	return nil
}

// formatValidationError reports the first failing field by its config key,
// e.g. "image.block_size".
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return err
	}

	e := validationErrs[0]
	key := e.Namespace()
	if _, rest, ok := strings.Cut(key, "."); ok {
		key = rest
	}
	return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", key, e.Tag(), e.Value())
}
