package config

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validatorInst *validator.Validate
)

func instance() *validator.Validate {
	validatorOnce.Do(func() {
		validatorInst = validator.New()
	})
	return validatorInst
}

// Validate runs struct-tag validation over cfg, the same way the teacher's
// Validator walked its agent/chain/MCP registries before Initialize returned.
func Validate(cfg *Config) error {
	return instance().Struct(cfg)
}
