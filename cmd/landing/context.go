package main

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"landing/internal/apiclient"
	"landing/internal/config"
)

const ownerEnv = "LANDING_OWNER_ID"

type commandContext struct {
	configFlag *string
	addrFlag   *string
	ownerFlag  *int64

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, addrFlag *string, ownerFlag *int64) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		addrFlag:   addrFlag,
		ownerFlag:  ownerFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) apiAddr(cfg *config.Config) string {
	if c.addrFlag != nil && strings.TrimSpace(*c.addrFlag) != "" {
		return strings.TrimSpace(*c.addrFlag)
	}
	return cfg.Paths.APIBind
}

// owner resolves the caller's owner id from --owner or the environment.
func (c *commandContext) owner() (int64, error) {
	if c.ownerFlag != nil && *c.ownerFlag != 0 {
		if *c.ownerFlag < 0 {
			return 0, errors.New("--owner must be a positive integer")
		}
		return *c.ownerFlag, nil
	}
	raw := strings.TrimSpace(os.Getenv(ownerEnv))
	if raw == "" {
		return 0, errors.New("owner id required: pass --owner or set " + ownerEnv)
	}
	owner, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || owner <= 0 {
		return 0, errors.New(ownerEnv + " must be a positive integer")
	}
	return owner, nil
}

// client builds an API client; owner-scoped commands pass requireOwner.
func (c *commandContext) client(requireOwner bool) (*apiclient.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	var opts []apiclient.Option
	if requireOwner {
		owner, err := c.owner()
		if err != nil {
			return nil, err
		}
		opts = append(opts, apiclient.WithOwner(owner))
	}
	return apiclient.New(c.apiAddr(cfg), cfg.Paths.APIToken, opts...)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
