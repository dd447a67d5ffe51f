package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/davfile/auth"
	"github.com/xxxsen/davfile/cmd/davc/config"
	"github.com/xxxsen/davfile/filemgr"
	"github.com/xxxsen/davfile/transport"
	"github.com/xxxsen/davfile/webdav"
)

const (
	defaultConfigFileEnv = "DAVC_CONFIG"
)

var cmds []CreateFunc

type Context struct {
	FM     *filemgr.FileManager
	Config *config.Config
}

type CreateFunc func(ctx *Context) *cobra.Command

func register(cr CreateFunc) {
	cmds = append(cmds, cr)
}

func initContext(ctx *Context, cfgs []string) error {
	var c *config.Config
	var err error
	for _, cfg := range cfgs {
		if len(cfg) == 0 {
			continue
		}
		c, err = config.Parse(cfg)
		if err == nil {
			break
		}
		c = nil
	}
	if c == nil {
		return fmt.Errorf("no valid config file found, last err:%w", err)
	}
	ctx.Config = c
	logger.Init("", c.LogLevel, 0, 0, 0, true)
	threshold, err := c.SpillThresholdBytes()
	if err != nil {
		return err
	}
	policy := transport.DefaultRetryPolicy()
	if c.MaxRetries > 0 {
		policy.MaxRetries = c.MaxRetries
	}
	creds := make(map[string]auth.Credential, len(c.Credentials))
	for prefix, cc := range c.Credentials {
		creds[prefix] = auth.Credential{Username: cc.Username, Password: cc.Password}
	}
	cli, err := webdav.New(
		webdav.WithExecutor(transport.NewExecutor(transport.WithRetryPolicy(policy))),
		webdav.WithCredential(auth.MapCredentialMatch(creds)),
	)
	if err != nil {
		return err
	}
	fm, err := filemgr.New(filemgr.WithClient(cli), filemgr.WithSpillThreshold(threshold))
	if err != nil {
		return err
	}
	ctx.FM = fm
	return nil
}

func NewRoot() *cobra.Command {
	var configFile string
	ctx := &Context{}
	var rootCmd = &cobra.Command{
		Use:   "davc",
		Short: "WebDAV file CLI tool",
	}
	for _, cr := range cmds {
		rootCmd.AddCommand(cr(ctx))
	}
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		envConfigFile, _ := os.LookupEnv(defaultConfigFileEnv)
		return initContext(ctx, []string{configFile, "/etc/davc/davc_config.json", envConfigFile})
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file")
	return rootCmd
}
