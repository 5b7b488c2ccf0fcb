// Package cli wires configuration, payload input and the miner into the
// gitpow command.
package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/redpwn/gitpow/internal/config"
	"github.com/redpwn/gitpow/internal/digest"
)

// flagValues mirrors the config fields settable on the command line. Only
// flags the user changed override the loaded config.
type flagValues struct {
	configPath string
	repo       string
	dir        string
	maxTries   int
	zeroes     int
	timeout    time.Duration
	digest     string
	maxPayload string
	hook       string
	verbose    bool
	quiet      bool
	format     string
}

func NewRootCommand() *cobra.Command {
	fv := &flagValues{}

	cmd := &cobra.Command{
		Use:   "gitpow [payload]",
		Short: "Commit a payload under a proof of work revision",
		Long: `Store a payload in the repository under its digest and commit it,
re-recording the commit until its id starts with the required number of
zero hex digits or the attempt budget runs out. On exhaustion the commit
and the stored file are discarded.

The payload is taken from the first argument, or from stdin when piped.

Example:
  gitpow "pass in this string as input"
  cat input.txt | gitpow --zeroes 2 --max-tries 1000`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, fv)
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}
			return runMine(cmd, cfg, fv.quiet, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&fv.configPath, "config", "", "YAML config file")
	f.StringVar(&fv.repo, "repo", ".", "repository working tree")
	f.StringVar(&fv.dir, "dir", "files", "storage directory, relative to the repository")
	f.IntVar(&fv.maxTries, "max-tries", 40, "maximum number of recorded revisions")
	f.IntVar(&fv.zeroes, "zeroes", 1, "required leading zero hex digits")
	f.DurationVar(&fv.timeout, "timeout", 30*time.Second, "timeout for each git command")
	f.StringVar(&fv.digest, "digest", string(digest.SHA1), "filename digest algorithm (blake3|sha1|sha256)")
	f.StringVar(&fv.maxPayload, "max-payload", "16M", "maximum payload size")
	f.StringVar(&fv.hook, "hook", "", "shell script to run after a match")
	f.BoolVarP(&fv.verbose, "verbose", "v", false, "debug logging")
	f.BoolVarP(&fv.quiet, "quiet", "q", false, "no logging")
	f.StringVar(&fv.format, "format", "text", "output format (json|text)")

	return cmd
}

func loadConfig(cmd *cobra.Command, fv *flagValues) (*config.Config, error) {
	cfg, err := config.GetConfig(fv.configPath)
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	if f.Changed("repo") {
		cfg.Repo = fv.repo
	}
	if f.Changed("dir") {
		cfg.Dir = fv.dir
	}
	if f.Changed("max-tries") {
		cfg.MaxTries = fv.maxTries
	}
	if f.Changed("zeroes") {
		cfg.Zeroes = fv.zeroes
	}
	if f.Changed("timeout") {
		cfg.Timeout = fv.timeout
	}
	if f.Changed("digest") {
		cfg.Digest = fv.digest
	}
	if f.Changed("max-payload") {
		if err := cfg.MaxPayload.UnmarshalText([]byte(fv.maxPayload)); err != nil {
			return nil, err
		}
	}
	if f.Changed("hook") {
		cfg.Hook = fv.hook
	}
	if f.Changed("verbose") {
		cfg.Verbose = fv.verbose
	}
	if f.Changed("format") {
		cfg.Format = fv.format
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
