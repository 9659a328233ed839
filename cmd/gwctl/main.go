// Command gwctl is the gateway's operator CLI: validate a config file, or
// probe a single repository's exists/access/enabled state against the
// local driver without starting a server. Grounded on the teacher's
// cmd/cli/main.go urfave/cli/v3 skeleton.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/bravo68web/githttpgw/internal/config"
	"github.com/bravo68web/githttpgw/internal/driver"
	"github.com/bravo68web/githttpgw/internal/gitproto"
)

func main() {
	cmd := &cli.Command{
		Name:  "gwctl",
		Usage: "operator CLI for the Git Smart-HTTP gateway",
		Commands: []*cli.Command{
			validateConfigCommand(),
			probeCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "gwctl:", err)
		os.Exit(1)
	}
}

func validateConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate-config",
		Usage: "load and validate a config.yaml, printing any error",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to config.yaml"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.Writer, "config OK: server=%s backend=%s mirror-enabled=%v\n",
				cfg.ServerAddress(), cfg.Backend.Type, cfg.Mirror.Enabled)
			return nil
		},
	}
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     "exercise exists/access/enabled for one repository against the local driver",
		ArgsUsage: "<origin-dir> <repo-path> <git-upload-pack|git-receive-pack>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() != 3 {
				return fmt.Errorf("expected 3 arguments, got %d", args.Len())
			}
			originDir, repoPath, serviceName := args.Get(0), args.Get(1), args.Get(2)

			svc := gitproto.ParseService(serviceName)
			if svc == gitproto.ServiceUnknown {
				return fmt.Errorf("unrecognized service %q", serviceName)
			}

			req := gitproto.NewRequest()
			req.Service = svc
			req.Path = repoPath

			local := &driver.Local{OriginDir: originDir}

			exists, err := local.Exists(ctx, req, nil)
			if err != nil {
				return fmt.Errorf("exists: %w", err)
			}
			access, err := local.Access(ctx, req, nil)
			if err != nil {
				return fmt.Errorf("access: %w", err)
			}
			enabled, err := local.Enabled(ctx, req, nil)
			if err != nil {
				return fmt.Errorf("enabled: %w", err)
			}

			fmt.Fprintf(cmd.Writer, "exists=%v access=%v enabled=%v\n", exists, access, enabled)
			return nil
		},
	}
}
