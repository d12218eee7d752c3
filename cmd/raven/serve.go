package main

import (
	"context"
	"fmt"
	"strconv"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/raven-ui/raven/internal/config"
	"github.com/raven-ui/raven/pkg/server"
	"github.com/raven-ui/raven/pkg/snapshot"
	"github.com/raven-ui/raven/pkg/vdom"
)

func serveCmd() *cobra.Command {
	var (
		addr    string
		cfgPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the built-in demo application",
		Long: `Start the server with a small demo component.

Configuration is read from raven.yaml in the working directory.
Flags override the file.

Examples:
  raven serve
  raven serve --addr=0.0.0.0:8080
  raven serve --config=deploy/raven.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr, cfgPath)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from raven.yaml)")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to raven.yaml")
	return cmd
}

func runServe(ctx context.Context, addr, cfgPath string) error {
	var cfg *config.Config
	var err error
	if cfgPath != "" {
		cfg, err = config.LoadFile(cfgPath)
	} else {
		cfg, err = config.Load(".")
	}
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}

	opts := []server.Option{}
	if cfg.Snapshot.Backend == "s3" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		store := snapshot.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Snapshot.Bucket, cfg.Snapshot.Prefix)
		opts = append(opts, server.WithSnapshotStore(store))
	}

	srv, err := server.New(cfg, func() vdom.Component { return &demo{} }, opts...)
	if err != nil {
		return err
	}
	fmt.Printf("raven %s serving on http://%s\n", version, cfg.Addr)
	return srv.Run()
}

// demo is the component served by "raven serve": a counter that
// exercises the full render, diff, and patch loop.
type demo struct {
	clicks int
}

func (d *demo) Render() *vdom.VNode {
	return vdom.Element("main", vdom.NewProps(vdom.Style("font-family", "sans-serif")),
		vdom.Element("h1", nil, vdom.Text("raven")),
		vdom.Element("p", nil,
			vdom.Text("Clicked "),
			vdom.Element("strong", nil, vdom.Text(strconv.Itoa(d.clicks))),
			vdom.Text(" times."),
		),
		vdom.Element("button",
			vdom.NewProps(vdom.On("click", func(vdom.Event) { d.clicks++ })),
			vdom.Text("Click me"),
		),
	)
}
