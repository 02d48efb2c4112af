// Package scan implements the scan subcommand: run the detection pipeline
// over a frame source and persist the results as one scanning session.
package scan

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tallycam/tallycam-go/internal/conf"
	"github.com/tallycam/tallycam-go/internal/frame"
	"github.com/tallycam/tallycam-go/internal/inventory"
	"github.com/tallycam/tallycam-go/internal/observability"
	"github.com/tallycam/tallycam-go/internal/pipeline"
	"github.com/tallycam/tallycam-go/internal/session"
	"github.com/tallycam/tallycam-go/internal/thumbnail"
	"github.com/tallycam/tallycam-go/internal/vision"
)

// Command creates the scan command. The frame directory stands in for a
// live camera: files are replayed in order at the configured interval.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		sessionName string
		merge       bool
		loop        bool
	)

	cmd := &cobra.Command{
		Use:   "scan [frames-dir]",
		Short: "Analyze a directory of frames as one scanning session",
		Long: `Replay JPEG frames from a directory through the detection pipeline,
persist the emitted detections as a scanning session, and optionally
merge the session into the inventory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), settings, args[0], sessionName, merge, loop)
		},
	}

	cmd.Flags().StringVarP(&sessionName, "name", "n", "scan", "Session name")
	cmd.Flags().BoolVar(&merge, "merge", false, "Merge the session into the inventory when done")
	cmd.Flags().BoolVar(&loop, "loop", false, "Replay the directory until interrupted")

	return cmd
}

func runScan(ctx context.Context, settings *conf.Settings, dir, name string, merge, loop bool) error {
	m, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	if settings.Metrics.Enabled {
		go func() {
			if err := m.Serve(settings.Metrics.Listen); err != nil {
				fmt.Printf("metrics endpoint failed: %v\n", err)
			}
		}()
	}

	client, err := vision.NewClient(settings.Vision, m.Vision)
	if err != nil {
		return err
	}

	thumbs := thumbnail.New(settings.Thumbnail)
	sessions, err := session.NewStore(conf.SessionSettings{
		Path:       settings.ResolvePath(settings.Session.Path),
		PhotoPath:  settings.ResolvePath(settings.Session.PhotoPath),
		FlushEvery: settings.Session.FlushEvery,
	}, thumbs, m.Store)
	if err != nil {
		return err
	}

	sess, err := sessions.CreateSession(name)
	if err != nil {
		return err
	}
	fmt.Printf("Session %s (%s) started, scanning %s\n", sess.Name, sess.ID, dir)

	p := pipeline.New(settings.Scan, client, m.Pipeline)

	source := &frame.DirSource{Dir: dir, Interval: settings.Scan.Interval, Loop: loop}
	mbox := frame.NewMailbox()
	sourceErr := make(chan error, 1)
	go func() {
		sourceErr <- source.Run(ctx, mbox)
		mbox.Close()
	}()

	if err := p.Run(ctx, mbox); err != nil {
		return err
	}
	if err := <-sourceErr; err != nil {
		return err
	}

	emitted := p.Emitted()
	for _, d := range emitted {
		if _, err := sessions.AddDetection(d); err != nil {
			return err
		}
	}
	ended, err := sessions.EndSession()
	if err != nil {
		return err
	}
	fmt.Printf("Session ended with %d items\n", len(ended.Items))

	if !merge {
		return nil
	}

	inv, err := inventory.NewStore(conf.InventorySettings{
		Path:      settings.ResolvePath(settings.Inventory.Path),
		PhotoPath: settings.ResolvePath(settings.Inventory.PhotoPath),
	}, m.Store)
	if err != nil {
		return err
	}
	created, updated, err := sessions.MergeSession(ended.ID, inv)
	if err != nil {
		return err
	}
	fmt.Printf("Merged into inventory: %d created, %d updated\n", created, updated)
	return nil
}
