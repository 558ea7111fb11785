package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arzzra/whipcast/pkg/media"
	"github.com/arzzra/whipcast/pkg/session"
	"github.com/arzzra/whipcast/pkg/signaling"
	"github.com/arzzra/whipcast/pkg/whip"
)

func newStreamCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream <url|-> [token]",
		Short: "Публикация H.264 файла на WHIP endpoint",
		Long:  "Публикует Annex-B H.264 файл. Вместо URL можно передать \"-\", тогда адрес берется из claim whip_url токена.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, token := args[0], ""
			if len(args) > 1 {
				token = args[1]
			}
			return a.stream(url, token)
		},
	}

	cmd.Flags().String("file", "", "H.264 Annex-B файл")
	cmd.Flags().Int("fps", 30, "частота кадров")
	cmd.Flags().Bool("loop", true, "повторять файл")
	a.bindFlag(cmd, "media.file", "file")
	a.bindFlag(cmd, "media.fps", "fps")
	a.bindFlag(cmd, "media.loop", "loop")
	return cmd
}

func (a *app) stream(url, token string) error {
	if url == "-" {
		claims, err := signaling.ParseClaims(token)
		if err != nil {
			return err
		}
		url = claims.WhipURL
	}

	ctx, stop := signalContext()
	defer stop()

	src, err := media.OpenFileSource(a.cfg.FileSourceConfig())
	if err != nil {
		return err
	}
	defer src.Close()

	client, err := signaling.NewClient(a.cfg.SignalingConfig(), a.log)
	if err != nil {
		return err
	}
	sess, err := session.New(ctx, a.cfg.SessionConfig(), a.log)
	if err != nil {
		return err
	}

	packets := media.NewQueue[media.EncodedPacket]("packets", a.cfg.Media.QueueSize)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	captureCtx, stopCapture := context.WithCancel(gctx)
	defer stopCapture()

	g.Go(func() error {
		return media.RunCapture(captureCtx, src, media.PassthroughEncoder{}, packets, start, a.log)
	})
	g.Go(func() error {
		defer stopCapture()
		return whip.Publish(gctx, sess, client, url, token, packets, a.log)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("публикация прервана: %w", err)
	}
	if dropped := packets.Dropped(); dropped > 0 {
		a.log.Warn("packets dropped on overflow", slog.Uint64("count", dropped))
	}
	return nil
}
