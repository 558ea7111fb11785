package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arzzra/whipcast/pkg/ingest"
	"github.com/arzzra/whipcast/pkg/media"
	"github.com/arzzra/whipcast/pkg/session"
	"github.com/arzzra/whipcast/pkg/signaling"
	"github.com/arzzra/whipcast/pkg/whip"
)

func newPlayWhipCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play-whip",
		Short: "Прием входящих WHIP сессий и воспроизведение",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.playWhip()
		},
	}

	cmd.Flags().String("listen", ingest.DefaultListen, "адрес HTTP endpoint")
	cmd.Flags().Bool("advertise", false, "объявить endpoint через mDNS")
	cmd.Flags().String("output", "", "записывать поток в файл .h264 вместо ffplay")
	a.bindFlag(cmd, "ingest.listen", "listen")
	a.bindFlag(cmd, "ingest.advertise", "advertise")
	a.bindFlag(cmd, "media.output", "output")
	return cmd
}

func newPlayWhepCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play-whep <url> [token]",
		Short: "Воспроизведение потока с WHEP endpoint",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			if len(args) > 1 {
				token = args[1]
			}
			return a.playWhep(args[0], token)
		},
	}

	cmd.Flags().String("output", "", "записывать поток в файл .h264 вместо ffplay")
	a.bindFlag(cmd, "media.output", "output")
	return cmd
}

func (a *app) playWhep(url, token string) error {
	ctx, stop := signalContext()
	defer stop()

	client, err := signaling.NewClient(a.cfg.SignalingConfig(), a.log)
	if err != nil {
		return err
	}
	sess, err := session.New(ctx, a.cfg.SessionConfig(), a.log)
	if err != nil {
		return err
	}

	renderer, err := a.newRenderer(ctx, 1)
	if err != nil {
		sess.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	frames := media.NewQueue[media.Frame]("frames", a.cfg.Media.QueueSize)
	if err := whip.SubscribeAsClient(gctx, g, sess, client, url, token, media.NewAnnexBDecoder(), frames, a.log); err != nil {
		renderer.Close()
		return err
	}
	g.Go(func() error {
		return media.RunRenderer(gctx, frames, renderer, a.log)
	})
	return g.Wait()
}

func (a *app) playWhip() error {
	ctx, stop := signalContext()
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	newEngine := func(ctx context.Context) (whip.Engine, error) {
		s, err := session.New(ctx, a.cfg.SessionConfig(), a.log)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	receiver := whip.NewReceiver(gctx, g, newEngine, a.newRenderer, a.cfg.Media.QueueSize, a.log)
	server := ingest.NewServer(a.cfg.IngestConfig(), receiver, a.log)

	if a.cfg.Ingest.Advertise {
		port, err := ingest.ListenPort(a.cfg.Ingest.Listen)
		if err != nil {
			return err
		}
		adv, err := ingest.Advertise(a.cfg.Ingest.Instance, port, nil, a.log)
		if err != nil {
			return err
		}
		defer adv.Shutdown()
	}

	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})
	return g.Wait()
}

// newRenderer ffplay по умолчанию, файл если задан media.output.
// Для второй и следующих сессий к имени файла добавляется номер.
func (a *app) newRenderer(ctx context.Context, seq int) (media.Renderer, error) {
	out := a.cfg.Media.Output
	if out == "" {
		return media.StartFFplay(ctx, a.cfg.Media.FFplay)
	}
	if seq > 1 {
		ext := filepath.Ext(out)
		out = fmt.Sprintf("%s.%d%s", strings.TrimSuffix(out, ext), seq, ext)
	}
	a.log.Info("recording stream", slog.String("file", out))
	return media.NewFileRenderer(out)
}
