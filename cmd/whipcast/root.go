package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arzzra/whipcast/pkg/config"
	"github.com/arzzra/whipcast/pkg/logger"
)

// app общее состояние команд после разбора флагов
type app struct {
	v          *viper.Viper
	configPath string
	verbosity  int
	// bindings ключи конфигурации по флагам каждой команды
	bindings map[*cobra.Command]map[string]string

	cfg *config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{
		v:        config.NewViper(),
		bindings: make(map[*cobra.Command]map[string]string),
	}

	root := &cobra.Command{
		Use:          "whipcast",
		Short:        "WHIP/WHEP клиент и приемник видео",
		Long:         "whipcast публикует H.264 поток по WHIP, принимает входящие WHIP сессии и воспроизводит WHEP потоки.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().CountVarP(&a.verbosity, "verbose", "v", "подробность логов (-v info, -vv debug, -vvv trace)")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "файл конфигурации (yaml, toml, json)")

	root.AddCommand(newStreamCmd(a), newPlayWhipCmd(a), newPlayWhepCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	// флаги привязываются только у выполняемой команды: разные команды
	// используют одни и те же ключи
	for key, flag := range a.bindings[cmd] {
		if err := a.v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("флаг %s: %w", flag, err)
		}
	}

	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if a.verbosity > 0 {
		level = logger.FromVerbosity(a.verbosity)
	}
	a.log = logger.Setup(logger.Options{Level: level})
	return nil
}

// bindFlag связывает флаг команды с ключом конфигурации
func (a *app) bindFlag(cmd *cobra.Command, key, flag string) {
	if a.bindings[cmd] == nil {
		a.bindings[cmd] = make(map[string]string)
	}
	a.bindings[cmd][key] = flag
}

// signalContext отменяется по SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
