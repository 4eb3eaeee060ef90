package commands

import (
	"context"
	"flag"
	"fmt"

	"github.com/kgroner/enisyncd/internal/config"
	"github.com/kgroner/enisyncd/internal/log"
)

func CreateSyncCommand() *SyncCommand {
	sc := &SyncCommand{
		fs: flag.NewFlagSet("sync", flag.ExitOnError),
	}
	return sc
}

// SyncCommand runs exactly one reconciliation pass and exits. The exit
// status reflects the pass outcome, so it can back a cron job or a
// one-shot systemd unit.
type SyncCommand struct {
	fs  *flag.FlagSet
	cfg *config.Config
}

func (s *SyncCommand) Name() string {
	return s.fs.Name()
}

func (s *SyncCommand) Init(args []string, ctx *AppContext) error {
	if err := s.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return err
	}
	s.cfg = cfg

	return nil
}

func (s *SyncCommand) Run() error {
	eng := buildEngine(s.cfg)

	report := eng.loop.RunOnce(context.Background())
	if report.Err != "" {
		return fmt.Errorf("reconciliation pass failed: %s", report.Err)
	}

	for _, iface := range report.Interfaces {
		log.Infof("[%s] table=%d status=%s applied=%d %s",
			iface.ID, iface.Table, iface.Status, iface.Applied, iface.Detail)
	}

	if report.Failing() {
		return fmt.Errorf("one or more interfaces failed to converge")
	}
	return nil
}
