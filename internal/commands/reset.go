package commands

import (
	"flag"
	"fmt"

	"github.com/kgroner/enisyncd/internal/config"
	"github.com/kgroner/enisyncd/internal/log"
	"github.com/kgroner/enisyncd/internal/reconcile"
)

func CreateResetCommand() *ResetCommand {
	rc := &ResetCommand{
		fs: flag.NewFlagSet("reset", flag.ExitOnError),
	}
	return rc
}

// ResetCommand removes every policy rule and route inside the managed
// ranges, regardless of what the manifest currently says. Interface
// addresses are left untouched.
type ResetCommand struct {
	fs  *flag.FlagSet
	cfg *config.Config
}

func (r *ResetCommand) Name() string {
	return r.fs.Name()
}

func (r *ResetCommand) Init(args []string, ctx *AppContext) error {
	if err := r.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return err
	}
	r.cfg = cfg

	return nil
}

func (r *ResetCommand) Run() error {
	eng := buildEngine(r.cfg)

	snap, err := eng.reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read kernel state: %v", err)
	}

	actions := reconcile.ResetActions(snap, eng.ranges)
	if len(actions) == 0 {
		log.Infof("Nothing to reset: no managed rules or routes found")
		return nil
	}

	result := reconcile.NewApplier(eng.nl).Apply("reset", actions)
	if result.Err != nil {
		return fmt.Errorf("reset stopped after %d action(s): %v", result.Applied, result.Err)
	}

	log.Infof("Reset complete: %d rule(s)/route(s) removed", result.Applied)
	return nil
}
