package commands

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kgroner/enisyncd/internal/config"
)

func CreateInterfacesCommand() *InterfacesCommand {
	ic := &InterfacesCommand{
		fs: flag.NewFlagSet("interfaces", flag.ExitOnError),
	}
	return ic
}

// InterfacesCommand prints the kernel links the daemon can see, with
// their addresses, for troubleshooting manifest/link matching.
type InterfacesCommand struct {
	fs  *flag.FlagSet
	cfg *config.Config
}

func (i *InterfacesCommand) Name() string {
	return i.fs.Name()
}

func (i *InterfacesCommand) Init(args []string, ctx *AppContext) error {
	if err := i.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return err
	}
	i.cfg = cfg

	return nil
}

func (i *InterfacesCommand) Run() error {
	eng := buildEngine(i.cfg)

	snap, err := eng.reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read kernel state: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tINDEX\tMAC\tSTATE\tADDRESSES")
	for _, link := range snap.Links {
		state := "down"
		if link.Up {
			state = "up"
		}
		addrs := ""
		for n, addr := range snap.Addrs[link.Index] {
			if n > 0 {
				addrs += " "
			}
			addrs += addr.String()
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", link.Name, link.Index, link.MAC, state, addrs)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nManaged state: %d route table(s), %d policy rule(s)\n", len(snap.Routes), len(snap.Rules))
	return nil
}
