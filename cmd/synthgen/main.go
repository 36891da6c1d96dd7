// Command synthgen renders synthetic image and mask datasets and turns the
// masks into bounding-box annotations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/synthgen/internal/version"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

var commands = []command{
	{"generate", "Render real and mask images from a configuration", runGenerate},
	{"annotate", "Extract bounding boxes from mask images", runAnnotate},
	{"report", "Write label and box-area charts for an annotated dataset", runReport},
	{"preview", "Overlay masks and boxes on real images", runPreview},
	{"runs", "List runs recorded in a ledger", runRuns},
	{"migrate", "Apply or roll back ledger migrations (up|down|version)", runMigrate},
	{"version", "Show the synthgen version", runVersion},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}
	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		printUsage(stdout)
		return 0
	}
	for _, c := range commands {
		if c.name != name {
			continue
		}
		err := c.run(ctx, args[1:], stdout, stderr)
		switch {
		case err == nil:
			return 0
		case errors.Is(err, flag.ErrHelp):
			return 0
		case errors.Is(err, errUsage):
			fmt.Fprintf(stderr, "synthgen %s: %v\n", name, err)
			return 2
		case errors.Is(err, context.Canceled):
			fmt.Fprintf(stderr, "synthgen %s: interrupted\n", name)
			return 130
		}
		fmt.Fprintf(stderr, "synthgen %s: %v\n", name, err)
		return 1
	}
	fmt.Fprintf(stderr, "Unknown command: %s\n\n", name)
	printUsage(stderr)
	return 2
}

var errUsage = errors.New("usage")

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "synthgen - synthetic mask dataset generator")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: synthgen <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'synthgen <command> -h' for command options.")
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parseFlags marks parse failures as usage errors. -h stays flag.ErrHelp.
func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %v", errUsage, err)
}

func runVersion(_ context.Context, _ []string, stdout, _ io.Writer) error {
	fmt.Fprintln(stdout, version.String())
	return nil
}
