package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"

	"armdbg/cortexm"
	"armdbg/log"
	"armdbg/target"
)

func main() {
	cli := parseArgs(os.Args[1:])
	if cli.mode == versionMode {
		printVersion(os.Stdout)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, cli, os.Stdout)
	stop()
	checkf(err, "armdbg")
}

func printVersion(w io.Writer) {
	version := "(devel)"
	goversion := ""
	if bi, ok := debug.ReadBuildInfo(); ok {
		if bi.Main.Version != "" {
			version = bi.Main.Version
		}
		goversion = bi.GoVersion
	}
	fmt.Fprintf(w, "armdbg %s %s\n", version, goversion)
}

// run opens a session on the configured cores and executes the command
// selected on the command line. Comparators are released before returning.
func run(ctx context.Context, cli CLI, w io.Writer) (err error) {
	cfg, err := loadConfig(cli.Config, cli.Preset)
	if err != nil {
		return err
	}
	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = stderrors.Join(err, sess.close())
	}()

	p := &printer{w: w, json: cli.JSON}
	if cli.mode == identifyMode && cli.Core == "" {
		for _, t := range sess.targets {
			core, _ := target.CortexM(t)
			if err := p.identity(t.Name, core); err != nil {
				return err
			}
		}
		return nil
	}

	t, core, err := sess.core(cli.Core)
	if err != nil {
		return err
	}
	if !cli.Secure {
		return command(ctx, cli, t.Name, core, p)
	}
	if !core.Identity().SecurityExt {
		return fmt.Errorf("%s has no security extension", t.Name)
	}
	return core.WithSecure(func() error {
		return command(ctx, cli, t.Name, core, p)
	})
}

func command(ctx context.Context, cli CLI, name string, core *cortexm.Core, p *printer) error {
	switch cli.mode {
	case identifyMode:
		return p.identity(name, core)

	case statusMode:
		st, err := core.ReadStatus()
		if err != nil {
			return err
		}
		return p.status(name, st)

	case haltMode:
		rep, err := core.Halt()
		if err != nil {
			return err
		}
		return p.report(name, rep)

	case resumeMode:
		if _, err := core.Halt(); err != nil {
			return err
		}
		if err := core.Resume(); err != nil {
			return err
		}
		for _i := 0; _i < cli.Resume.Polls; _i++ {
			rep, err := core.Poll()
			if err != nil {
				return err
			}
			if rep != nil {
				return p.report(name, rep)
			}
		}
		return p.status(name, core.Status())

	case stepMode:
		if _, err := core.Halt(); err != nil {
			return err
		}
		for _i := 0; _i < cli.Step.Count; _i++ {
			res, err := core.Step()
			if err != nil {
				return err
			}
			if err := p.step(name, res); err != nil {
				return err
			}
		}
		return nil

	case resetMode:
		rep, err := core.ResetHalt()
		if err != nil {
			return err
		}
		return p.report(name, rep)

	case breakMode:
		if _, err := core.Halt(); err != nil {
			return err
		}
		if _, err := core.SetBreakpoint(uint32(cli.Break.Addr), cli.Break.Length); err != nil {
			return err
		}
		return runToHalt(ctx, name, core, cli.Break.Polls, p)

	case watchMode:
		if _, err := core.Halt(); err != nil {
			return err
		}
		if _, err := core.SetWatchpoint(uint32(cli.Watch.Addr), cli.Watch.Length, cli.Watch.Access); err != nil {
			return err
		}
		return runToHalt(ctx, name, core, cli.Watch.Polls, p)

	case profileMode:
		samples, err := core.Profile(cli.Profile.Samples, cli.Profile.Duration)
		if err != nil {
			return err
		}
		return p.samples(name, samples)
	}
	return fmt.Errorf("unexpected command mode %d", cli.mode)
}

// runToHalt resumes the core and polls it until it halts.
func runToHalt(ctx context.Context, name string, core *cortexm.Core, polls int, p *printer) error {
	if err := core.Resume(); err != nil {
		return err
	}
	log.ModExec.WithField("core", name).Infof("running, waiting for the halt (%d polls)", polls)
	for _i := 0; _i < polls; _i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep, err := core.Poll()
		if err != nil {
			return err
		}
		if rep != nil {
			return p.report(name, rep)
		}
	}
	return fmt.Errorf("%s did not halt after %d polls", name, polls)
}
