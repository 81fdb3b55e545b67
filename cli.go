package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"armdbg/cortexm"
	"armdbg/log"
	"armdbg/sim"
)

type mode byte

const (
	identifyMode mode = iota // Identify the cores
	statusMode               // Show the debug status
	haltMode                 // Halt and report
	resumeMode               // Halt, resume and watch the core run
	stepMode                 // Halt and single step
	resetMode                // Reset and halt on the reset vector
	breakMode                // Run to a breakpoint
	watchMode                // Run to a watchpoint
	profileMode              // Sample the program counter
	versionMode              // Show armdbg version
)

type (
	CLI struct {
		Identify Identify `cmd:"" help:"Identify the configured cores. (default command)" default:"true"`
		Status   Status   `cmd:"" help:"Show the debug status of a core."`
		Halt     Halt     `cmd:"" help:"Halt a core and report why it stopped."`
		Resume   Resume   `cmd:"" help:"Halt a core, resume it and poll its status."`
		Step     Step     `cmd:"" help:"Halt a core and execute single instructions."`
		Reset    Reset    `cmd:"" help:"Reset a core and halt it on the reset vector."`
		Break    Break    `cmd:"" help:"Run a core until it hits a hardware breakpoint."`
		Watch    Watch    `cmd:"" help:"Run a core until it hits a data watchpoint."`
		Profile  Profile  `cmd:"" help:"Sample the program counter of a running core."`
		Version  Version  `cmd:"" help:"Show armdbg version."`

		Config string     `name:"config" short:"c" help:"${config_help}" type:"existingfile" placeholder:"FILE"`
		Preset string     `name:"preset" help:"${preset_help}" default:"cortex-m4"`
		Core   string     `name:"core" help:"${core_help}" placeholder:"NAME"`
		JSON   bool       `name:"json" help:"Print results as JSON, one object per line."`
		Secure bool       `name:"secure" help:"${secure_help}"`
		Log    logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`

		mode mode
	}

	Identify struct{}
	Status   struct{}
	Halt     struct{}
	Reset    struct{}
	Version  struct{}

	Resume struct {
		Polls int `name:"polls" help:"Status reads after resuming." default:"16"`
	}

	Step struct {
		Count int `name:"count" short:"n" help:"Number of instructions." default:"1"`
	}

	Break struct {
		Addr   address `arg:"" name:"addr" help:"Instruction address."`
		Length int     `name:"length" help:"Instruction size in bytes, 2 or 4." default:"2"`
		Polls  int     `name:"polls" help:"${polls_help}" default:"1000"`
	}

	Watch struct {
		Addr   address        `arg:"" name:"addr" help:"Data address."`
		Length uint32         `name:"length" help:"Watched size in bytes, a power of two." default:"4"`
		Access cortexm.Access `name:"access" help:"Access kind: r, w or rw." default:"rw"`
		Polls  int            `name:"polls" help:"${polls_help}" default:"1000"`
	}

	Profile struct {
		Samples  int           `name:"samples" help:"Maximum number of samples." default:"64"`
		Duration time.Duration `name:"duration" help:"Maximum sampling time." default:"1s"`
	}
)

var vars = kong.Vars{
	"config_help": "TOML file describing the debug settings and the simulated cores.",
	"preset_help": "Simulated core when no configuration file is given (" + strings.Join(sim.Presets(), ", ") + ").",
	"core_help":   "Core to act on, by name. Defaults to the first configured core.",
	"secure_help": "Switch to the secure debug state while acting on the core (ARMv8-M with security extension).",
	"polls_help":  "Status reads before giving up waiting for the halt.",
	"log_help":    "Enable logging for specified modules.",
}

func newParser(cfg *CLI) (*kong.Kong, error) {
	return kong.New(cfg,
		kong.Name("armdbg"),
		kong.Description("Cortex-M debug control, against simulated cores."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := newParser(&cfg)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	cfg.mode = commandMode(ctx.Command())
	return cfg
}

// commandMode maps a kong command path ("break <addr>") to its mode.
func commandMode(cmd string) mode {
	name, _, _ := strings.Cut(cmd, " ")
	switch name {
	case "status":
		return statusMode
	case "halt":
		return haltMode
	case "resume":
		return resumeMode
	case "step":
		return stepMode
	case "reset":
		return resetMode
	case "break":
		return breakMode
	case "watch":
		return watchMode
	case "profile":
		return profileMode
	case "version":
		return versionMode
	}
	return identifyMode
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all logging.
    - all                    Enable all logs.
`
	var strs []string
	for _, m := range log.ModuleNames() {
		strs = append(strs, "    - "+m)
	}

	fmt.Fprintf(os.Stderr, loggingHelp, strings.Join(strs, "\n"))
	return nil
}

type logModMask log.ModuleMask

// Decode decodes a comma-separated list of module names into a module mask.
//
// Implements kong.MapperValue interface.
func (lm logModMask) Decode(ctx *kong.DecodeContext) error {
	nolog := false
	allLogs := false

	tok := ctx.Scan.Pop()
	for _, v := range strings.Split(tok.Value.(string), ",") {
		switch v {
		case "all":
			allLogs = true
		case "no":
			nolog = true
		default:
			mod, ok := log.ModuleByName(v)
			if !ok {
				return fmt.Errorf("unknown log module %s", v)
			}
			lm |= logModMask(mod.Mask())
		}
	}

	if nolog {
		if allLogs {
			return fmt.Errorf("cannot use 'all' and 'no' together")
		}
		if lm != 0 {
			return fmt.Errorf("cannot combine 'no' with other log modules")
		}
		log.Disable()
		return nil
	}

	if allLogs {
		lm = logModMask(log.ModuleMaskAll)
	}

	log.EnableDebugModules(log.ModuleMask(lm))
	return nil
}

// address is a 32-bit target address, decimal or 0x prefixed.
type address uint32

// Decode implements kong.MapperValue interface.
func (a *address) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	s, ok := tok.Value.(string)
	if !ok {
		return fmt.Errorf("expected an address but got %q (%T)", tok, tok.Value)
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return fmt.Errorf("invalid address %q", s)
	}
	*a = address(v)
	return nil
}

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+".\n"+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
