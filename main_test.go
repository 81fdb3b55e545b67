package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/google/go-cmp/cmp"

	"armdbg/cortexm"
	"armdbg/sim"
)

const testConfig = `
[debug]
isr_masking = "steponly"
poll_interval = "0s"

[[core]]
name = "app"
preset = "cortex-m4"

[[core.access]]
pc = 0x208
addr = 0x20000104
write = true

[[core]]
preset = "cortex-m33"
halt_latency = 2
`

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "armdbg.toml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func parseTestArgs(t *testing.T, args ...string) (CLI, error) {
	t.Helper()

	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		t.Fatal(err)
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return cli, err
	}
	cli.mode = commandMode(kctx.Command())
	return cli, nil
}

func runArgs(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cli, err := parseTestArgs(t, args...)
	if err != nil {
		t.Fatalf("parse %q: %v", args, err)
	}
	var buf bytes.Buffer
	err = run(context.Background(), cli, &buf)
	return buf.String(), err
}

func TestCommandMode(t *testing.T) {
	tests := []struct {
		cmd  string
		want mode
	}{
		{"identify", identifyMode},
		{"status", statusMode},
		{"halt", haltMode},
		{"resume", resumeMode},
		{"step", stepMode},
		{"reset", resetMode},
		{"break <addr>", breakMode},
		{"watch <addr>", watchMode},
		{"profile", profileMode},
		{"version", versionMode},
	}
	for _, tt := range tests {
		if got := commandMode(tt.cmd); got != tt.want {
			t.Errorf("commandMode(%q) = %d, want %d", tt.cmd, got, tt.want)
		}
	}
}

func TestParseArgs(t *testing.T) {
	cli, err := parseTestArgs(t, "watch", "0x20000104", "--access", "w", "--length", "2")
	if err != nil {
		t.Fatal(err)
	}
	if cli.mode != watchMode || cli.Watch.Addr != 0x20000104 || cli.Watch.Access != cortexm.AccessWrite || cli.Watch.Length != 2 {
		t.Errorf("parsed %+v", cli.Watch)
	}

	bad := [][]string{
		{"break", "0xfoo"},
		{"break", "0x100000000"},
		{"watch", "0x100", "--access", "x"},
		{"--log", "nosuchmodule", "identify"},
		{"--log", "all,no", "identify"},
	}
	for _, args := range bad {
		if _, err := parseTestArgs(t, args...); err == nil {
			t.Errorf("parse %q succeeded", args)
		}
	}
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := decodeConfig(testConfig, "cortex-m4")
	if err != nil {
		t.Fatal(err)
	}

	want := Config{Debug: cortexm.DefaultConfig()}
	want.Debug.ISRMasking = cortexm.ISRMaskStepOnly
	want.Debug.PollInterval = 0

	app, _ := sim.NewConfig("cortex-m4")
	app.Name = "app"
	app.Accesses = []sim.DataAccess{{PC: 0x208, Addr: 0x20000104, Write: true}}
	m33, _ := sim.NewConfig("cortex-m33")
	m33.Name = "core1"
	m33.HaltLatency = 2
	want.Cores = []sim.Config{app, m33}

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", `[[core]`},
		{"no cores", `[debug]`},
		{"unknown key", "[[core]]\nhalt_delay = 3"},
		{"unknown preset", "[[core]]\npreset = \"cortex-a9\""},
		{"duplicate", "[[core]]\nname = \"a\"\n[[core]]\nname = \"a\""},
		{"bad masking", "[debug]\nisr_masking = \"sometimes\"\n[[core]]"},
		{"bad retries", "[debug]\npoll_retries = 0\n[[core]]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeConfig(tt.data, "cortex-m4"); err == nil {
				t.Errorf("decodeConfig succeeded")
			}
		})
	}
}

func TestRun(t *testing.T) {
	cfgPath := writeConfig(t, testConfig)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "identify",
			args: nil,
			want: []string{
				"core0: Cortex-M4 r0p1 (ARMv7-M, FPv4)",
				"fpb: rev 0, 6 code, 2 literal",
				"dwt: v7, 4 comparators, 4 available",
			},
		},
		{
			name: "identify config",
			args: []string{"-c", cfgPath, "identify"},
			want: []string{
				"app: Cortex-M4",
				"core1: Cortex-M33 r0p0 (ARMv8-M, FPv5, security extension)",
				"dwt: v8.0",
			},
		},
		{
			name: "halt",
			args: []string{"halt"},
			want: []string{"core0: halted (halt) at 0x00000202"},
		},
		{
			name: "step",
			args: []string{"step", "-n", "2"},
			want: []string{"halted (halt) at 0x00000204\n", "halted (halt) at 0x00000206\n"},
		},
		{
			name: "reset",
			args: []string{"reset"},
			want: []string{"core0: halted (vector-catch) at 0x00000200"},
		},
		{
			name: "break",
			args: []string{"break", "0x220"},
			want: []string{"core0: halted (breakpoint) at 0x00000220"},
		},
		{
			name: "break rev1",
			args: []string{"--preset", "cortex-m7", "break", "0x210"},
			want: []string{"core0: halted (breakpoint) at 0x00000210"},
		},
		{
			name: "watch",
			args: []string{"-c", cfgPath, "watch", "0x20000104", "--access", "w"},
			want: []string{"app: halted (watchpoint) at 0x0000020a, watchpoint 0"},
		},
		{
			name: "resume",
			args: []string{"resume"},
			want: []string{"core0: Running"},
		},
		{
			name: "status secure",
			args: []string{"-c", cfgPath, "--core", "core1", "--secure", "status"},
			want: []string{"core1: Running"},
		},
		{
			name: "profile",
			args: []string{"profile", "--samples", "4"},
			want: []string{"core0: 4 samples"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runArgs(t, tt.args...)
			if err != nil {
				t.Fatal(err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output does not contain %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestRunJSON(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"identify"}, []string{`"name":"Cortex-M4"`, `"fpv4":true`, `"errata":[]`}},
		{[]string{"--preset", "cortex-m7", "identify"}, []string{`"errata":["maskints","halt-address"]`}},
		{[]string{"halt"}, []string{`"causes":"halt"`, `"pc":"0x00000202"`, `"fault":null`}},
		{[]string{"step"}, []string{`"masking_unreliable":false`, `"pc":"0x00000204"`}},
		{[]string{"status"}, []string{`"state":"Running"`, `"lockup":false`}},
	}
	for _, tt := range tests {
		out, err := runArgs(t, append(tt.args, "--json")...)
		if err != nil {
			t.Fatalf("%q: %v", tt.args, err)
		}
		if !jx.Valid([]byte(out)) {
			t.Errorf("%q: invalid JSON: %s", tt.args, out)
		}
		for _, want := range tt.want {
			if !strings.Contains(out, want) {
				t.Errorf("%q: output does not contain %s:\n%s", tt.args, want, out)
			}
		}
	}
}

func TestRunProfileJSON(t *testing.T) {
	out, err := runArgs(t, "profile", "--samples", "8", "--duration", time.Second.String(), "--json")
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(out, `"0x`); n != 8 {
		t.Errorf("got %d samples: %s", n, out)
	}
}

func TestRunErrors(t *testing.T) {
	cfgPath := writeConfig(t, testConfig)

	if _, err := runArgs(t, "break", "0x20000000"); !errors.Is(err, cortexm.ErrInvalidRequest) {
		t.Errorf("breakpoint outside the code region: %v, want ErrInvalidRequest", err)
	}
	if _, err := runArgs(t, "watch", "0x20000102", "--length", "4"); !errors.Is(err, cortexm.ErrInvalidRequest) {
		t.Errorf("unaligned watchpoint: %v, want ErrInvalidRequest", err)
	}
	if _, err := runArgs(t, "--secure", "halt"); err == nil {
		t.Errorf("--secure on a core without security extension succeeded")
	}
	if _, err := runArgs(t, "-c", cfgPath, "--core", "nope", "halt"); err == nil {
		t.Errorf("unknown core succeeded")
	}
	if _, err := runArgs(t, "profile", "--samples", "-1"); !errors.Is(err, cortexm.ErrInvalidRequest) {
		t.Errorf("negative sample count: %v, want ErrInvalidRequest", err)
	}
	if _, err := runArgs(t, "watch", "0x20000100", "--polls", "5"); err == nil {
		t.Errorf("watch without any data access succeeded")
	}
}

func TestPrintVersion(t *testing.T) {
	var buf bytes.Buffer
	printVersion(&buf)
	if !strings.HasPrefix(buf.String(), "armdbg ") {
		t.Errorf("version = %q", buf.String())
	}
}
