// Package manpage generates a roff-formatted man page for ttop.
//
// Options come from the command's flag set and keys from the KeyRegistry,
// so the page follows the code.
//
// Usage:
//
//	ttop man | man -l -
//	ttop man > ~/.local/share/man/man1/ttop.1
package manpage

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"gitlab.com/tinyland/lab/ttop/config"
	"gitlab.com/tinyland/lab/ttop/display/tui"
)

// Info carries the build metadata and the flags to document.
type Info struct {
	Version, Commit, Date string
	// Flags are listed under OPTIONS in order. Hidden flags and help are
	// skipped.
	Flags []*pflag.FlagSet
	// Month is the header date; zero uses the current month.
	Month time.Time
}

// Generate produces a complete man(1) page.
func Generate(info Info) string {
	var b strings.Builder

	writeHeader(&b, info)
	writeName(&b)
	writeSynopsis(&b)
	writeDescription(&b)
	writeOptions(&b, info.Flags)
	writeCommands(&b)
	writeKeybindings(&b)
	writeConfiguration(&b)
	writeFiles(&b)
	writeExamples(&b)
	writeEnvironment(&b)
	writeExitStatus(&b)
	writeSeeAlso(&b)
	writeFooter(&b, info)

	return b.String()
}

// roffEscape escapes special roff characters in a string.
func roffEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `-`, `\-`)
	s = strings.ReplaceAll(s, `.`, `\&.`)
	return s
}

func writeHeader(b *strings.Builder, info Info) {
	month := info.Month
	if month.IsZero() {
		month = time.Now()
	}
	fmt.Fprintf(b, ".TH TTOP 1 \"%s\" \"ttop %s\" \"User Commands\"\n", month.Format("January 2006"), info.Version)
}

func writeName(b *strings.Builder) {
	b.WriteString(`.SH NAME
ttop \- terminal system monitor
`)
}

func writeSynopsis(b *strings.Builder) {
	b.WriteString(`.SH SYNOPSIS
.B ttop
[\fIOPTIONS\fR]
.br
.B ttop
\fIkeys\fR | \fIsnapshot\fR | \fIman\fR | \fIversion\fR [\fIOPTIONS\fR]
`)
}

func writeDescription(b *strings.Builder) {
	b.WriteString(`.SH DESCRIPTION
.B ttop
draws a live dashboard of CPU, memory, disk, network, process, GPU, sensor,
connection and container panels. Metrics are collected once per refresh
interval while the screen is redrawn 20 times per second.
.PP
A collector that fails is marked in the footer and retried on the next
refresh; the remaining panels keep updating. Collectors that cannot run on
this host are disabled once.
.PP
With \fB\-\-deterministic\fR no OS state is read, which makes frames
byte-identical across runs.
`)
}

func writeOptions(b *strings.Builder, sets []*pflag.FlagSet) {
	b.WriteString(".SH OPTIONS\n")
	seen := make(map[string]bool)
	for _, fs := range sets {
		if fs == nil {
			continue
		}
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Hidden || f.Name == "help" || seen[f.Name] {
				return
			}
			seen[f.Name] = true
			b.WriteString(".TP\n")
			arg, usage := pflag.UnquoteUsage(f)
			if arg != "" {
				fmt.Fprintf(b, ".BR \\-\\-%s \" \\fI%s\\fR\"\n", roffEscape(f.Name), arg)
			} else {
				fmt.Fprintf(b, ".B \\-\\-%s\n", roffEscape(f.Name))
			}
			b.WriteString(roffEscape(usage))
			if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
				fmt.Fprintf(b, " Default: %s.", roffEscape(f.DefValue))
			}
			b.WriteString("\n")
		})
	}
}

func writeCommands(b *strings.Builder) {
	b.WriteString(`.SH COMMANDS
.TP
.B keys
Print the key bindings as a table or JSON.
.TP
.B snapshot
Collect twice and print one dashboard frame, or the metric snapshot with
\fB\-\-json\fR. \fB\-\-png\fR also writes the history graphs to an image.
.TP
.B man
Print this page.
.TP
.B version
Print the version, commit and build date.
`)
}

func writeKeybindings(b *strings.Builder) {
	b.WriteString(".SH KEYBINDINGS\n")
	registry := tui.DefaultRegistry()
	for _, cat := range tui.Categories() {
		entries := registry.ByCategory(cat)
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(b, ".SS %s\n", strings.ToUpper(string(cat[:1]))+string(cat[1:]))
		for _, e := range entries {
			fmt.Fprintf(b, ".TP\n.B %s\n%s\n", roffEscape(strings.Join(e.Binding.Keys(), ", ")), e.Binding.Help().Desc)
		}
	}
}

func writeConfiguration(b *strings.Builder) {
	def := config.DefaultConfig()
	fmt.Fprintf(b, `.SH CONFIGURATION
Configuration is read from YAML. Unknown keys are rejected and every error
names the offending line. Command line flags win over the file.
.TP
.B refresh_ms
Collect interval, at least %d. Default: %d.
.TP
.B history_secs
Seconds of history kept for graphs, %d to %d. Default: %d.
.TP
.B panels.\fINAME\fR
Initial visibility of cpu, memory, disk, network, process, gpu, sensors,
connections and containers. Default: true.
.TP
.B theme.name
One of %s. Default: %s.
.TP
.B theme.colors.\fINAME\fR
#rgb or #rrggbb override for primary, secondary, success, warning, danger,
muted or background.
.TP
.B process.sort
pid, name, cpu, mem, state, user or threads. Default: %s.
.TP
.B process.reverse
Flip the sort direction.
.TP
.B network.include_loopback
Show loopback interfaces.
.TP
.B storage.roots
Directories scanned in the background for the disk treemap. Empty disables
the scan.
.TP
.B storage.depth
Scan depth, 0 to %d. Default: %d.
.TP
.B log_file
Log destination. Logs are discarded when empty.
.TP
.B metrics_addr
Serve Prometheus metrics, the JSON snapshot and /health on this address.
`,
		config.MinRefreshMs, def.RefreshMs,
		config.MinHistorySecs, config.MaxHistorySecs, def.HistorySecs,
		strings.Join(tui.ThemeNames(), ", "), def.Theme.Name,
		def.Process.Sort,
		config.MaxStorageDepth, def.Storage.Depth,
	)
}

func writeFiles(b *strings.Builder) {
	b.WriteString(`.SH FILES
.TP
.I ~/.config/trueno\-monitor/config.yaml
Default configuration file.
.TP
.I ttop\-trace.json
Default span output for \fB\-\-trace\fR.
`)
}

func writeExamples(b *strings.Builder) {
	b.WriteString(`.SH EXAMPLES
Refresh twice per second and show frame times:
.PP
.nf
ttop \-\-refresh 500 \-\-show\-fps
.fi
.PP
Expose metrics to Prometheus while the dashboard runs:
.PP
.nf
ttop \-\-metrics\-addr 127.0.0.1:9090
curl \-s localhost:9090/metrics | grep ttop_cpu
.fi
.PP
Write a frame and the history graphs without a terminal:
.PP
.nf
ttop snapshot \-\-width 160 \-\-height 48 \-\-png history.png > frame.txt
.fi
`)
}

func writeEnvironment(b *strings.Builder) {
	b.WriteString(`.SH ENVIRONMENT
.TP
.B NO_COLOR
Disable color when set to any value.
.TP
.B TERM
A value of "dumb" disables color.
`)
}

func writeExitStatus(b *strings.Builder) {
	b.WriteString(".SH EXIT STATUS\n")
	b.WriteString(".TP\n.B 0\nSuccess, including quitting from the dashboard.\n")
	b.WriteString(".TP\n.B 1\nInvalid configuration or a fatal runtime error, reported on one line of standard error.\n")
}

func writeSeeAlso(b *strings.Builder) {
	b.WriteString(`.SH SEE ALSO
.BR top (1),
.BR htop (1),
.BR proc (5)
`)
}

func writeFooter(b *strings.Builder, info Info) {
	fmt.Fprintf(b, ".SH VERSION\n%s (%s) built %s\n", info.Version, info.Commit, info.Date)
}
