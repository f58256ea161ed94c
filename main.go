package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	configPath string
	debugMode  bool
	plainMode  bool

	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "attendo",
	Short: "Log into Personio and open the attendance page",
	Long: `attendo opens your Personio portal in Chrome, fills the login form if it
shows up, waits for you to enter the one-time token, and clicks through
to the attendance page.

Settings are read from config.ini, a .env file and ATTENDO_* variables.

to get debug info use:  attendo --debug
track logged data with: tail -f /tmp/attendo_debug.log`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// only the UI needs the terminal to itself
		logCloser = logInit(debugMode, plainMode || cmd != cmd.Root())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
	RunE: runAttendance,
}

var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Show the report of the latest run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := readLatestReport()
		if err != nil {
			return fmt.Errorf("no previous run found: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), renderReport(report))
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and locate the browser",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath, cmd.Flags())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, " Portal:       %s\n", cfg.PortalURL())
		fmt.Fprintf(out, " Credentials:  %v\n", cfg.HasCredentials())
		fmt.Fprintf(out, " Profile:      %s\n", valueOr(cfg.Browser.ProfilePath, "(temporary)"))
		fmt.Fprintf(out, " Step wait:    %s\n", cfg.Run.WaitTimeout)
		fmt.Fprintf(out, " Token wait:   %s\n", valueOr(durationOrEmpty(cfg.Run.TokenTimeout), "forever"))

		execPath, source, err := locateBrowser(cfg.Browser)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, " Browser:      %s (%s)\n", execPath, source)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "attendo %s\n", localVersion())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (default config.ini)")
	pf.BoolVar(&debugMode, "debug", false, "log at debug level")

	f := rootCmd.Flags()
	f.BoolVar(&plainMode, "plain", false, "log to the terminal instead of showing the UI")
	f.Bool("headless", false, "run the browser without a window")
	f.Bool("keep-open", false, "keep the browser open on the attendance page until you quit")
	f.Bool("token-prompt", false, "type the one-time token in the terminal instead of the browser")
	f.Duration("wait", 5*time.Second, "how long each step waits for its element")
	f.String("dump-dir", "", "save page HTML (and a screenshot on failure) to this directory")

	rootCmd.Version = localVersion()
	rootCmd.AddCommand(lastCmd, checkCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAttendance(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	slog.SetDefault(slog.Default().With("run", shortID(runID)))
	slog.Info("Configuration loaded", "config", cfg)

	execPath, err := resolveChromium(cfg.Browser)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	browserCtx, closeBrowser, err := newChromeContext(ctx, cfg.Browser, execPath)
	if err != nil {
		return err
	}
	defer closeBrowser()

	runner := &Runner{Page: chromePage{}, Config: cfg, RunID: runID}

	var report *Report
	if plainMode {
		report, err = runPlain(browserCtx, runner, cmd.InOrStdin(), cmd.OutOrStdout())
	} else {
		report, err = runUI(browserCtx, runner)
	}
	if report != nil {
		if _, serr := saveReport(report); serr != nil {
			slog.Warn("Failed to save report", "error", serr)
		}
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
		return nil
	}
	return err
}

// runPlain runs with the log on stderr and the report on out
func runPlain(ctx context.Context, runner *Runner, in io.Reader, out io.Writer) (*Report, error) {
	if runner.Config.Run.TokenPrompt {
		tokens := make(chan string, 1)
		runner.Tokens = tokens
		runner.Notify = func(ev Event) {
			if ev.Stage == StageToken && ev.Status == StatusWaiting {
				fmt.Fprint(out, "Type the token and press Enter: ")
			}
		}
		// blocks on stdin until a line arrives or the process exits
		go readTokens(in, tokens)
	}

	report, err := runner.Run(ctx)
	fmt.Fprint(out, renderReport(report))

	if err == nil && runner.Config.Browser.KeepOpen {
		fmt.Fprintln(out, "Browser kept open, press Ctrl+C to close it.")
		<-ctx.Done()
	}
	return report, err
}

func readTokens(in io.Reader, tokens chan<- string) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if token := strings.TrimSpace(scanner.Text()); token != "" {
			select {
			case tokens <- token:
			default:
			}
		}
	}
}

// runUI runs with the bubbletea UI on the terminal, the run itself goes
// in the background and reports to the UI through Program.Send
func runUI(ctx context.Context, runner *Runner) (*Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var tokens chan string
	if runner.Config.Run.TokenPrompt {
		tokens = make(chan string, 1)
		runner.Tokens = tokens
	}

	p := tea.NewProgram(newModel(runner.Config.PortalURL(), tokens, cancel, runner.Config.Browser.KeepOpen))
	// Send waits for the UI loop to take the message, and returns at
	// once after the program has exited
	runner.Notify = func(ev Event) {
		p.Send(stageMsg(ev))
	}

	type result struct {
		report *Report
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := runner.Run(ctx)
		p.Send(runDoneMsg{report: report, err: err})
		done <- result{report: report, err: err}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("failed to run UI: %w", err)
	}
	// quitting the UI ends the run
	cancel()
	res := <-done
	return res.report, res.err
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func durationOrEmpty(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}
