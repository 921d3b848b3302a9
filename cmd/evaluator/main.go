// cmd/evaluator/main.go
//
// Entry point for the report evaluator client.
//
// Flow:
// 1. Create (or reuse) .evaluator/ in the working directory
// 2. Load config, open the log and the session store
// 3. Run the TUI, or one of the one-shot subcommands

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/kingrea/report-evaluator/internal/api"
	"github.com/kingrea/report-evaluator/internal/config"
	"github.com/kingrea/report-evaluator/internal/form"
	"github.com/kingrea/report-evaluator/internal/logbook"
	"github.com/kingrea/report-evaluator/internal/session"
	"github.com/kingrea/report-evaluator/internal/tui"
	"github.com/kingrea/report-evaluator/internal/workflow"
)

const usage = `Usage: evaluator [command] [flags]

Commands:
  tui                                   interactive client (default)
  login -username U                     log in; the password is prompted
  logout                                forget the stored token
  whoami                                show the logged-in user
  history -matriculation N              evaluations of one student
  mine                                  evaluations you created
  stats                                 per report type statistics
  report -id N -format html|pdf [-out]  download a report
  types                                 report types and their rubrics
`

var headerStyle = lipgloss.NewStyle().Bold(true)

// env is what every command needs.
type env struct {
	cfg     *config.Config
	logbook *logbook.Logbook
	store   *session.Store
	client  *api.Client
}

func main() {
	command := "tui"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}
	if command == "help" || command == "-h" || command == "--help" {
		fmt.Print(usage)
		return
	}

	e, err := setup()
	if err != nil {
		die("%v", err)
	}

	if command == "tui" {
		err = runTUI(e)
	} else {
		err = runCommand(e, command, args)
	}
	if err != nil {
		e.logbook.Error("%s: %v", command, err)
	}
	e.close()
	if err != nil {
		die("%v", err)
	}
}

func setup() (*env, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determine working directory: %w", err)
	}
	if err := config.InitClientDir(cwd); err != nil {
		return nil, fmt.Errorf("init %s: %w", config.ClientDir, err)
	}
	cfg, err := config.NewConfig(cwd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logCfg := cfg.Client.Log
	lb, err := logbook.New(cfg.LogFile(),
		logbook.WithLevel(logCfg.Level),
		logbook.WithRotation(logCfg.MaxSizeMB, logCfg.MaxBackups, logCfg.MaxAgeDays))
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	store, err := session.Open(cfg.StatePath())
	if err != nil {
		_ = lb.Close()
		return nil, fmt.Errorf("open session store: %w", err)
	}
	client := api.New(cfg.BaseURL(), store,
		api.WithLogger(lb),
		api.WithUserAgent(cfg.UserAgent()))
	return &env{cfg: cfg, logbook: lb, store: store, client: client}, nil
}

func (e *env) close() {
	_ = e.store.Close()
	_ = e.logbook.Close()
}

// dropExpiredToken forgets a token whose exp claim has passed, so the user
// lands on the login screen instead of a failing request.
func (e *env) dropExpiredToken() {
	token := e.store.Token()
	if token == "" || !api.TokenExpired(token, time.Now()) {
		return
	}
	e.logbook.Info("Stored token expired · clearing credentials")
	if err := e.store.ClearCredentials(); err != nil {
		e.logbook.Warn("Clear credentials: %v", err)
	}
}

func runTUI(e *env) error {
	if err := e.store.BeginSession(); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	e.dropExpiredToken()
	app, err := tui.NewApp(e.cfg, e.client, e.store, tui.WithLogbook(e.logbook))
	if err != nil {
		return err
	}
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}

func runCommand(e *env, command string, args []string) error {
	e.dropExpiredToken()
	ctx := context.Background()

	switch command {
	case "login":
		return cmdLogin(ctx, e, args)
	case "logout":
		if err := e.client.Logout(); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	case "whoami":
		return cmdWhoami(ctx, e)
	case "history":
		return cmdHistory(ctx, e, args)
	case "mine":
		evaluations, err := e.client.MyEvaluations(ctx)
		if err != nil {
			return err
		}
		printEvaluations(evaluations)
		return nil
	case "stats":
		return cmdStats(ctx, e)
	case "report":
		return cmdReport(ctx, e, args)
	case "types":
		return cmdTypes(ctx, e)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func cmdLogin(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("username", "", "username or email")
	_ = fs.Parse(args)
	if strings.TrimSpace(*username) == "" {
		return fmt.Errorf("-username is required")
	}
	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	user, err := e.client.Login(ctx, *username, string(password))
	if err != nil {
		return err
	}
	e.logbook.Info("Logged in as %s", user.Username)
	fmt.Printf("Logged in as %s.\n", user.Username)
	return nil
}

func cmdWhoami(ctx context.Context, e *env) error {
	if e.store.Token() == "" {
		return fmt.Errorf("not logged in")
	}
	user, err := e.client.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s>", user.Username, user.Email)
	if user.IsAdmin {
		fmt.Print(" (admin)")
	}
	fmt.Println()
	if claims, err := api.InspectToken(e.store.Token()); err == nil && !claims.ExpiresAt.IsZero() {
		fmt.Printf("Token valid until %s\n", claims.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

func cmdHistory(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	matriculation := fs.String("matriculation", "", "seven-digit matriculation number")
	_ = fs.Parse(args)
	number := form.SanitizeMatriculation(*matriculation)
	if !form.ValidMatriculation(number) {
		return fmt.Errorf("matriculation number must be exactly %d digits", form.MatriculationLength)
	}
	student, err := e.client.FindStudentByMatriculation(ctx, number)
	if err != nil {
		return err
	}
	evaluations, err := e.client.StudentEvaluations(ctx, student.ID)
	if err != nil {
		return err
	}
	fmt.Println(headerStyle.Render(fmt.Sprintf("%s (%s)", student.FullName(), student.MatriculationNumber)))
	printEvaluations(evaluations)
	return nil
}

func printEvaluations(evaluations []api.Evaluation) {
	if len(evaluations) == 0 {
		fmt.Println("No evaluations.")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Date", "Student", "Report type", "Title", "Method", "Score")
	for _, ev := range evaluations {
		t.Row(
			fmt.Sprint(ev.ID),
			ev.CreatedAt.Local().Format("2006-01-02"),
			ev.Student.FullName(),
			ev.ReportType.Name,
			ev.ReportTitle,
			ev.EvaluationMethod,
			fmt.Sprintf("%.1f/%.1f (%s%%)", ev.TotalScore, ev.MaxPossibleScore,
				workflow.FormatPercentage(ev.TotalScore, ev.MaxPossibleScore)),
		)
	}
	fmt.Println(t.Render())
}

func cmdStats(ctx context.Context, e *env) error {
	stats, err := e.client.Statistics(ctx)
	if err != nil {
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Report type", "Evaluations", "Average", "Average %", "Min", "Max")
	for _, s := range stats {
		t.Row(
			s.ReportTypeName,
			fmt.Sprint(s.TotalEvaluations),
			fmt.Sprintf("%.2f / %.0f", s.AverageScore, s.MaxPossibleScore),
			fmt.Sprintf("%.2f", s.AveragePercentage),
			fmt.Sprintf("%.1f", s.MinScore),
			fmt.Sprintf("%.1f", s.MaxScore),
		)
	}
	fmt.Println(t.Render())
	return nil
}

func cmdReport(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	id := fs.Int("id", 0, "evaluation id")
	format := fs.String("format", api.FormatPDF, "html or pdf")
	out := fs.String("out", "", "output file (defaults to .evaluator/reports/evaluation-<id>.<format>)")
	_ = fs.Parse(args)
	if *id <= 0 {
		return fmt.Errorf("-id is required")
	}
	data, err := e.client.DownloadReport(ctx, *id, *format)
	if err != nil {
		return fmt.Errorf("Failed to download report: %w", err)
	}
	path := *out
	if path == "" {
		path = filepath.Join(e.cfg.ReportsDir(), fmt.Sprintf("evaluation-%d.%s", *id, *format))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	e.logbook.Info("Report saved to %s", path)
	fmt.Printf("Saved %s\n", path)
	return nil
}

func cmdTypes(ctx context.Context, e *env) error {
	types, err := e.client.ReportTypes(ctx)
	if err != nil {
		return err
	}
	for _, rt := range workflow.OrderReportTypes(types) {
		fmt.Println(headerStyle.Render(fmt.Sprintf("%d. %s", rt.ID, rt.Name)))
		rubrics, err := e.client.Rubrics(ctx, rt.ID)
		if err != nil {
			return err
		}
		for _, r := range rubrics {
			fmt.Printf("   %-40s %5.1f\n", r.SectionName, r.MaxPoints)
		}
	}
	return nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
