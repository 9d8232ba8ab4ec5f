package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/cognicore/simscore/internal/app"
	"github.com/cognicore/simscore/internal/logging"
	"github.com/cognicore/simscore/pkg/simscore"
	"github.com/cognicore/simscore/pkg/simscore/config"
)

type request struct {
	assignment string
	student    string
	file       string
	locator    string
	format     string
	importLoc  string
	list       bool
	report     string
	rescore    string
}

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (optional)")
		dbPath     = flag.String("db", "", "SQLite database path (required)")
		assignment = flag.String("assignment", "", "Assignment id")
		student    = flag.String("student", "", "Student id")
		file       = flag.String("file", "", "Document to score")
		locator    = flag.String("locator", "", "Document locator to score (http, https, file, s3)")
		format     = flag.String("format", "", "Format hint: MIME type or extension")
		importLoc  = flag.String("import", "", "Add a prior submission by locator without scoring it")
		list       = flag.Bool("list", false, "List the assignment's submissions")
		report     = flag.String("report", "", "Show the stored report of a submission")
		rescore    = flag.String("rescore", "", "Score a registered submission again")
	)
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("--db required")
	}

	ctx := context.Background()

	checker, cleanup, err := buildChecker(ctx, *configPath, *dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	req := request{
		assignment: *assignment,
		student:    *student,
		file:       *file,
		locator:    *locator,
		format:     *format,
		importLoc:  *importLoc,
		list:       *list,
		report:     *report,
		rescore:    *rescore,
	}
	if err := run(ctx, checker, req, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// buildChecker opens a Checker over the SQLite database at dbPath. Other
// settings come from the optional config file and the environment.
func buildChecker(ctx context.Context, configPath, dbPath string) (*simscore.Checker, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.Store.Driver = config.DriverSQLite
	cfg.Store.DSN = dbPath
	// The operator runs the CLI on their own machine, so local paths are
	// allowed unless a root is configured.
	if cfg.Fetch.FileRoot == "" {
		cfg.Fetch.FileRoot = "/"
	}

	return app.Build(ctx, cfg, logging.New(cfg.LogLevel))
}

func run(ctx context.Context, checker *simscore.Checker, req request, w io.Writer) error {
	switch {
	case req.report != "":
		st, err := checker.Report(ctx, req.report)
		if err != nil {
			return fmt.Errorf("report: %w", err)
		}
		return printJSON(w, st)

	case req.rescore != "":
		res, err := checker.Rescore(ctx, req.rescore)
		if err != nil {
			return fmt.Errorf("rescore: %w", err)
		}
		return printJSON(w, res)

	case req.list:
		if req.assignment == "" {
			return fmt.Errorf("--assignment required with --list")
		}
		return listSubmissions(ctx, checker, req.assignment, w)

	case req.importLoc != "":
		sub, err := checker.Import(ctx, simscore.ImportRequest{
			AssignmentID: req.assignment,
			StudentID:    req.student,
			Locator:      req.importLoc,
			Format:       req.format,
		})
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}
		fmt.Fprintf(w, "imported %s (seq %d)\n", sub.ID, sub.Seq)
		return nil
	}

	if req.file == "" && req.locator == "" {
		return fmt.Errorf("one of --file, --locator, --import, --list, --report or --rescore required")
	}

	submit := simscore.SubmitRequest{
		AssignmentID: req.assignment,
		StudentID:    req.student,
		Format:       req.format,
		Locator:      req.locator,
	}
	if req.file != "" {
		data, err := os.ReadFile(req.file)
		if err != nil {
			return fmt.Errorf("read %s: %w", req.file, err)
		}
		submit.Document = data
		if submit.Format == "" {
			submit.Format = req.file
		}
	}

	res, err := checker.ScoreSubmission(ctx, submit)
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}
	return printJSON(w, res)
}

func listSubmissions(ctx context.Context, checker *simscore.Checker, assignment string, w io.Writer) error {
	subs, err := checker.Submissions(ctx, assignment)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	if len(subs) == 0 {
		fmt.Fprintln(w, "No submissions.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tID\tSTUDENT\tTOKENS\tSUBMITTED")
	for _, s := range subs {
		tokens := "-"
		if s.Tokens != nil {
			tokens = humanize.Comma(int64(len(s.Tokens)))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.Seq, s.ID, s.StudentID, tokens, humanize.Time(s.CreatedAt))
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
