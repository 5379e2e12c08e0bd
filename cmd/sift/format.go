package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/jward/sift"
	"github.com/jward/sift/internal/cache"
	"github.com/jward/sift/internal/config"
	"github.com/jward/sift/internal/finder"
	"github.com/jward/sift/internal/report"
)

const snippetWidth = 72

// JSONResult is the JSON shape of a run.
type JSONResult struct {
	RunID     string         `json:"run_id"`
	Files     JSONFiles      `json:"files"`
	Summaries []JSONSummary  `json:"summaries"`
	Report    *report.Report `json:"report"`
}

// JSONFiles mirrors sift.FileStats.
type JSONFiles struct {
	Provided int `json:"provided"`
	Done     int `json:"done"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// JSONSummary mirrors sift.Summary with errors flattened to strings.
type JSONSummary struct {
	Finder      string   `json:"finder"`
	Expected    int64    `json:"expected"`
	Finished    int64    `json:"finished"`
	NotFinished int64    `json:"not_finished"`
	Found       int      `json:"found"`
	Cached      int      `json:"cached"`
	Errors      []string `json:"errors,omitempty"`
}

// JSONCacheEntry is the JSON shape of one `cache list` row.
type JSONCacheEntry struct {
	Project     string `json:"project"`
	Finder      string `json:"finder"`
	Fingerprint string `json:"fingerprint"`
	Corpus      string `json:"corpus,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	WrittenAt   string `json:"written_at"`
	Findings    int    `json:"findings"`
}

func writeResult(w io.Writer, format string, res *sift.Result) error {
	switch format {
	case config.FormatJSON:
		return writeJSON(w, toJSONResult(res))
	case config.FormatSARIF:
		return writeSARIF(w, res)
	default:
		return writeText(w, res)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func toJSONResult(res *sift.Result) JSONResult {
	out := JSONResult{
		RunID: res.RunID,
		Files: JSONFiles{
			Provided: res.Files.Provided,
			Done:     res.Files.Done,
			Failed:   res.Files.Failed,
			Skipped:  res.Files.Skipped,
		},
		Summaries: make([]JSONSummary, 0, len(res.Summaries)),
		Report:    res.Report,
	}
	for _, s := range res.Summaries {
		js := JSONSummary{
			Finder:      s.Finder,
			Expected:    s.Expected,
			Finished:    s.Finished,
			NotFinished: s.NotFinished,
			Found:       s.Found,
			Cached:      s.Cached,
		}
		for _, err := range s.Errors {
			js.Errors = append(js.Errors, err.Error())
		}
		out.Summaries = append(out.Summaries, js)
	}
	return out
}

// writeText prints a findings table followed by a per-finder summary.
func writeText(w io.Writer, res *sift.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if res.Report.Len() > 0 {
		fmt.Fprintln(tw, "PROJECT\tFINDER\tLOCATION\tSNIPPET")
		err := res.Report.Walk(func(path []string, leaf report.Leaf) error {
			project, name := splitReportPath(path)
			for _, f := range leaf {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", project, name, f.Location(), oneLine(f.Snippet))
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(tw)
	}

	fmt.Fprintln(tw, "FINDER\tEXPECTED\tFINISHED\tNOT FINISHED\tFOUND\tCACHED\tERRORS")
	for _, s := range res.Summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			s.Finder, s.Expected, s.Finished, s.NotFinished, s.Found, s.Cached, len(s.Errors))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d files: %d done, %d failed, %d skipped (run %s)\n",
		res.Files.Provided, res.Files.Done, res.Files.Failed, res.Files.Skipped, res.RunID)
	for _, s := range res.Summaries {
		for _, err := range s.Errors {
			fmt.Fprintf(w, "%s: %v\n", s.Finder, err)
		}
	}
	return nil
}

// writeSARIF renders findings as a SARIF 2.1.0 log with one rule per finder.
func writeSARIF(w io.Writer, res *sift.Result) error {
	log, err := sarif.New(sarif.Version210)
	if err != nil {
		return err
	}
	run := sarif.NewRunWithInformationURI("sift", "https://github.com/jward/sift")

	rules := make(map[string]bool)
	err = res.Report.Walk(func(path []string, leaf report.Leaf) error {
		project, name := splitReportPath(path)
		if !rules[name] {
			run.AddRule(name).WithDescription(fmt.Sprintf("Matches reported by the %s finder", name))
			rules[name] = true
		}
		for _, f := range leaf {
			run.AddResult(sarifResult(project, name, f))
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.AddRun(run)
	return log.PrettyWrite(w)
}

func sarifResult(project, name string, f finder.Finding) *sarif.Result {
	end := f.EndLine
	if end < f.StartLine {
		end = f.StartLine
	}
	region := sarif.NewRegion().WithStartLine(f.StartLine).WithEndLine(end)
	loc := sarif.NewLocation().WithPhysicalLocation(
		sarif.NewPhysicalLocation().
			WithArtifactLocation(sarif.NewArtifactLocation().WithUri(f.Path)).
			WithRegion(region),
	)

	msg := oneLine(f.Snippet)
	if msg == "" {
		msg = name
	}
	return sarif.NewRuleResult(name).
		WithMessage(sarif.NewTextMessage(fmt.Sprintf("[%s] %s", project, msg))).
		WithLevel("warning").
		WithLocations([]*sarif.Location{loc})
}

// writeCacheEntries prints `cache list` output.
func writeCacheEntries(w io.Writer, format string, entries []cache.Listing) error {
	if format == config.FormatJSON {
		out := make([]JSONCacheEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, JSONCacheEntry{
				Project:     e.Project,
				Finder:      e.Finder,
				Fingerprint: e.Fingerprint,
				Corpus:      e.Corpus,
				RunID:       e.RunID,
				WrittenAt:   e.WrittenAt.UTC().Format("2006-01-02T15:04:05Z"),
				Findings:    e.Findings,
			})
		}
		return writeJSON(w, out)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROJECT\tFINDER\tFINGERPRINT\tFINDINGS\tWRITTEN")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			e.Project, e.Finder, shortHash(e.Fingerprint), e.Findings, e.WrittenAt.Local().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

// writeFactories prints `finders` output.
func writeFactories(w io.Writer, format string, facs []finder.Factory) error {
	if format == config.FormatJSON {
		ids := make([]finder.Identity, 0, len(facs))
		for _, f := range facs {
			ids = append(ids, f.Identity())
		}
		return writeJSON(w, ids)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFINGERPRINT")
	for _, f := range facs {
		id := f.Identity()
		fmt.Fprintf(tw, "%s\t%s\n", id.Name, shortHash(id.Fingerprint))
	}
	return tw.Flush()
}

// splitReportPath splits a [project, finder] report path. Project names may
// themselves contain slashes, so everything before the last segment is the
// project.
func splitReportPath(path []string) (project, name string) {
	if len(path) == 0 {
		return "", ""
	}
	return strings.Join(path[:len(path)-1], "/"), path[len(path)-1]
}

// oneLine collapses whitespace and truncates long snippets.
func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > snippetWidth {
		return string(r[:snippetWidth-3]) + "..."
	}
	return s
}

func shortHash(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
