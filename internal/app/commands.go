package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/five82/labbcat"
	"github.com/five82/labbcat/internal/state"
	"github.com/five82/labbcat/internal/ui"
	"github.com/five82/labbcat/model"
	"github.com/five82/labbcat/transport"
)

// errUsage marks argument errors; Run prints usage for them.
var errUsage = errors.New("usage")

// IsUsage reports whether err came from bad command-line arguments.
func IsUsage(err error) bool {
	return errors.Is(err, errUsage)
}

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errUsage}, args...)...)
}

// env is what every command runs against.
type env struct {
	ctx         context.Context
	session     *labbcat.Session
	logger      *zap.Logger
	out         io.Writer
	downloadDir string
	pageLength  int
	themeName   string
	prefsPath   string
	// watch runs the TUI; tests replace it.
	watch func(ui.Options) error
}

type command struct {
	usage   string
	summary string
	run     func(e *env, args []string) error
}

func commandTable() map[string]command {
	return map[string]command{
		"version":   {"version", "print the server URL and version", runVersion},
		"id":        {"id", "print the server's store ID", runID},
		"corpora":   {"corpora", "list corpus IDs", runCorpora},
		"tasks":     {"tasks", "list server tasks", runTasks},
		"status":    {"status <id>", "show one task", runStatus},
		"wait":      {"wait <id> [seconds]", "wait for a task to finish", runWait},
		"cancel":    {"cancel <id>", "cancel a task", runCancel},
		"release":   {"release <id>", "release a finished task", runRelease},
		"result":    {"result <id> [dir]", "download a task's result file", runResult},
		"watch":     {"watch <id>...", "watch tasks in a live view", runWatch},
		"search":    {"search [-main] [-aligned] [-context n] <layer> <regex> [max]", "search and print matches", runSearch},
		"upload":    {"upload [-corpus c] [-type t] [-episode e] [-track s] [-wait] <transcript> [media...]", "upload a new transcript", runUpload},
		"fragments": {"fragments <layer> <regex> <mimeType> [dir]", "search and download match fragments", runFragments},
	}
}

func printUsage(w io.Writer) {
	table := commandTable()
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "usage: labbcat [-config path] [-prefs path] [-verbose] [-batch] <command> [args]")
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%s\n", table[name].usage, table[name].summary)
	}
	_ = tw.Flush()
}

func runVersion(e *env, args []string) error {
	if len(args) != 0 {
		return usageErrorf("version takes no arguments")
	}
	if _, err := e.session.RequiredAuthorization(e.ctx); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s\t%s\n", e.session.URL(), e.session.Version())
	return nil
}

func runID(e *env, args []string) error {
	if len(args) != 0 {
		return usageErrorf("id takes no arguments")
	}
	id, err := e.session.ID(e.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, id)
	return nil
}

func runCorpora(e *env, args []string) error {
	if len(args) != 0 {
		return usageErrorf("corpora takes no arguments")
	}
	ids, err := e.session.CorpusIDs(e.ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(e.out, id)
	}
	return nil
}

func runTasks(e *env, args []string) error {
	if len(args) != 0 {
		return usageErrorf("tasks takes no arguments")
	}
	tasks, err := e.session.Tasks(e.ctx)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA != nil || errB != nil {
			return ids[i] < ids[j]
		}
		return a < b
	})

	list := make([]model.TaskStatus, 0, len(ids))
	for _, id := range ids {
		list = append(list, tasks[id])
	}
	writeTasks(e.out, list)
	return nil
}

func writeTasks(w io.Writer, tasks []model.TaskStatus) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tRUNNING\tPERCENT\tSTATUS")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%d%%\t%s\n", t.ID(), t.ThreadName, t.Running, t.PercentComplete, t.Status)
	}
	_ = tw.Flush()
}

func writeStatus(w io.Writer, t *model.TaskStatus) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", t.ID())
	fmt.Fprintf(tw, "name\t%s\n", t.ThreadName)
	fmt.Fprintf(tw, "running\t%t\n", t.Running)
	fmt.Fprintf(tw, "percent\t%d%%\n", t.PercentComplete)
	fmt.Fprintf(tw, "elapsed\t%s\n", t.Elapsed())
	fmt.Fprintf(tw, "status\t%s\n", t.Status)
	if t.ResultURL != "" {
		fmt.Fprintf(tw, "result\t%s\n", t.ResultURL)
	}
	_ = tw.Flush()
}

func oneID(name string, args []string) (string, error) {
	if len(args) != 1 {
		return "", usageErrorf("%s takes exactly one task id", name)
	}
	return args[0], nil
}

func runStatus(e *env, args []string) error {
	id, err := oneID("status", args)
	if err != nil {
		return err
	}
	status, err := e.session.TaskStatus(e.ctx, id)
	if err != nil {
		return err
	}
	writeStatus(e.out, status)
	return nil
}

func runWait(e *env, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usageErrorf("wait takes a task id and an optional timeout in seconds")
	}
	var timeout time.Duration
	if len(args) == 2 {
		seconds, err := strconv.Atoi(args[1])
		if err != nil || seconds < 0 {
			return usageErrorf("invalid timeout %q", args[1])
		}
		timeout = time.Duration(seconds) * time.Second
	}
	status, err := e.session.WaitForTask(e.ctx, args[0], timeout)
	if err != nil {
		return err
	}
	writeStatus(e.out, status)
	return nil
}

func runCancel(e *env, args []string) error {
	id, err := oneID("cancel", args)
	if err != nil {
		return err
	}
	return e.session.CancelTask(e.ctx, id)
}

func runRelease(e *env, args []string) error {
	id, err := oneID("release", args)
	if err != nil {
		return err
	}
	return e.session.ReleaseTask(e.ctx, id)
}

func runResult(e *env, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usageErrorf("result takes a task id and an optional directory")
	}
	dir := e.downloadDir
	if len(args) == 2 {
		dir = args[1]
	}
	status, err := e.session.TaskStatus(e.ctx, args[0])
	if err != nil {
		return err
	}
	if status.Running {
		return fmt.Errorf("task %s is still running (%d%%)", status.ID(), status.PercentComplete)
	}
	path, err := e.session.TaskResult(e.ctx, status, dir)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, path)
	return nil
}

func runWatch(e *env, args []string) error {
	if len(args) == 0 {
		return usageErrorf("watch takes at least one task id")
	}
	ctx, cancel := context.WithCancel(e.ctx)
	defer cancel()

	store := &state.Store{}
	done := StartPoller(ctx, store, e.session, args, defaultPollInterval, e.logger)

	err := e.watch(ui.Options{
		Context:    ctx,
		Store:      store,
		Cancel:     e.session.CancelTask,
		PollTick:   time.Second,
		ThemeName:  e.themeName,
		PrefsPath:  e.prefsPath,
		PageLength: e.pageLength,
	})
	cancel()
	<-done
	return err
}

// searchFlags parses the flags shared by search and fragments.
func searchFlags(name string, args []string) (labbcat.SearchOptions, int, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	mainOnly := fs.Bool("main", false, "only main-participant matches")
	aligned := fs.Bool("aligned", false, "only aligned matches")
	wordsContext := fs.Int("context", 0, "words of context either side")
	if err := fs.Parse(args); err != nil {
		return labbcat.SearchOptions{}, 0, nil, usageErrorf("%s: %v", name, err)
	}
	opts := labbcat.SearchOptions{MainParticipant: *mainOnly, Aligned: *aligned}
	return opts, *wordsContext, fs.Args(), nil
}

func runSearch(e *env, args []string) error {
	opts, wordsContext, rest, err := searchFlags("search", args)
	if err != nil {
		return err
	}
	if len(rest) < 2 || len(rest) > 3 {
		return usageErrorf("search takes a layer, a regular expression and an optional match limit")
	}
	limit := e.pageLength
	if len(rest) == 3 {
		limit, err = strconv.Atoi(rest[2])
		if err != nil || limit < 0 {
			return usageErrorf("invalid match limit %q", rest[2])
		}
	}

	pattern := model.NewPatternBuilder().AddMatchLayer(rest[0], rest[1]).Build()
	matches, err := e.session.SearchMatches(e.ctx, pattern, opts, wordsContext, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRANSCRIPT\tPARTICIPANT\tSTART\tMATCH")
	for _, m := range matches {
		text := strings.TrimSpace(strings.Join([]string{m.BeforeMatch, "[" + m.Text + "]", m.AfterMatch}, " "))
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%s\n", m.Transcript, m.Participant, m.Line, text)
	}
	return tw.Flush()
}

func runUpload(e *env, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	corpus := fs.String("corpus", "", "corpus to add the transcript to")
	transcriptType := fs.String("type", "", "transcript type")
	episode := fs.String("episode", "", "episode name")
	track := fs.String("track", "", "media track suffix")
	wait := fs.Bool("wait", false, "wait for the ingest task and release it")
	if err := fs.Parse(args); err != nil {
		return usageErrorf("upload: %v", err)
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return usageErrorf("upload takes a transcript path and optional media paths")
	}

	media := make([]*transport.File, 0, len(rest)-1)
	for _, path := range rest[1:] {
		media = append(media, transport.FileFromPath(path))
	}
	taskID, err := e.session.NewTranscript(e.ctx, labbcat.NewTranscriptRequest{
		Transcript:     transport.FileFromPath(rest[0]),
		Media:          media,
		TrackSuffix:    *track,
		TranscriptType: *transcriptType,
		Corpus:         *corpus,
		Episode:        *episode,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, taskID)
	if !*wait || taskID == "" {
		return nil
	}

	status, err := e.session.WaitForTask(e.ctx, taskID, 0)
	if err != nil {
		return err
	}
	writeStatus(e.out, status)
	if status.Running {
		return nil
	}
	return e.session.ReleaseTask(e.ctx, taskID)
}

func runFragments(e *env, args []string) error {
	opts, _, rest, err := searchFlags("fragments", args)
	if err != nil {
		return err
	}
	if len(rest) < 3 || len(rest) > 4 {
		return usageErrorf("fragments takes a layer, a regular expression, a MIME type and an optional directory")
	}
	mimeType := rest[2]
	dir := e.downloadDir
	if len(rest) == 4 {
		dir = rest[3]
	}

	pattern := model.NewPatternBuilder().AddMatchLayer(rest[0], rest[1]).Build()
	matches, err := e.session.SearchMatches(e.ctx, pattern, opts, 0, e.pageLength)
	if err != nil {
		return err
	}

	var paths []string
	if strings.HasPrefix(mimeType, "audio/") {
		paths, err = e.session.SoundFragments(e.ctx, matches, 0, dir)
	} else {
		paths, err = e.session.Fragments(e.ctx, matches, []string{rest[0]}, mimeType, dir)
	}
	for _, p := range paths {
		if p != "" {
			fmt.Fprintln(e.out, p)
		}
	}
	return err
}
