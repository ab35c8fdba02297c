// Package gitcl is a wrapper around the "git cl" code review tool from
// Chromium's depot_tools. It can look up the issue number and review status
// of the current CL, trigger try jobs against it, and poll the try job
// results until the jobs finish or the CL is closed.
package gitcl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.skia.org/clwatcher/go/exec"
	"go.skia.org/clwatcher/go/now"
	"go.skia.org/clwatcher/go/skerr"
	"go.skia.org/clwatcher/go/sklog"
	"go.skia.org/clwatcher/go/util"
)

const (
	gitExecutable = "git"

	// Values of TryJobStatus.Status as reported by "git cl try-results".
	StatusScheduled = "SCHEDULED"
	StatusStarted   = "STARTED"
	StatusCompleted = "COMPLETED"

	// Values of TryJobStatus.Result for completed try jobs.
	ResultSuccess  = "SUCCESS"
	ResultFailure  = "FAILURE"
	ResultCanceled = "CANCELED"

	// CLStatusClosed is the value of "git cl status" for a landed or
	// abandoned CL.
	CLStatusClosed = "closed"
)

// Defaults for the wait loops.
const (
	DefaultTryJobPollInterval = 10 * time.Minute
	DefaultTryJobTimeout      = 2 * time.Hour
	DefaultClosedPollInterval = 2 * time.Minute
	DefaultClosedTimeout      = 30 * time.Minute
)

// commandsWithoutAuth lists the "git cl" subcommands which do not accept
// --auth-refresh-token-json.
var commandsWithoutAuth = []string{"issue"}

var (
	issueNumberRegexp = regexp.MustCompile(`Issue number: (\d+|None) \(`)

	// Try job URLs either end in a build number, eg.
	// https://build.chromium.org/p/tryserver.blink/builders/builder-a/builds/100
	// or https://ci.chromium.org/p/tryserver.blink/builder-a/100, or name a
	// swarming task, eg.
	// https://ci.chromium.org/swarming/task/36a767f405d9ee10?server=...
	buildNumberRegexp = regexp.MustCompile(`^.*/(\d+)/?$`)
	taskIDRegexp      = regexp.MustCompile(`^.*/task/([0-9a-f]+)(\?.*)?$`)
)

// ErrNoIssueNumber is wrapped by the error returned from GetIssueNumber
// when the output of "git cl issue" contains no issue number.
var ErrNoIssueNumber = errors.New(`no issue number in "git cl issue" output`)

// Build identifies one run of a try builder.
type Build struct {
	// Builder is the name of the try builder, eg. "win10_blink_rel".
	Builder string

	// Number is the buildbot build number. Zero means the build either runs
	// as a swarming task (see TaskID) or has not been assigned yet.
	Number int64

	// TaskID is the swarming task id, for try jobs which run on swarming
	// rather than buildbot.
	TaskID string
}

// assigned returns true if the build has been assigned a build number or a
// swarming task id.
func (b Build) assigned() bool {
	return b.Number != 0 || b.TaskID != ""
}

// newerThan returns true if b identifies a more recent run of the same
// builder than other. Unassigned builds sort oldest. A numbered build
// supersedes a swarming task, so FilterLatest drops the swarming task entry
// which "git cl try-results" lists alongside a numbered build.
func (b Build) newerThan(other Build) bool {
	if b.assigned() != other.assigned() {
		return b.assigned()
	}
	if b.Number != 0 || other.Number != 0 {
		return b.Number > other.Number
	}
	return b.TaskID > other.TaskID
}

// TryJobStatus is a snapshot of the state of one try job.
type TryJobStatus struct {
	// Status is one of StatusScheduled, StatusStarted, StatusCompleted.
	Status string
	// Result is empty until Status is StatusCompleted, then one of
	// ResultSuccess, ResultFailure, ResultCanceled.
	Result string
}

// TryJobResults maps Builds to their TryJobStatus. A nil map means "no
// data", as opposed to an empty map which means "no try jobs".
type TryJobResults map[Build]TryJobStatus

// CLStatus combines the review status of a CL with the state of its try
// jobs.
type CLStatus struct {
	// Status is the review status as reported by "git cl status", eg.
	// "lgtm", "commit", or CLStatusClosed.
	Status string

	TryJobResults TryJobResults
}

// RawTryJobResult is one record of "git cl try-results --json" output.
// Fields this package does not use are ignored.
type RawTryJobResult struct {
	BuilderName string `json:"builder_name"`
	Status      string `json:"status"`
	Result      string `json:"result"`
	URL         string `json:"url"`
}

// MalformedResultError is returned when a try job result URL matches no
// known format.
type MalformedResultError struct {
	URL string
}

func (e *MalformedResultError) Error() string {
	return fmt.Sprintf("%s did not match expected format", e.URL)
}

// GitCL runs "git cl" and interprets its output. It is not safe for
// concurrent use.
type GitCL struct {
	cwd                  string
	authRefreshTokenJSON string
	out                  io.Writer
	masters              TryMasterConfig

	// sleep and fetchRawResults are swapped out by tests.
	sleep           func(ctx context.Context, d time.Duration) error
	fetchRawResults func(ctx context.Context) ([]*RawTryJobResult, error)
}

// New returns a GitCL which runs "git cl" in the given checkout directory.
// authRefreshTokenJSON is an optional path to an auth refresh token file;
// if empty, no auth flag is ever passed. Progress messages from the wait
// loops are written to out, or os.Stdout if out is nil.
func New(cwd, authRefreshTokenJSON string, out io.Writer) *GitCL {
	if out == nil {
		out = os.Stdout
	}
	c := &GitCL{
		cwd:                  cwd,
		authRefreshTokenJSON: authRefreshTokenJSON,
		out:                  out,
		masters:              DefaultTryMasterConfig,
	}
	c.sleep = sleepCtx
	c.fetchRawResults = c.fetchRawTryJobResults
	return c
}

// SetTryMasterConfig replaces the table used to route try builders to
// masters. The default is DefaultTryMasterConfig.
func (c *GitCL) SetTryMasterConfig(cfg TryMasterConfig) {
	c.masters = cfg
}

// Run executes "git cl" with the given arguments in the checkout directory
// and returns its combined output. If an auth refresh token file was
// provided and the subcommand accepts it, --auth-refresh-token-json is
// appended to the command line. Failures of the tool are returned to the
// caller unmodified apart from error wrapping; there are no retries.
func (c *GitCL) Run(ctx context.Context, args []string) (string, error) {
	cmd := append([]string{"cl"}, args...)
	if c.authRefreshTokenJSON != "" && len(args) > 0 && !util.In(args[0], commandsWithoutAuth) {
		cmd = append(cmd, "--auth-refresh-token-json", c.authRefreshTokenJSON)
	}
	output, err := exec.RunCommand(ctx, &exec.Command{
		Name: gitExecutable,
		Args: cmd,
		Dir:  c.cwd,
	})
	if err != nil {
		return "", skerr.Wrap(err)
	}
	return output, nil
}

// GetIssueNumber returns the issue number of the current CL as a string,
// which is the literal "None" when no issue is associated. Returns an error
// wrapping ErrNoIssueNumber if "git cl issue" prints no issue number.
func (c *GitCL) GetIssueNumber(ctx context.Context) (string, error) {
	output, err := c.Run(ctx, []string{"issue"})
	if err != nil {
		return "", err
	}
	m := issueNumberRegexp.FindStringSubmatch(output)
	if m == nil {
		return "", skerr.Wrapf(ErrNoIssueNumber, "parsing %q", output)
	}
	return m[1], nil
}

// GetCLStatus returns the review status of the current CL, eg. "lgtm",
// "commit", or CLStatusClosed.
func (c *GitCL) GetCLStatus(ctx context.Context) (string, error) {
	output, err := c.Run(ctx, []string{"status", "--field", "status"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// TriggerTryJobs triggers try jobs for the current CL on the given
// builders. Duplicate names are collapsed. One "git cl try" invocation is
// issued per master which owns at least one of the builders, since the tool
// requires the builder and master to match. Masters other than the default
// go first, the default master last. The first failing invocation aborts
// the rest.
func (c *GitCL) TriggerTryJobs(ctx context.Context, builders []string) error {
	sorted := util.NewStringSet(builders).Keys()
	sort.Strings(sorted)
	byMaster := map[string][]string{}
	masterOrder := []string{}
	for _, builder := range sorted {
		master := c.masters.MasterFor(builder)
		if _, ok := byMaster[master]; !ok && master != c.masters.Default {
			masterOrder = append(masterOrder, master)
		}
		byMaster[master] = append(byMaster[master], builder)
	}
	if _, ok := byMaster[c.masters.Default]; ok {
		masterOrder = append(masterOrder, c.masters.Default)
	}
	for _, master := range masterOrder {
		sklog.Infof("Triggering try jobs on %s: %s", master, strings.Join(byMaster[master], ", "))
		args := []string{"try", "-m", master}
		for _, builder := range byMaster[master] {
			args = append(args, "-b", builder)
		}
		if _, err := c.Run(ctx, args); err != nil {
			return err
		}
	}
	return nil
}

// FetchRawTryJobResults returns the parsed records of
// "git cl try-results --json" for the current CL.
func (c *GitCL) FetchRawTryJobResults(ctx context.Context) ([]*RawTryJobResult, error) {
	return c.fetchRawResults(ctx)
}

func (c *GitCL) fetchRawTryJobResults(ctx context.Context) ([]*RawTryJobResult, error) {
	// "git cl try-results" writes human-oriented output to stdout; ask for
	// JSON in a temp file instead.
	tmp, err := os.MkdirTemp("", "clwatcher")
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	defer util.RemoveAll(tmp)
	jsonFile := filepath.Join(tmp, "try-results.json")
	if _, err := c.Run(ctx, []string{"try-results", "--json", jsonFile}); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(jsonFile)
	if err != nil {
		return nil, skerr.Wrapf(err, "reading %s", jsonFile)
	}
	sklog.Debugf("Raw try job results: %s", string(b))
	var results []*RawTryJobResult
	if err := json.Unmarshal(b, &results); err != nil {
		return nil, skerr.Wrapf(err, "parsing %s", jsonFile)
	}
	return results, nil
}

// TryJobResults returns the current state of the CL's try jobs, keyed by
// Build. If builderNames is non-empty, records for any other builder are
// skipped, including records whose URL would not parse. All attempts are
// included; use LatestTryJobs for just the newest run per builder.
func (c *GitCL) TryJobResults(ctx context.Context, builderNames []string) (TryJobResults, error) {
	raw, err := c.FetchRawTryJobResults(ctx)
	if err != nil {
		return nil, err
	}
	results := make(TryJobResults, len(raw))
	for _, r := range raw {
		if len(builderNames) > 0 && !util.In(r.BuilderName, builderNames) {
			continue
		}
		build, err := buildFromURL(r.BuilderName, r.URL)
		if err != nil {
			return nil, err
		}
		results[build] = TryJobStatus{
			Status: r.Status,
			Result: r.Result,
		}
	}
	return results, nil
}

// buildFromURL derives the Build for a try job result from its URL. An
// empty URL produces an unassigned Build.
func buildFromURL(builder, url string) (Build, error) {
	if url == "" {
		return Build{Builder: builder}, nil
	}
	if m := buildNumberRegexp.FindStringSubmatch(url); m != nil {
		number, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return Build{}, skerr.Wrapf(err, "parsing build number from %s", url)
		}
		return Build{Builder: builder, Number: number}, nil
	}
	if m := taskIDRegexp.FindStringSubmatch(url); m != nil {
		return Build{Builder: builder, TaskID: m[1]}, nil
	}
	return Build{}, &MalformedResultError{URL: url}
}

// LatestTryJobs returns the newest run per builder of the CL's try jobs,
// optionally restricted to the given builders.
func (c *GitCL) LatestTryJobs(ctx context.Context, builderNames []string) (TryJobResults, error) {
	results, err := c.TryJobResults(ctx, builderNames)
	if err != nil {
		return nil, err
	}
	return FilterLatest(results), nil
}

// FilterLatest reduces results to the newest Build per builder. Entries for
// scheduled-but-unassigned builds are superseded by any assigned build of
// the same builder. Returns nil for nil input; the input map is not
// modified.
func FilterLatest(results TryJobResults) TryJobResults {
	if results == nil {
		return nil
	}
	latest := make(map[string]Build, len(results))
	for build := range results {
		if prev, ok := latest[build.Builder]; !ok || build.newerThan(prev) {
			latest[build.Builder] = build
		}
	}
	rv := make(TryJobResults, len(latest))
	for _, build := range latest {
		rv[build] = results[build]
	}
	return rv
}

// SomeFailed returns true if any try job completed with a failure.
func SomeFailed(results TryJobResults) bool {
	for _, status := range results {
		if status.Status == StatusCompleted && status.Result == ResultFailure {
			return true
		}
	}
	return false
}

// AllSuccess returns true if every try job completed successfully.
// Vacuously true when results is empty.
func AllSuccess(results TryJobResults) bool {
	for _, status := range results {
		if status.Status != StatusCompleted || status.Result != ResultSuccess {
			return false
		}
	}
	return true
}

// AllFinished returns true if every try job completed, regardless of
// result. Vacuously true when results is empty.
func AllFinished(results TryJobResults) bool {
	for _, status := range results {
		if status.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// WaitForTryJobs polls the CL until all of its try jobs have completed or
// the CL is closed. Zero durations select DefaultTryJobPollInterval and
// DefaultTryJobTimeout. Returns nil with a nil error if the timeout was
// reached; a timeout is not an error.
func (c *GitCL) WaitForTryJobs(ctx context.Context, pollInterval, timeout time.Duration) (*CLStatus, error) {
	if pollInterval == 0 {
		pollInterval = DefaultTryJobPollInterval
	}
	if timeout == 0 {
		timeout = DefaultTryJobTimeout
	}
	start := now.Now(ctx)
	fmt.Fprintf(c.out, "Waiting for try jobs, timeout: %d seconds.\n", int64(timeout.Seconds()))
	for now.Now(ctx).Sub(start) < timeout {
		if err := c.sleep(ctx, pollInterval); err != nil {
			return nil, err
		}
		results, err := c.LatestTryJobs(ctx, nil)
		if err != nil {
			return nil, err
		}
		status, err := c.GetCLStatus(ctx)
		if err != nil {
			return nil, err
		}
		if status == CLStatusClosed {
			return &CLStatus{Status: status, TryJobResults: results}, nil
		}
		if len(results) > 0 && AllFinished(results) {
			return &CLStatus{Status: status, TryJobResults: results}, nil
		}
		fmt.Fprintf(c.out, "Waiting for try jobs. %d seconds passed.\n", int64(now.Now(ctx).Sub(start).Seconds()))
		if err := c.sleep(ctx, pollInterval); err != nil {
			return nil, err
		}
	}
	fmt.Fprintf(c.out, "Timed out waiting for try jobs.\n")
	return nil, nil
}

// WaitForClosedStatus polls the CL until its review status is
// CLStatusClosed and returns that status. Zero durations select
// DefaultClosedPollInterval and DefaultClosedTimeout. Returns an empty
// string with a nil error if the timeout was reached; a timeout is not an
// error.
func (c *GitCL) WaitForClosedStatus(ctx context.Context, pollInterval, timeout time.Duration) (string, error) {
	if pollInterval == 0 {
		pollInterval = DefaultClosedPollInterval
	}
	if timeout == 0 {
		timeout = DefaultClosedTimeout
	}
	start := now.Now(ctx)
	fmt.Fprintf(c.out, "Waiting for closed status, timeout: %d seconds.\n", int64(timeout.Seconds()))
	for now.Now(ctx).Sub(start) < timeout {
		if err := c.sleep(ctx, pollInterval); err != nil {
			return "", err
		}
		status, err := c.GetCLStatus(ctx)
		if err != nil {
			return "", err
		}
		if status == CLStatusClosed {
			fmt.Fprintf(c.out, "CL is closed.\n")
			return status, nil
		}
		fmt.Fprintf(c.out, "Waiting for closed status. %d seconds passed.\n", int64(now.Now(ctx).Sub(start).Seconds()))
		if err := c.sleep(ctx, pollInterval); err != nil {
			return "", err
		}
	}
	fmt.Fprintf(c.out, "Timed out waiting for closed status.\n")
	return "", nil
}

// sleepCtx sleeps for the given duration, returning early with the
// context's error if the context is canceled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return skerr.Wrap(ctx.Err())
	}
}
