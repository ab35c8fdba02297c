/*
	A wrapper around the os/exec package that supports timeouts and testing.

	Example usage:

	Simple command with argument:
	err := exec.Run(ctx, &exec.Command{
		Name: "touch",
		Args: []string{file},
	})

	More complicated example:
	output := bytes.Buffer{}
	err := exec.Run(ctx, &exec.Command{
		Name: "make",
		Args: []string{"all"},
		// Set environment:
		Env: []string{fmt.Sprintf("GOPATH=%s", projectGoPath)},
		// Set working directory:
		Dir: projectDir,
		// Capture output:
		CombinedOutput: &output,
		// Set a timeout:
		Timeout: 10*time.Minute,
	})

	Inject a Run function for testing:
	mock := exec.CommandCollector{}
	ctx := exec.NewContext(context.Background(), mock.Run)
	TestCodeCallingRun(ctx)
	expect.Equal(t, "touch /tmp/file", exec.DebugString(mock.Commands()[0]))
*/
package exec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/kballard/go-shellquote"

	"go.skia.org/clwatcher/go/sklog"
)

const (
	TIMEOUT_ERROR_PREFIX = "Command killed since it took longer than"
)

type Verbosity int

const (
	Info Verbosity = iota
	Debug
	Silent
)

// WriteLog implements the io.Writer interface and writes to the given log function.
type WriteLog struct {
	LogFunc func(format string, args ...interface{})
}

func (wl WriteLog) Write(p []byte) (n int, err error) {
	wl.LogFunc("%s", string(p))
	return len(p), nil
}

var (
	WriteInfoLog  = WriteLog{LogFunc: sklog.Infof}
	WriteErrorLog = WriteLog{LogFunc: sklog.Errorf}
)

type Command struct {
	// Name of the command, as passed to osexec.Command. Can be the path to a binary or the
	// name of a command that osexec.Lookpath can find.
	Name string
	// Arguments of the command, not including Name.
	Args []string
	// The environment of the process. If nil, the current process's environment is used.
	Env []string
	// If true, the command inherits the environment of the current process, with any
	// entries in Env taking precedence.
	InheritEnv bool
	// If Env is non-nil and InheritEnv is false, adds the current process's PATH to Env.
	InheritPath bool
	// The working directory of the command. If nil, runs in the current process's current
	// directory.
	Dir string
	// See docs for osexec.Cmd.Stdin.
	Stdin io.Reader
	// If true, duplicates stdout of the command to WriteInfoLog.
	LogStdout bool
	// Sends the stdout of the command to this Writer, e.g. os.File or bytes.Buffer.
	Stdout io.Writer
	// If true, duplicates stderr of the command to WriteErrorLog.
	LogStderr bool
	// Sends the stderr of the command to this Writer, e.g. os.File or bytes.Buffer.
	Stderr io.Writer
	// Sends the combined stdout and stderr of the command to this Writer, in addition to
	// Stdout and Stderr. Only one goroutine will write at a time. Note: the Go runtime seems to
	// combine stdout and stderr into one stream as long as LogStdout and LogStderr are false
	// and Stdout and Stderr are nil. Otherwise, the stdout and stderr of the command could be
	// arbitrarily reordered when written to CombinedOutput.
	CombinedOutput io.Writer
	// Time limit to wait for the command to finish. (Starts when Wait is called.) No limit if
	// not specified.
	Timeout time.Duration
	// See docs for osexec.Cmd.SysProcAttr.
	SysProcAttr *syscall.SysProcAttr
	// Whether and how to log the command itself and its exit status.
	Verbose Verbosity
}

func (c *Command) String() string {
	return DebugString(c)
}

// ParseCommand divides commandLine into the program name and its arguments,
// following shell quoting rules. Quoted arguments stay intact, so
// `git commit -m "some message"` produces four tokens.
func ParseCommand(commandLine string) (Command, error) {
	words, err := shellquote.Split(commandLine)
	if err != nil {
		return Command{}, fmt.Errorf("Failed to parse command line %q: %s", commandLine, err)
	}
	if len(words) == 0 {
		return Command{}, fmt.Errorf("Empty command line %q", commandLine)
	}
	return Command{Name: words[0], Args: words[1:]}, nil
}

// Given io.Writers or nils, return a single writer that writes to all, or nil if no non-nil
// writers. Does not handle non-nil interface containing a nil value.
// http://devs.cloudimmunity.com/gotchas-and-common-mistakes-in-go-golang/index.html#nil_in_nil_in_vals
func squashWriters(writers ...io.Writer) io.Writer {
	nonNil := []io.Writer{}
	for _, writer := range writers {
		if writer != nil {
			nonNil = append(nonNil, writer)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return io.MultiWriter(nonNil...)
	}
}

// DebugString returns the Env, Name, and Args of command joined with spaces.
func DebugString(command *Command) string {
	if command == nil {
		return "(nil)"
	}
	str := []string{}
	str = append(str, command.Env...)
	str = append(str, command.Name)
	str = append(str, command.Args...)
	return strings.Join(str, " ")
}

func createCmd(command *Command) *osexec.Cmd {
	cmd := osexec.Command(command.Name, command.Args...)
	if command.InheritEnv {
		cmd.Env = append(os.Environ(), command.Env...)
	} else if len(command.Env) != 0 {
		cmd.Env = command.Env
		if command.InheritPath {
			cmd.Env = append(cmd.Env, "PATH="+os.Getenv("PATH"))
		}
	}
	cmd.Dir = command.Dir
	cmd.Stdin = command.Stdin
	var stdoutLog io.Writer
	if command.LogStdout {
		stdoutLog = WriteInfoLog
	}
	cmd.Stdout = squashWriters(stdoutLog, command.Stdout, command.CombinedOutput)
	var stderrLog io.Writer
	if command.LogStderr {
		stderrLog = WriteErrorLog
	}
	cmd.Stderr = squashWriters(stderrLog, command.Stderr, command.CombinedOutput)
	cmd.SysProcAttr = command.SysProcAttr
	return cmd
}

func start(command *Command, cmd *osexec.Cmd) error {
	if command.Verbose != Silent {
		logFn := sklog.Infof
		if command.Verbose == Debug {
			logFn = sklog.Debugf
		}
		if len(cmd.Env) == 0 {
			logFn("Executing %s", strings.Join(cmd.Args, " "))
		} else {
			logFn("Executing %s with env %s",
				strings.Join(cmd.Args, " "), strings.Join(cmd.Env, " "))
		}
	}
	err := cmd.Start()
	if err != nil {
		return fmt.Errorf("Unable to start command %s: %s", strings.Join(cmd.Args, " "), err)
	}
	return nil
}

func waitSimple(command *Command, cmd *osexec.Cmd) error {
	err := cmd.Wait()
	if err != nil {
		err = fmt.Errorf("Command exited with %w: %s", err, DebugString(command))
	}
	return err
}

func wait(ctx context.Context, command *Command, cmd *osexec.Cmd) error {
	if command.Timeout == 0 && ctx.Done() == nil {
		return waitSimple(command, cmd)
	}
	var timeoutCh <-chan time.Time
	if command.Timeout != 0 {
		timeoutCh = time.After(command.Timeout)
	}
	done := make(chan error)
	go func() {
		done <- cmd.Wait()
	}()
	select {
	case <-ctx.Done():
		if err := cmd.Process.Kill(); err != nil {
			return fmt.Errorf("Failed to kill canceled process: %s", err)
		}
		<-done // allow goroutine to exit
		return fmt.Errorf("Command killed since the context was canceled: %s; %s", ctx.Err(), DebugString(command))
	case <-timeoutCh:
		if err := cmd.Process.Kill(); err != nil {
			return fmt.Errorf("Failed to kill timed out process: %s", err)
		}
		<-done // allow goroutine to exit
		return fmt.Errorf("%s %f secs: %s", TIMEOUT_ERROR_PREFIX, command.Timeout.Seconds(), DebugString(command))
	case err := <-done:
		if err != nil {
			err = fmt.Errorf("Command exited with %w: %s", err, DebugString(command))
		}
		return err
	}
}

// IsTimeout returns true if the specified error was raised due to a command
// exceeding its given timeout.
func IsTimeout(err error) bool {
	return err != nil && strings.Contains(err.Error(), TIMEOUT_ERROR_PREFIX)
}

// DefaultRun runs the command and waits for it to finish. This is the
// runFn used for any context which was not created via NewContext.
func DefaultRun(ctx context.Context, command *Command) error {
	cmd := createCmd(command)
	if err := start(command, cmd); err != nil {
		return err
	}
	return wait(ctx, command, cmd)
}

type contextKeyType string

const contextKey contextKeyType = "overwriteRun"

type execContext struct {
	runFn func(context.Context, *Command) error
}

// NewContext returns a context.Context instance which uses the given function
// to run commands. Tests use this to substitute a mock (see CommandCollector)
// for actual subprocesses.
func NewContext(ctx context.Context, runFn func(context.Context, *Command) error) context.Context {
	newCtx := &execContext{runFn: runFn}
	return context.WithValue(ctx, contextKey, newCtx)
}

// getCtx retrieves the Context associated with the context.Context.
func getCtx(ctx context.Context) *execContext {
	if v := ctx.Value(contextKey); v != nil {
		return v.(*execContext)
	}
	return &execContext{runFn: DefaultRun}
}

// Run runs command and waits for it to finish. If any failure, returns non-nil. If a timeout was
// specified, returns an error once the command has exceeded that timeout.
func Run(ctx context.Context, command *Command) error {
	return getCtx(ctx).runFn(ctx, command)
}

// RunSimple executes the given command line string; the command being run is expected to not care
// what its current working directory is. Returns the combined stdout and stderr. May also return
// an error if the command exited with a non-zero status or there is any other error.
func RunSimple(ctx context.Context, commandLine string) (string, error) {
	cmd, err := ParseCommand(commandLine)
	if err != nil {
		return "", err
	}
	return RunCommand(ctx, &cmd)
}

// RunCommand executes the given command and returns the combined stdout and stderr. May also
// return an error if the command exited with a non-zero status or there is any other error.
func RunCommand(ctx context.Context, command *Command) (string, error) {
	output := bytes.Buffer{}
	command.CombinedOutput = &output
	err := Run(ctx, command)
	return output.String(), err
}

// RunCwd executes the given command in the given directory. Returns the combined stdout and
// stderr. May also return an error if the command exited with a non-zero status or there is any
// other error.
func RunCwd(ctx context.Context, cwd string, cmd ...string) (string, error) {
	if len(cmd) == 0 {
		return "", fmt.Errorf("No command specified")
	}
	command := &Command{
		Name: cmd[0],
		Args: cmd[1:],
		Dir:  cwd,
	}
	return RunCommand(ctx, command)
}
