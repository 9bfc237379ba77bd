package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"workshopcast/pkg/command"
	"workshopcast/pkg/config"
	errs "workshopcast/pkg/errors"
	"workshopcast/pkg/logger"
)

// ErrMaxAttempts is returned when a configured attempt bound is exhausted.
var ErrMaxAttempts = errors.New("download attempts exhausted")

// Outcome classifies one line of download tool output.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeTimeout
	OutcomeFailure
	OutcomeSuccess
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTimeout:
		return "timeout"
	case OutcomeFailure:
		return "failure"
	case OutcomeSuccess:
		return "success"
	default:
		return "none"
	}
}

// Result summarises a finished download.
type Result struct {
	Attempts int
	Timeouts int
	Resets   int
}

// Fetcher drives steamcmd until an item is downloaded.
type Fetcher struct {
	tools   config.ToolsConfig
	toolDir string
	runner  command.Runner
	log     logger.Logger
	out     io.Writer
	// keep holds paths a reset must never remove
	keep []string
}

// New creates a fetcher. out receives the tool output verbatim and may be nil.
func New(cfg *config.Config, runner command.Runner, log logger.Logger, out io.Writer) *Fetcher {
	if runner == nil {
		runner = command.ExecRunner{}
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	if out == nil {
		out = io.Discard
	}
	return &Fetcher{
		tools:   cfg.Tools,
		toolDir: cfg.Paths.ToolDir,
		runner:  runner,
		log:     log.WithField("component", "fetcher"),
		out:     out,
		keep:    []string{cfg.Paths.CacheRoot, cfg.Logging.File},
	}
}

// Classify maps a line to the first marker it contains, timeout first.
func (f *Fetcher) Classify(line string) Outcome {
	switch {
	case strings.Contains(line, f.tools.TimeoutMarker):
		return OutcomeTimeout
	case strings.Contains(line, f.tools.FailureMarker):
		return OutcomeFailure
	case strings.Contains(line, f.tools.SuccessMarker):
		return OutcomeSuccess
	default:
		return OutcomeNone
	}
}

// Args builds the steamcmd argument list for one invocation.
func (f *Fetcher) Args(id string, validate bool) []string {
	args := []string{"+login", "anonymous", "+workshop_download_item", f.tools.AppID, id}
	if validate {
		args = append(args, "validate")
	}
	return append(args, "+quit")
}

// Fetch invokes steamcmd until its output reports success.
//
// A timeout line bumps the timeout counter and makes the next invocation
// validate. A failure line marks the run fatal. Once the counter reaches
// the reset threshold, or after any fatal run, the tool directory is reset
// before every further invocation. The exit code only matters for the run
// that reported success.
func (f *Fetcher) Fetch(ctx context.Context, id string) (*Result, error) {
	log := f.log.WithField("item_id", id)
	res := &Result{}

	fatal := false
	validate := false

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if f.tools.MaxAttempts > 0 && res.Attempts >= f.tools.MaxAttempts {
			return res, fmt.Errorf("%w after %d attempts", ErrMaxAttempts, res.Attempts)
		}

		if res.Timeouts >= f.tools.ResetThreshold || fatal {
			reset, err := f.Reset()
			if err != nil {
				return res, err
			}
			if reset {
				res.Resets++
			}
		}

		args := f.Args(id, validate)
		validate = false
		succeeded := false
		res.Attempts++

		log.WithFields(map[string]interface{}{
			"attempt":  res.Attempts,
			"validate": slices.Contains(args, "validate"),
		}).Info("Starting download")

		code, err := f.runner.Run(ctx, f.toolDir, f.tools.SteamCmd, args, func(line string) {
			fmt.Fprintln(f.out, line)
			log.Debug(line)

			switch f.Classify(line) {
			case OutcomeTimeout:
				validate = true
				res.Timeouts++
			case OutcomeFailure:
				fatal = true
			case OutcomeSuccess:
				succeeded = true
			}
		})
		if err != nil {
			return res, errs.Tool("steamcmd could not run", err)
		}

		if succeeded {
			if code != 0 {
				logger.LogToolRun(log, "steamcmd", res.Attempts, OutcomeSuccess.String(), fmt.Errorf("exit status %d", code))
				return res, &errs.Error{
					Type:    errs.ErrorTypeTool,
					Message: "steamcmd reported success but exited abnormally",
					Code:    code,
				}
			}
			logger.LogToolRun(log, "steamcmd", res.Attempts, OutcomeSuccess.String(), nil)
			return res, nil
		}

		outcome := OutcomeNone
		if validate {
			outcome = OutcomeTimeout
		} else if fatal {
			outcome = OutcomeFailure
		}
		logger.LogToolRun(log, "steamcmd", res.Attempts, outcome.String(), errors.New("no success marker"))
	}
}

// Reset deletes every entry of the tool directory that is not on the
// allow-list and does not hold the cache root or the log file. Nothing is
// touched unless the steamcmd binary lives there.
func (f *Fetcher) Reset() (bool, error) {
	binary := filepath.Join(f.toolDir, filepath.Base(f.tools.SteamCmd))
	if _, err := os.Stat(binary); err != nil {
		f.log.WithField("tool_dir", f.toolDir).Warn("steamcmd not found in tool directory, skipping reset")
		return false, nil
	}

	protected, ok := f.protectedEntries()
	if !ok {
		f.log.WithField("tool_dir", f.toolDir).Warn("Cache root is the tool directory, skipping reset")
		return false, nil
	}

	entries, err := os.ReadDir(f.toolDir)
	if err != nil {
		return false, fmt.Errorf("failed to read tool directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if slices.Contains(f.tools.ResetAllowList, entry.Name()) || entry.Name() == filepath.Base(f.tools.SteamCmd) || protected[entry.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(f.toolDir, entry.Name())); err != nil {
			return false, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
		removed++
	}

	f.log.WithFields(map[string]interface{}{
		"tool_dir": f.toolDir,
		"removed":  removed,
	}).Warn("Tool directory reset")
	return true, nil
}

// protectedEntries names the top-level tool directory entries that contain
// a kept path. It reports false when a kept path is the tool directory itself.
func (f *Fetcher) protectedEntries() (map[string]bool, bool) {
	root, err := filepath.Abs(f.toolDir)
	if err != nil {
		return nil, false
	}
	names := make(map[string]bool)
	for _, p := range f.keep {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if rel == "." {
			return nil, false
		}
		names[strings.Split(rel, string(filepath.Separator))[0]] = true
	}
	return names, true
}

// Available checks that the steamcmd binary exists.
func (f *Fetcher) Available() error {
	if _, err := os.Stat(f.tools.SteamCmd); err != nil {
		return errs.Tool(fmt.Sprintf("steamcmd not found at %s", f.tools.SteamCmd), err)
	}
	return nil
}
