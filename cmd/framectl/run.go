package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/joshuapare/framekit/frame"
	"github.com/joshuapare/framekit/frame/pmm"
)

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Boot, then execute an allocation script",
		Long: `The run command boots the memory manager and executes a script with one
operation per line. Blank lines and lines starting with # are ignored.

  alloc <size> [page] [owner]          allocate anywhere
  fixed <addr> <size> [page] [owner]   allocate at addr
  free <addr> [owner]                  free the frame containing addr
  coalesce                             merge adjacent free frames
  verify                               check allocator invariants
  stats                                print statistics
  layout                               print every frame

Sizes accept integers ("0x3000") or units ("12KiB"). Page is small, medium,
huge (or large on arm64) and defaults to small. Owner defaults to kernel and
accepts kernel, memory, system(N), user(N) or a raw number.

Failed allocations and frees are reported and the script continues; a failed
verify stops it. Use - to read the script from stdin.

Example:
  framectl run boot.script
  framectl run --map qemu.yaml --json boot.script`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(args[0])
		},
	}
	return cmd
}

// errVerify marks a verify step that found a violation.
var errVerify = errors.New("verify failed")

// StepResult is the outcome of one script line.
type StepResult struct {
	Line  int    `json:"line"`
	Op    string `json:"op"`
	Addr  string `json:"addr,omitempty"`
	Count int    `json:"count,omitempty"`
	Error string `json:"error,omitempty"`

	Stats  *StatsJSON  `json:"stats,omitempty"`
	Frames []FrameJSON `json:"frames,omitempty"`
}

func runScript(path string) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open script: %w", err)
		}
		defer f.Close()
		r = f
	}

	m, err := boot()
	if err != nil {
		return err
	}
	results, err := execScript(m, r)
	if jsonOut {
		if jerr := printJSON(results); jerr != nil {
			return jerr
		}
	}
	return err
}

// execScript runs every line of r against m. Results of completed steps are
// returned even when a step stops the script.
func execScript(m *pmm.Manager, r io.Reader) ([]StepResult, error) {
	var results []StepResult
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		res, err := step(m, fields)
		res.Line, res.Op = line, fields[0]
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)

		switch {
		case errors.Is(err, errVerify):
			return results, fmt.Errorf("line %d: %w", line, err)
		case errors.Is(err, errSyntax):
			return results, fmt.Errorf("line %d: %w", line, err)
		case err != nil:
			if !jsonOut {
				printInfo("%4d  %-8s %s\n", line, fields[0], styled(errorStyle, err.Error()))
			}
		case !jsonOut && res.Addr != "":
			printInfo("%4d  %-8s %s\n", line, fields[0], res.Addr)
		case !jsonOut && fields[0] == "coalesce":
			printInfo("%4d  %-8s %d merges\n", line, fields[0], res.Count)
		case !jsonOut && fields[0] == "verify":
			printInfo("%4d  %-8s ok\n", line, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return results, fmt.Errorf("read script: %w", err)
	}
	return results, nil
}

// errSyntax marks a malformed script line.
var errSyntax = errors.New("syntax error")

func step(m *pmm.Manager, f []string) (StepResult, error) {
	var res StepResult
	switch f[0] {
	case "alloc":
		if len(f) < 2 || len(f) > 4 {
			return res, fmt.Errorf("%w: usage: alloc <size> [page] [owner]", errSyntax)
		}
		size, ps, owner, err := parseRequest(f[1], f[2:])
		if err != nil {
			return res, err
		}
		addr, err := m.AllocFrame(size, ps, owner)
		if err != nil {
			return res, err
		}
		res.Addr = addr.String()

	case "fixed":
		if len(f) < 3 || len(f) > 5 {
			return res, fmt.Errorf("%w: usage: fixed <addr> <size> [page] [owner]", errSyntax)
		}
		at, err := parseAddr(f[1])
		if err != nil {
			return res, err
		}
		size, ps, owner, err := parseRequest(f[2], f[3:])
		if err != nil {
			return res, err
		}
		addr, err := m.AllocFrameFixed(at, size, ps, owner)
		if err != nil {
			return res, err
		}
		res.Addr = addr.String()

	case "free":
		if len(f) < 2 || len(f) > 3 {
			return res, fmt.Errorf("%w: usage: free <addr> [owner]", errSyntax)
		}
		at, err := parseAddr(f[1])
		if err != nil {
			return res, err
		}
		owner := frame.Kernel
		if len(f) == 3 {
			if owner, err = parseOwner(f[2]); err != nil {
				return res, err
			}
		}
		if err := m.DeallocFrame(at, owner); err != nil {
			return res, err
		}

	case "coalesce":
		res.Count = m.Coalesce()

	case "verify":
		if err := m.Verify(); err != nil {
			return res, fmt.Errorf("%w: %w", errVerify, err)
		}

	case "stats":
		if !jsonOut {
			return res, printStats(m)
		}
		st := statsJSON(m)
		res.Stats = &st

	case "layout":
		if !jsonOut {
			return res, printLayout(m)
		}
		res.Frames = framesJSON(m.Frames())

	default:
		return res, fmt.Errorf("%w: unknown operation %q", errSyntax, f[0])
	}
	return res, nil
}

// parseRequest parses "<size> [page] [owner]".
func parseRequest(sizeArg string, rest []string) (uint64, frame.PageSize, frame.Owner, error) {
	size, err := parseSize(sizeArg)
	if err != nil {
		return 0, 0, 0, err
	}
	ps, owner := frame.DefaultPageSize, frame.Kernel
	if len(rest) > 0 {
		if ps, err = frame.ParsePageSize(rest[0]); err != nil {
			return 0, 0, 0, fmt.Errorf("%w: %w", errSyntax, err)
		}
	}
	if len(rest) > 1 {
		if owner, err = parseOwner(rest[1]); err != nil {
			return 0, 0, 0, err
		}
	}
	return size, ps, owner, nil
}

func parseSize(s string) (uint64, error) {
	if n, err := strconv.ParseUint(s, 0, 64); err == nil {
		return n, nil
	}
	n, err := units.RAMInBytes(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: bad size %q", errSyntax, s)
	}
	return uint64(n), nil
}

func parseAddr(s string) (frame.PhysAddr, error) {
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad address %q", errSyntax, s)
	}
	return frame.PhysAddr(n), nil
}

func parseOwner(s string) (frame.Owner, error) {
	o, err := frame.ParseOwner(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errSyntax, err)
	}
	return o, nil
}
