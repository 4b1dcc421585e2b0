// Package console reads operator commands line by line and drives a
// session with them.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"codeberg.org/mutker/benchctl/internal/bench"
	"codeberg.org/mutker/benchctl/internal/errors"
	"codeberg.org/mutker/benchctl/internal/logger"
	"codeberg.org/mutker/benchctl/internal/model"
)

const prompt = "> "

// Operator is the set of session operations the console can issue.
type Operator interface {
	Start(ctx context.Context) (model.StartCommand, error)
	Stop(ctx context.Context) error
	SetMotorSpeeds(ctx context.Context, motor1, motor2 int) error
	SetDuration(ctx context.Context, seconds float64) error
	SetTargetWattage(ctx context.Context, watts float64) error
	SetFileName(ctx context.Context, name string) error
	Export(ctx context.Context) (string, error)
	Status(ctx context.Context) (bench.Status, error)
}

const helpText = `commands:
  start                 start a benchmark with the current setpoints
  stop                  stop the rig
  speed <m1> [m2]       set motor speeds (-127..127); m2 defaults to m1
  duration <seconds>    set the benchmark duration
  watts <w>             set a power target, 0 disables it
  file <name>           set the export file name
  export                export the current session log
  status                show connection, run state and setpoints
  help                  show this text
  quit                  leave`

// Console is a line-oriented operator front end.
type Console struct {
	op  Operator
	in  io.Reader
	out io.Writer
	log logger.Logger

	mu sync.Mutex // serializes writes to out
}

// New returns a console reading commands from in and writing replies to out.
func New(op Operator, in io.Reader, out io.Writer, log logger.Logger) *Console {
	if log == nil {
		log = logger.Nop()
	}

	return &Console{op: op, in: in, out: out, log: log}
}

// Run processes commands until quit, end of input or ctx is cancelled.
// Command failures are printed and never end the loop.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	c.printf("%s", prompt)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}

			quit, err := c.Execute(ctx, line)
			if err != nil {
				c.printf("error: %v\n", err)
			}
			if quit {
				return nil
			}
			c.printf("%s", prompt)
		}
	}
}

// Execute runs a single command line. It reports whether the operator
// asked to quit.
func (c *Console) Execute(ctx context.Context, line string) (bool, error) {
	errFactory := errors.New()

	args := strings.Fields(line)
	if len(args) == 0 {
		return false, nil
	}

	c.log.Debug().Strs("args", args).Msg("Console command")

	switch cmd := strings.ToLower(args[0]); cmd {
	case "start":
		start, err := c.op.Start(ctx)
		if err != nil {
			return false, err
		}
		c.printf("started: motors %d/%d for %ds\n",
			start.Motor1Speed, start.Motor2Speed, start.BenchmarkDuration)

	case "stop":
		if err := c.op.Stop(ctx); err != nil {
			return false, err
		}
		c.printf("stopped\n")

	case "speed":
		if len(args) < 2 || len(args) > 3 {
			return false, errFactory.WithMessage(ErrUsage, "usage: speed <m1> [m2]")
		}
		m1, err := strconv.Atoi(args[1])
		if err != nil {
			return false, errFactory.Wrap(ErrUsage, err)
		}
		m2 := m1
		if len(args) == 3 {
			if m2, err = strconv.Atoi(args[2]); err != nil {
				return false, errFactory.Wrap(ErrUsage, err)
			}
		}
		if err := c.op.SetMotorSpeeds(ctx, m1, m2); err != nil {
			return false, err
		}

	case "duration":
		v, err := floatArg(args, "usage: duration <seconds>")
		if err != nil {
			return false, err
		}
		if err := c.op.SetDuration(ctx, v); err != nil {
			return false, err
		}

	case "watts":
		v, err := floatArg(args, "usage: watts <w>")
		if err != nil {
			return false, err
		}
		if err := c.op.SetTargetWattage(ctx, v); err != nil {
			return false, err
		}

	case "file":
		if err := c.op.SetFileName(ctx, strings.Join(args[1:], " ")); err != nil {
			return false, err
		}

	case "export":
		name, err := c.op.Export(ctx)
		if err != nil {
			return false, err
		}
		c.printf("exported %s\n", name)

	case "status":
		st, err := c.op.Status(ctx)
		if err != nil {
			return false, err
		}
		c.printStatus(st)

	case "help", "?":
		c.printf("%s\n", helpText)

	case "quit", "exit":
		return true, nil

	default:
		return false, errFactory.WithData(ErrUnknownCommand, cmd)
	}

	return false, nil
}

func floatArg(args []string, usage string) (float64, error) {
	errFactory := errors.New()

	if len(args) != 2 {
		return 0, errFactory.WithMessage(ErrUsage, usage)
	}
	v, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return 0, errFactory.Wrap(ErrUsage, err)
	}

	return v, nil
}

func (c *Console) printStatus(st bench.Status) {
	c.printf("connection: %s\n", st.Connection)
	c.printf("state:      %s\n", st.State)
	c.printf("motors:     %d / %d\n", st.Motor1Speed, st.Motor2Speed)
	c.printf("duration:   %ds\n", st.Duration)
	if st.TargetWattage > 0 {
		c.printf("target:     %gW\n", st.TargetWattage)
	}
	c.printf("file:       %s\n", st.FileName)
	c.printf("samples:    %d logged, %d/%d in window\n", st.Logged, st.WindowLen, st.WindowSize)
	if st.Voltage != nil && st.Current != nil {
		c.printf("supply:     %.2fV %.2fA\n", *st.Voltage, *st.Current)
	}
	if st.LastExport != "" {
		c.printf("exported:   %s\n", st.LastExport)
	}
}

// Notify prints an asynchronous message, such as a session report,
// between command replies.
func (c *Console) Notify(msg string) {
	c.printf("\n! %s\n%s", msg, prompt)
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		c.log.Debug().Err(err).Msg("Console write failed")
	}
}
