// Package console implements the line command interpreter of the master.
package console

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/glog"
	"github.com/google/shlex"

	"github.com/robotalks/dispense.go/pkg/bus"
)

// Result codes, the first number of every reply line.
const (
	CodeOK                = 0
	CodeMasterRebooted    = 1
	CodeTransmissionError = 2
	CodeDispenserFault    = 3
	CodeInvalidCommand    = 4
	CodeInvalidSpeed      = 5
	CodeUnknownCommand    = 6
	CodeBadDispenserIndex = 7
)

// MaxDuration is the longest accepted dispense duration in ticks.
const MaxDuration = 0xffff

// Reply is the result of a command line.
type Reply struct {
	Code    int
	Message string
	// NoCode replies are diagnostic text without a result code.
	NoCode bool
}

// Line formats the reply as it's printed on the console.
func (r Reply) Line() string {
	if r.NoCode {
		return r.Message
	}
	return fmt.Sprintf("%d %s", r.Code, r.Message)
}

func ok(format string, args ...interface{}) Reply {
	return Reply{Code: CodeOK, Message: fmt.Sprintf(format, args...)}
}

func fail(code int, message string) Reply {
	return Reply{Code: code, Message: message}
}

func note(message string) Reply {
	return Reply{Message: message, NoCode: true}
}

var (
	replyTransmissionError = fail(CodeTransmissionError, "transmission error")
	replyInvalidCommand    = fail(CodeInvalidCommand, "invalid command")
	replyInvalidSpeed      = fail(CodeInvalidSpeed, "invalid speed")
	replyUnknownCommand    = fail(CodeUnknownCommand, "unknown command")
	replyBadDispenser      = fail(CodeBadDispenserIndex, "invalid dispenser")
)

// Command is a console command.
type Command struct {
	Name  string
	Usage string
	Help  string
	Func  func(ctx context.Context, s *bus.Session, args []string) Reply
}

// Interpreter executes command lines on a bus session. Commands are
// serialized, so several front ends may share one interpreter.
type Interpreter struct {
	Session *bus.Session

	lock     sync.Mutex
	commands map[string]*Command
}

// New creates an Interpreter with the builtin commands.
func New(s *bus.Session) *Interpreter {
	i := &Interpreter{Session: s, commands: make(map[string]*Command)}
	for _, cmd := range builtinCommands {
		i.Add(cmd)
	}
	i.Add(&Command{
		Name: "help",
		Help: "List commands",
		Func: func(context.Context, *bus.Session, []string) Reply {
			return note(i.help())
		},
	})
	return i
}

// Add registers a command, replacing any with the same name.
func (i *Interpreter) Add(cmd *Command) {
	i.commands[strings.ToLower(cmd.Name)] = cmd
}

// Commands lists registered commands sorted by name.
func (i *Interpreter) Commands() []*Command {
	cmds := make([]*Command, 0, len(i.commands))
	for _, cmd := range i.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(a, b int) bool { return cmds[a].Name < cmds[b].Name })
	return cmds
}

func (i *Interpreter) help() string {
	var lines []string
	for _, cmd := range i.Commands() {
		lines = append(lines, strings.TrimSpace(fmt.Sprintf("# %s %s", cmd.Name, cmd.Usage)))
	}
	return strings.Join(lines, "\n")
}

// Exec parses and executes one command line.
func (i *Interpreter) Exec(ctx context.Context, line string) Reply {
	tokens, err := shlex.Split(line)
	if err != nil {
		return replyInvalidCommand
	}
	if len(tokens) == 0 {
		return Reply{NoCode: true}
	}
	cmd := i.commands[strings.ToLower(tokens[0])]
	if cmd == nil {
		return replyUnknownCommand
	}
	i.lock.Lock()
	defer i.lock.Unlock()
	return cmd.Func(ctx, i.Session, tokens[1:])
}

// Do runs fn with exclusive access to the session.
func (i *Interpreter) Do(fn func(*bus.Session) error) error {
	i.lock.Lock()
	defer i.lock.Unlock()
	return fn(i.Session)
}

var builtinCommands = []*Command{
	{
		Name: "count",
		Help: "Number of dispensers on the bus",
		Func: func(_ context.Context, s *bus.Session, _ []string) Reply {
			return ok("%d dispensers", s.Count())
		},
	},
	{
		Name: "check",
		Help: "Check all dispensers, stops at the first fault",
		Func: func(_ context.Context, s *bus.Session, _ []string) Reply {
			addr, code, err := s.Check()
			if err != nil {
				return busFailure(err)
			}
			if addr == 0 {
				return ok("ok")
			}
			return fail(CodeDispenserFault, fmt.Sprintf("%d dispenser fault: %d", addr, code))
		},
	},
	{
		Name:  "on",
		Usage: "DISPENSER",
		Help:  "Turn a dispenser on",
		Func: addressed(func(s *bus.Session, addr byte) Reply {
			return done(s.TurnOn(addr))
		}),
	},
	{
		Name:  "off",
		Usage: "DISPENSER",
		Help:  "Turn a dispenser off",
		Func: addressed(func(s *bus.Session, addr byte) Reply {
			return done(s.TurnOff(addr))
		}),
	},
	{
		Name:  "state",
		Usage: "DISPENSER",
		Help:  "Query the state of a dispenser",
		Func: addressed(func(s *bus.Session, addr byte) Reply {
			state, err := s.GetState(addr)
			if err != nil {
				return busFailure(err)
			}
			return ok("%d ok", state)
		}),
	},
	{
		Name:  "disp",
		Usage: "DISPENSER TICKS",
		Help:  "Dispense for a duration",
		Func: func(_ context.Context, s *bus.Session, args []string) Reply {
			if len(args) != 2 {
				return replyInvalidCommand
			}
			addr, reply, valid := parseAddr(s, args[0])
			if !valid {
				return reply
			}
			dur, err := strconv.Atoi(args[1])
			if err != nil {
				return replyInvalidCommand
			}
			if dur < 1 || dur > MaxDuration {
				return replyInvalidSpeed
			}
			return done(s.Dispense(addr, uint16(dur)))
		},
	},
	{
		Name: "reset",
		Help: "Reset the bus and enumerate dispensers",
		Func: func(ctx context.Context, s *bus.Session, _ []string) Reply {
			n, err := s.Reset(ctx)
			if err != nil {
				glog.Warningf("bus reset failed: %v", err)
				return fail(CodeTransmissionError, "reset failed")
			}
			return ok("%d dispensers", n)
		},
	},
	{
		Name: "debug",
		Help: "Trace exchanges",
		Func: func(_ context.Context, s *bus.Session, _ []string) Reply {
			var reply Reply
			if s.Debug() == bus.DebugOff {
				reply = note("how may I do your bidding?")
			} else {
				reply = note("")
			}
			s.SetDebug(bus.DebugExchange)
			return reply
		},
	},
	{
		Name: "vdebug",
		Help: "Trace every byte",
		Func: func(_ context.Context, s *bus.Session, _ []string) Reply {
			s.SetDebug(bus.DebugBytes)
			return note("# verbose debugging")
		},
	},
	{
		Name: "nodebug",
		Help: "Stop tracing",
		Func: func(_ context.Context, s *bus.Session, _ []string) Reply {
			s.SetDebug(bus.DebugOff)
			return note("# no more debugging. Silence!")
		},
	},
}

func addressed(fn func(*bus.Session, byte) Reply) func(context.Context, *bus.Session, []string) Reply {
	return func(_ context.Context, s *bus.Session, args []string) Reply {
		if len(args) != 1 {
			return replyInvalidCommand
		}
		addr, reply, valid := parseAddr(s, args[0])
		if !valid {
			return reply
		}
		return fn(s, addr)
	}
}

func parseAddr(s *bus.Session, arg string) (byte, Reply, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, replyInvalidCommand, false
	}
	if n < 1 || n > s.Count() {
		return 0, replyBadDispenser, false
	}
	return byte(n), Reply{}, true
}

func done(err error) Reply {
	if err != nil {
		return busFailure(err)
	}
	return ok("ok")
}

func busFailure(err error) Reply {
	if err != bus.ErrTransmission {
		glog.Warningf("bus error: %v", err)
	}
	return replyTransmissionError
}
