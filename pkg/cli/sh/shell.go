package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/dispense.go/pkg/bus"
	"github.com/robotalks/dispense.go/pkg/config"
	"github.com/robotalks/dispense.go/pkg/console"
)

// Shell provides ishell backed interactive shell over a console Interpreter.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	// NoReset skips the bus reset on start.
	NoReset bool

	Shell  *ishell.Shell
	Config *config.Config
	Interp *console.Interpreter
	Ctx    context.Context
}

const (
	shellKey = "$shell"
	prompt   = "> "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	noReset    bool
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.BoolVar(&noReset, "no-reset", noReset, "Don't reset the bus on start.")
}

// New creates a new shell.
func New(conf *config.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		NoReset:     noReset,

		Shell:  ishell.New(),
		Config: conf,
		Ctx:    context.Background(),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(prompt)
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Attach exposes every command of the interpreter in the shell.
func (s *Shell) Attach(interp *console.Interpreter) *Shell {
	s.Interp = interp
	for _, cmd := range interp.Commands() {
		if cmd.Name == "help" {
			// ishell has its own.
			continue
		}
		s.Shell.AddCmd(&ishell.Cmd{
			Name:     cmd.Name,
			Help:     strings.TrimSpace(cmd.Usage + " " + cmd.Help),
			LongHelp: cmd.Help,
			Func:     commandFunc(cmd.Name),
		})
	}
	return s
}

func commandFunc(name string) func(*ishell.Context) {
	return func(c *ishell.Context) {
		ShellFrom(c).Exec(c, append([]string{name}, c.Args...))
	}
}

type jsonReply struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FormatReply prints a reply into a string for display.
func (s *Shell) FormatReply(reply console.Reply) (string, error) {
	if !s.OutputJSON || reply.NoCode {
		return reply.Line(), nil
	}
	out, err := json.Marshal(&jsonReply{Code: reply.Code, Message: reply.Message})
	return string(out), err
}

// Exec runs a console command and prints the reply.
func (s *Shell) Exec(c *ishell.Context, args []string) console.Reply {
	reply := s.Interp.Exec(s.Ctx, strings.Join(args, " "))
	out, err := s.FormatReply(reply)
	if err != nil {
		c.Err(err)
		return reply
	}
	if out != "" {
		c.Println(out)
	}
	return reply
}

type shellWriter struct {
	shell *ishell.Shell
}

func (w shellWriter) Write(p []byte) (int, error) {
	w.shell.Print(string(p))
	return len(p), nil
}

// Open opens the link from Config and attaches an Interpreter.
func (s *Shell) Open() error {
	session, err := s.Config.NewSession()
	if err != nil {
		return err
	}
	// Trace the protocol to the terminal rather than the log.
	session.Trace = shellWriter{s.Shell}
	s.Attach(console.New(session))
	if s.NoReset {
		return nil
	}
	if s.Interactive {
		s.Shell.Printf("Resetting bus on %s ...\n", s.Config.Link)
	}
	return s.Interp.Do(func(session *bus.Session) error {
		n, err := session.Reset(s.Ctx)
		if err == nil && s.Interactive {
			s.Shell.Printf("%d dispensers\n", n)
		}
		return err
	})
}

// Run runs the shell.
func (s *Shell) Run(args ...string) error {
	if s.Interp == nil {
		if err := s.Open(); err != nil {
			return err
		}
	}
	if len(args) > 0 {
		return s.Shell.Process(args...)
	}
	if s.Interactive {
		s.Shell.Run()
		return nil
	}
	return fmt.Errorf("command expected")
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	if err := New(config.NewConfig()).Run(flag.Args()...); err != nil {
		glog.Exitln(err)
	}
}
