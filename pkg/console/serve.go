package console

import (
	"bytes"
	"context"
	"io"

	"github.com/robotalks/dispense.go/pkg/bus"
)

// MaxLineLength is the longest command line, longer input is split.
const MaxLineLength = 15

// crlfWriter translates "\n" to "\r\n" for serial terminals.
type crlfWriter struct {
	w io.Writer
}

func (w crlfWriter) Write(p []byte) (int, error) {
	if _, err := w.w.Write(bytes.Replace(p, []byte("\n"), []byte("\r\n"), -1)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Serve runs the console on a character device until ctx is done or the
// device is closed. Lines end with CR. In debug mode input is echoed and a
// prompt is shown, and the protocol trace goes to the console.
func (i *Interpreter) Serve(ctx context.Context, rw io.ReadWriter) error {
	out := crlfWriter{w: rw}
	var traced bool
	i.Do(func(s *bus.Session) error {
		if traced = s.Trace == nil; traced {
			s.Trace = out
		}
		return nil
	})
	if traced {
		// the device is gone once Serve returns, fall back to glog.
		defer i.Do(func(s *bus.Session) error {
			s.Trace = nil
			return nil
		})
	}
	if err := writeReply(out, fail(CodeMasterRebooted, "master booted")); err != nil {
		return err
	}
	for ctx.Err() == nil {
		debugging := i.debugging()
		if debugging {
			if _, err := io.WriteString(out, ">"); err != nil {
				return err
			}
		}
		line, err := readLine(rw, debugging)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if len(line) == 0 {
			continue
		}
		if err = writeReply(out, i.Exec(ctx, line)); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (i *Interpreter) debugging() (on bool) {
	i.Do(func(s *bus.Session) error {
		on = s.Debug() != bus.DebugOff
		return nil
	})
	return
}

func writeReply(w io.Writer, r Reply) error {
	line := r.Line()
	if line == "" {
		return nil
	}
	_, err := io.WriteString(w, line+"\n")
	return err
}

func readLine(rw io.ReadWriter, echo bool) (string, error) {
	var line []byte
	buf := make([]byte, 1)
	for len(line) < MaxLineLength {
		if _, err := io.ReadFull(rw, buf); err != nil {
			if err == io.EOF && len(line) > 0 {
				break
			}
			return "", err
		}
		if echo {
			if _, err := rw.Write(buf); err != nil {
				return "", err
			}
		}
		switch buf[0] {
		case '\r':
			if echo {
				if _, err := rw.Write([]byte("\n")); err != nil {
					return "", err
				}
			}
			return string(line), nil
		case '\n':
			continue
		}
		line = append(line, buf[0])
	}
	return string(line), nil
}
