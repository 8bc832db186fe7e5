package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/zhouzirui/connect-chat/backend/internal/model/chat"
)

// terminalSink renders controller notifications as plain lines.
type terminalSink struct {
	mu  sync.Mutex
	out io.Writer
}

func newTerminalSink(out io.Writer) *terminalSink {
	return &terminalSink{out: out}
}

func (s *terminalSink) OnStatusChange(status chat.Status) {
	s.printf("[%s]\n", status)
}

func (s *terminalSink) OnMessage(entry chat.DisplayEntry) {
	s.printf("%s\n", entry)
}

func (s *terminalSink) OnSendEnabled(enabled bool) {
	if enabled {
		s.printf("[you can type now]\n")
		return
	}
	s.printf("[sending disabled]\n")
}

func (s *terminalSink) OnReset() {
	s.printf("\n--- chat closed, /start <first> <last> to begin again ---\n")
}

func (s *terminalSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}
